package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querykit/internal/compiler"
)

const shopSchema = "../compiler/testdata/shop.cue"

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidSchema(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), shopSchema)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema valid (5 entities)")
}

func TestValidateValidSchemaJSON(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "json"}), shopSchema)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.ElementsMatch(t, []string{"Customer", "Order", "OrderLine", "Tag", "Warehouse"}, resp.Data.Entities)
}

func TestValidateNonExistentPath(t *testing.T) {
	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/schema")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, compiler.ErrCodeNotFound)
}

func TestValidateInvalidSchema(t *testing.T) {
	dir := t.TempDir()
	src := `package bad

entity: Order: {
	table: "orders"
	fields: {
		id: int
		customer: {relation: "many_to_one", target: "Customer", column: "customer_id"}
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0o644))

	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Validation failed")
	assert.Contains(t, out, compiler.ErrUnknownTarget)
}

func TestValidateInvalidSchemaJSON(t *testing.T) {
	dir := t.TempDir()
	src := "package bad\n\nentity: Order: {\n\ttable: \"orders\"\n\tfields: {\n\t\tid: int\n\t\tcustomer: {relation: \"many_to_one\", target: \"Customer\", column: \"customer_id\"}\n\t}\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(src), 0o644))

	out, err := runCommand(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, compiler.ErrUnknownTarget, resp.Error.Code)
}

func TestSchemaErrors(t *testing.T) {
	_, err := compiler.Load("/nonexistent")
	require.Error(t, err)
	errs := schemaErrors(err)
	require.Len(t, errs, 1)
	assert.Equal(t, "load", errs[0].Field)
	assert.Equal(t, compiler.ErrCodeNotFound, errs[0].Code)
}
