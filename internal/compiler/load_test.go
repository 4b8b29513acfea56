package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Directory(t *testing.T) {
	compiled, err := Load("testdata")
	require.NoError(t, err)

	order, ok := compiled.Schema.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, "orders", order.Table)
}

func TestLoad_SingleFile(t *testing.T) {
	loaded, err := LoadValue(filepath.Join("testdata", "shop.cue"))
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.FileCount)

	compiled, err := CompileSchema(loaded.Value)
	require.NoError(t, err)
	_, ok := compiled.Schema.Entity("Warehouse")
	assert.True(t, ok)
}

func TestLoad_Errors(t *testing.T) {
	loadCode := func(t *testing.T, path string) string {
		t.Helper()
		_, err := LoadValue(path)
		require.Error(t, err)
		var le *LoadError
		require.True(t, errors.As(err, &le), "got %T", err)
		return le.Code
	}

	assert.Equal(t, ErrCodeNotFound, loadCode(t, filepath.Join(t.TempDir(), "missing")))
	assert.Equal(t, ErrCodeNoFiles, loadCode(t, t.TempDir()))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte("package bad\n\nentity: {"), 0o644))
	assert.Equal(t, ErrCodeLoadFailed, loadCode(t, dir))
}

func TestLoad_CompileErrorsPassThrough(t *testing.T) {
	dir := t.TempDir()
	src := `package bad

entity: Order: {
	fields: {
		id: int
		customer: {relation: "many_to_one", target: "Nobody", column: "customer_id"}
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(src), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	var verr ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, ErrUnknownTarget, verr.Code)
}
