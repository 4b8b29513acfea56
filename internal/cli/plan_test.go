package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanText(t *testing.T) {
	out, err := runCommand(t, NewPlanCommand(&RootOptions{Format: "text"}),
		"--schema", shopSchema, "--root", "Order",
		"-f", "status:PAID", "--sort", "total:desc", "--page", "1", "--size", "10")
	require.NoError(t, err)

	assert.Contains(t, out, "-- primary\nSELECT")
	assert.Contains(t, out, "-- count\nSELECT")
	assert.Contains(t, out, "-- [PAID")
	assert.Contains(t, out, "LIMIT 10")
}

func TestPlanJSON(t *testing.T) {
	out, err := runCommand(t, NewPlanCommand(&RootOptions{Format: "json"}),
		"--schema", shopSchema, "--root", "Order", "--dialect", "postgres",
		"-f", "customer.name:Alice", "--distinct", "status", "--meta", "total:sum:region")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "postgres", resp.Data.Dialect)

	var names []string
	fingerprints := map[string]bool{}
	for _, q := range resp.Data.Queries {
		names = append(names, q.Name)
		assert.Len(t, q.Fingerprint, 64)
		fingerprints[q.Fingerprint] = true
		assert.Contains(t, q.SQL, "$1", "filter value is a postgres placeholder in %s", q.Name)
	}
	assert.Equal(t, []string{"primary", "Order.status.distinct", "Order.total.sum.by.region"}, names)
	assert.Len(t, fingerprints, 3)
}

func TestPlanWarnings(t *testing.T) {
	out, err := runCommand(t, NewPlanCommand(&RootOptions{Format: "text"}),
		"--schema", shopSchema, "--root", "Order", "-f", "quantity:EQ:many")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: ")
	assert.Contains(t, out, "INVALID_VALUE")
}

func TestPlanErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"unknown path", []string{"--root", "Order", "-f", "weight:GT:1"}, ExitCommandError, "PATH_NOT_FOUND"},
		{"denied path", []string{"--root", "Order", "-f", "customer.email:x"}, ExitCommandError, "PATH_NOT_ALLOWED"},
		{"bad sort", []string{"--root", "Order", "--sort", "total:sideways"}, ExitCommandError, ""},
		{"unknown root", []string{"--root", "Nope"}, ExitCommandError, "PATH_NOT_FOUND"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"--schema", shopSchema}, tc.args...)
			out, err := runCommand(t, NewPlanCommand(&RootOptions{Format: "text"}), args...)
			require.Error(t, err)
			assert.Equal(t, tc.code, GetExitCode(err))
			assert.Contains(t, out, tc.want)
		})
	}
}

func TestPlanRequiresSchema(t *testing.T) {
	_, err := runCommand(t, NewPlanCommand(&RootOptions{Format: "text"}), "--root", "Order")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema")
}
