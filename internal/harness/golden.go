package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/querykit/internal/engine"
	"github.com/roach88/querykit/internal/ir"
)

// GoldenDir is where RunWithGolden and AssertGolden keep snapshots,
// relative to the test's package directory.
const GoldenDir = "testdata/golden"

// Snapshot renders every step of result as canonical JSON: the page of
// each successful request, or its error code.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, st := range result.Steps {
		steps[i] = st.describe()
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"requests": steps,
	})
}

func (s StepResult) describe() map[string]any {
	if s.Err != nil {
		code := string(ir.CodeOf(s.Err))
		if code == "" {
			code = "ERROR"
		}
		return map[string]any{"name": s.Name, "error": code}
	}

	out := engine.Describe(s.Page)
	out["name"] = s.Name
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if the scenario cannot run. Test failure (via goldie)
// occurs if the snapshot differs from the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
