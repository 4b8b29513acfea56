package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is a CUE schema directory or file, relative to the scenario
	// file.
	Schema string `yaml:"schema"`

	// Config overrides the default query configuration.
	Config ConfigOverrides `yaml:"config,omitempty"`

	// Seed lists rows to insert, parents before children.
	Seed []SeedTable `yaml:"seed,omitempty"`

	// Requests run in order against the seeded database.
	Requests []RequestStep `yaml:"requests"`
}

// ConfigOverrides replaces individual query.Config defaults.
type ConfigOverrides struct {
	DefaultPageSize  *int   `yaml:"default_page_size,omitempty"`
	MaxPageSize      *int   `yaml:"max_page_size,omitempty"`
	DistinctStrategy string `yaml:"distinct_strategy,omitempty"`
	AllowDeepDive    *bool  `yaml:"allow_deep_dive,omitempty"`
}

// SeedTable is the rows for one table, keyed by column name.
type SeedTable struct {
	Table string           `yaml:"table"`
	Rows  []map[string]any `yaml:"rows"`
}

// RequestStep is one request and what it must return.
type RequestStep struct {
	Name string `yaml:"name"`
	Root string `yaml:"root"`

	// Filter terms are ANDed; OrFilter terms are then ORed onto the tree.
	Filter   []string `yaml:"filter,omitempty"`
	OrFilter []string `yaml:"or_filter,omitempty"`

	Search      string   `yaml:"search,omitempty"`
	SearchPaths []string `yaml:"search_paths,omitempty"`

	// Sort entries use the path[:asc|desc[:cast]] form.
	Sort []string `yaml:"sort,omitempty"`

	Page int `yaml:"page,omitempty"`
	Size int `yaml:"size,omitempty"`

	Fetch []string `yaml:"fetch,omitempty"`

	// Distinct and Meta entries use the value[:function][:labels][@name]
	// form.
	Distinct []string `yaml:"distinct,omitempty"`
	Meta     []string `yaml:"meta,omitempty"`

	DistinctDataset bool `yaml:"distinct_dataset,omitempty"`

	// Expect is optional; without it the request only has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists the checks for one request. Unset fields are not checked.
type Expect struct {
	// IDs are the values of the Key column of the content, in order.
	IDs []int64 `yaml:"ids,omitempty"`

	// Key is the label IDs are read from; defaults to "id".
	Key string `yaml:"key,omitempty"`

	Total    *int64 `yaml:"total,omitempty"`
	Pages    *int64 `yaml:"pages,omitempty"`
	Warnings *int   `yaml:"warnings,omitempty"`

	// Error is the expected error code, e.g. PATH_NOT_FOUND.
	Error string `yaml:"error,omitempty"`

	// Distinct maps column key -> value -> label, compared exactly.
	Distinct map[string]map[string]string `yaml:"distinct,omitempty"`

	// Meta maps column key -> label -> aggregate, compared exactly per
	// column; numbers compare numerically.
	Meta map[string]map[string]any `yaml:"meta,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The schema path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema not found: %s", s.Schema)
	}
	if len(s.Requests) == 0 {
		return fmt.Errorf("requests list is required and must be non-empty")
	}

	for i, t := range s.Seed {
		if t.Table == "" {
			return fmt.Errorf("seed[%d]: table is required", i)
		}
	}

	names := map[string]bool{}
	for i, r := range s.Requests {
		if r.Name == "" {
			return fmt.Errorf("requests[%d]: name is required", i)
		}
		if names[r.Name] {
			return fmt.Errorf("requests[%d]: duplicate name %q", i, r.Name)
		}
		names[r.Name] = true
		if r.Root == "" {
			return fmt.Errorf("requests[%d]: root is required", i)
		}
		if r.Expect != nil && r.Expect.Error != "" && hasResultChecks(r.Expect) {
			return fmt.Errorf("requests[%d].expect: error excludes result checks", i)
		}
	}

	return nil
}

func hasResultChecks(e *Expect) bool {
	return e.IDs != nil || e.Total != nil || e.Pages != nil || e.Warnings != nil ||
		e.Distinct != nil || e.Meta != nil
}
