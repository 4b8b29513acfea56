package compiler

import (
	"fmt"

	"github.com/roach88/querykit/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidIdentifier  = "E101" // entity, table, field or column name is not a plain identifier
	ErrMissingKey         = "E102" // key column has no scalar field
	ErrUnknownTarget      = "E103" // relation targets an undeclared entity
	ErrInvalidFieldType   = "E104" // unknown type or enum without values
	ErrDuplicateName      = "E105" // duplicate entity or field name
	ErrUnresolvablePath   = "E106" // search path or alias does not resolve
	ErrIncompleteRelation = "E107" // relation is missing a required column
	ErrUnknownPolicyRoot  = "E108" // policy names an undeclared entity
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks compiled entities and policies before they are assembled
// into a schema. Returns all errors found (does not fail-fast).
func Validate(entities []*schema.Entity, policies map[string]schema.Policy) []ValidationError {
	var errs []ValidationError

	names := make(map[string]bool, len(entities))
	for _, e := range entities {
		if names[e.Name] {
			errs = append(errs, ValidationError{Field: "entity." + e.Name, Message: "entity declared twice", Code: ErrDuplicateName})
		}
		names[e.Name] = true
	}

	for _, e := range entities {
		errs = append(errs, validateEntity(e, names)...)
	}

	for root := range policies {
		if !names[root] {
			errs = append(errs, ValidationError{Field: "policy." + root, Message: "policy for unknown entity", Code: ErrUnknownPolicyRoot})
		}
	}

	return errs
}

func validateEntity(e *schema.Entity, entities map[string]bool) []ValidationError {
	var errs []ValidationError
	prefix := "entity." + e.Name

	if !schema.ValidIdentifier(e.Name) {
		errs = append(errs, ValidationError{Field: prefix, Message: "entity name must be an identifier", Code: ErrInvalidIdentifier})
	}
	if e.Table != "" && !schema.ValidIdentifier(e.Table) {
		errs = append(errs, ValidationError{Field: prefix + ".table", Message: fmt.Sprintf("invalid table name %q", e.Table), Code: ErrInvalidIdentifier})
	}

	key := e.Key
	if key == "" {
		key = "id"
	}
	hasKey := false
	seen := make(map[string]bool, len(e.Fields))

	for _, f := range e.Fields {
		fieldPath := prefix + ".fields." + f.Name
		if seen[f.Name] {
			errs = append(errs, ValidationError{Field: fieldPath, Message: "field declared twice", Code: ErrDuplicateName})
		}
		seen[f.Name] = true

		if !schema.ValidIdentifier(f.Name) {
			errs = append(errs, ValidationError{Field: fieldPath, Message: "field name must be an identifier", Code: ErrInvalidIdentifier})
		}

		switch {
		case f.Alias != "":
			// Checked against the assembled schema.
		case f.Relation != nil:
			errs = append(errs, validateRelation(fieldPath, f.Relation, entities)...)
		default:
			column := f.Column
			if column == "" {
				column = f.Name
			}
			if column == key {
				hasKey = true
			}
			if f.Column != "" && !schema.ValidIdentifier(f.Column) {
				errs = append(errs, ValidationError{Field: fieldPath + ".column", Message: fmt.Sprintf("invalid column name %q", f.Column), Code: ErrInvalidIdentifier})
			}
			if f.Type == schema.TypeEnum && len(f.Enum) == 0 {
				errs = append(errs, ValidationError{Field: fieldPath + ".values", Message: "enum fields must declare values", Code: ErrInvalidFieldType})
			}
		}
	}

	if !hasKey {
		errs = append(errs, ValidationError{Field: prefix + ".key", Message: fmt.Sprintf("key column %q has no scalar field", key), Code: ErrMissingKey})
	}

	return errs
}

func validateRelation(fieldPath string, r *schema.Relation, entities map[string]bool) []ValidationError {
	var errs []ValidationError

	if !entities[r.Target] {
		errs = append(errs, ValidationError{Field: fieldPath + ".target", Message: fmt.Sprintf("unknown entity %q", r.Target), Code: ErrUnknownTarget})
	}

	require := func(name, value string) {
		if value == "" {
			errs = append(errs, ValidationError{Field: fieldPath + "." + name, Message: fmt.Sprintf("%s relations require %s", r.Kind, name), Code: ErrIncompleteRelation})
		}
	}

	switch r.Kind {
	case schema.OneToMany:
		require("remote", r.Remote)
	case schema.ManyToMany:
		require("through", r.Through)
		require("local", r.ThroughLocal)
		require("remote", r.ThroughRemote)
	case schema.Unrelated:
		require("column", r.Column)
		require("remote", r.Remote)
	}

	return errs
}

// validatePaths checks that every search path and alias of the assembled
// schema resolves.
func validatePaths(s *schema.Schema) []ValidationError {
	var errs []ValidationError
	resolver := schema.NewResolver(s, nil)

	for _, e := range s.Entities() {
		for _, p := range e.Search {
			if _, err := resolver.Resolve(e.Name, p, true); err != nil {
				errs = append(errs, ValidationError{Field: "entity." + e.Name + ".search", Message: err.Error(), Code: ErrUnresolvablePath})
			}
		}
		for _, f := range e.Fields {
			if f.Alias == "" {
				continue
			}
			if _, err := resolver.Resolve(e.Name, f.Name, true); err != nil {
				errs = append(errs, ValidationError{Field: "entity." + e.Name + ".fields." + f.Name, Message: err.Error(), Code: ErrUnresolvablePath})
			}
		}
	}

	return errs
}
