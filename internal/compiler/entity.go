package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querykit/internal/schema"
)

// CompileEntity parses a CUE entity definition into a schema.Entity.
// Uses the CUE SDK's Go API directly.
//
// The value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Order: { table: "orders", fields: { id: int } }`)
//	e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Order")))
//
// Scalar fields may be written as a bare CUE type (string, int, float,
// number, bool) or as a struct {type, column, values}. Relations use
// {relation, target, column, remote, through, local}; aliases use {alias}.
func CompileEntity(v cue.Value) (*schema.Entity, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	e := &schema.Entity{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		e.Name = labels[len(labels)-1].String()
	}

	var err error
	if e.Table, err = optionalString(v, "table"); err != nil {
		return nil, err
	}
	if e.Key, err = optionalString(v, "key"); err != nil {
		return nil, err
	}
	if e.Search, err = optionalStrings(v, "search"); err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		f, err := compileField(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		e.Fields = append(e.Fields, f)
	}

	if len(e.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}

	return e, nil
}

func compileField(name string, v cue.Value) (*schema.Field, error) {
	f := &schema.Field{Name: name}

	if v.IncompleteKind() != cue.StructKind {
		t, err := extractFieldType(v)
		if err != nil {
			return nil, err
		}
		f.Type = t
		return f, nil
	}

	alias, err := optionalString(v, "alias")
	if err != nil {
		return nil, err
	}
	if alias != "" {
		f.Alias = alias
		return f, nil
	}

	kind, err := optionalString(v, "relation")
	if err != nil {
		return nil, err
	}
	if kind != "" {
		rel, err := compileRelation(name, kind, v)
		if err != nil {
			return nil, err
		}
		f.Relation = rel
		return f, nil
	}

	typeName, err := optionalString(v, "type")
	if err != nil {
		return nil, err
	}
	if typeName != "" {
		if f.Type, err = schema.ParseFieldType(typeName); err != nil {
			return nil, &CompileError{Field: "fields." + name + ".type", Message: err.Error(), Pos: v.Pos()}
		}
	}
	if f.Column, err = optionalString(v, "column"); err != nil {
		return nil, err
	}
	if f.Enum, err = optionalStrings(v, "values"); err != nil {
		return nil, err
	}

	return f, nil
}

func compileRelation(name, kind string, v cue.Value) (*schema.Relation, error) {
	k, err := schema.ParseRelationKind(kind)
	if err != nil {
		return nil, &CompileError{Field: "fields." + name + ".relation", Message: err.Error(), Pos: v.Pos()}
	}

	rel := &schema.Relation{Kind: k}
	if rel.Target, err = optionalString(v, "target"); err != nil {
		return nil, err
	}
	if rel.Target == "" {
		return nil, &CompileError{
			Field:   "fields." + name + ".target",
			Message: "relation target is required",
			Pos:     v.Pos(),
		}
	}

	column, err := optionalString(v, "column")
	if err != nil {
		return nil, err
	}
	remote, err := optionalString(v, "remote")
	if err != nil {
		return nil, err
	}

	if k == schema.ManyToMany {
		if rel.Through, err = optionalString(v, "through"); err != nil {
			return nil, err
		}
		if rel.ThroughLocal, err = optionalString(v, "local"); err != nil {
			return nil, err
		}
		rel.ThroughRemote = remote
		return rel, nil
	}

	rel.Column = column
	rel.Remote = remote
	return rel, nil
}

// extractFieldType maps a bare CUE type to a field type.
func extractFieldType(v cue.Value) (schema.FieldType, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return schema.TypeString, nil
	case cue.IntKind:
		return schema.TypeInt, nil
	case cue.FloatKind, cue.NumberKind:
		return schema.TypeFloat, nil
	case cue.BoolKind:
		return schema.TypeBool, nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func optionalString(v cue.Value, path string) (string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return "", nil
	}
	s, err := val.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalStrings(v cue.Value, path string) ([]string, error) {
	val := v.LookupPath(cue.ParsePath(path))
	if !val.Exists() {
		return nil, nil
	}
	iter, err := val.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
