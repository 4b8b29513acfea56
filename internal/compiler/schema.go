package compiler

import (
	"errors"

	"cuelang.org/go/cue"

	"github.com/roach88/querykit/internal/schema"
)

// Compiled is a schema assembled from CUE together with its path policies.
type Compiled struct {
	Schema   *schema.Schema
	Policies map[string]schema.Policy
}

// CompileSchema compiles every `entity: <Name>: {...}` and
// `policy: <Name>: {...}` declaration in v.
//
// All validation errors are collected and returned together via
// errors.Join; each is a ValidationError or a CompileError.
func CompileSchema(v cue.Value) (*Compiled, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entitiesVal := v.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entities declared", Pos: v.Pos()}
	}

	var entities []*schema.Entity
	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		e, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	policies, err := compilePolicies(v)
	if err != nil {
		return nil, err
	}

	if verrs := Validate(entities, policies); len(verrs) > 0 {
		return nil, joinValidation(verrs)
	}

	s, err := schema.New(entities...)
	if err != nil {
		return nil, err
	}

	if verrs := validatePaths(s); len(verrs) > 0 {
		return nil, joinValidation(verrs)
	}

	return &Compiled{Schema: s, Policies: policies}, nil
}

// CompilePolicy parses one `policy: <Name>: {...}` value.
func CompilePolicy(v cue.Value) (schema.Policy, error) {
	var p schema.Policy
	var err error

	if p.Allow, err = optionalStrings(v, "allow"); err != nil {
		return p, err
	}
	if p.Deny, err = optionalStrings(v, "deny"); err != nil {
		return p, err
	}
	if p.Permissive, err = optionalStrings(v, "permissive"); err != nil {
		return p, err
	}

	shallow := v.LookupPath(cue.ParsePath("shallow"))
	if shallow.Exists() {
		if p.Shallow, err = shallow.Bool(); err != nil {
			return p, formatCUEError(err)
		}
	}

	return p, nil
}

func compilePolicies(v cue.Value) (map[string]schema.Policy, error) {
	policies := map[string]schema.Policy{}

	val := v.LookupPath(cue.ParsePath("policy"))
	if !val.Exists() {
		return policies, nil
	}

	iter, err := val.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, err := CompilePolicy(iter.Value())
		if err != nil {
			return nil, err
		}
		policies[iter.Label()] = p
	}
	return policies, nil
}

func joinValidation(verrs []ValidationError) error {
	errs := make([]error, len(verrs))
	for i, e := range verrs {
		errs[i] = e
	}
	return errors.Join(errs...)
}
