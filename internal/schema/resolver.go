package schema

import (
	"fmt"
	"strings"

	"github.com/roach88/querykit/internal/ir"
)

// maxAliasDepth bounds alias-to-alias redirection.
const maxAliasDepth = 8

// Hop is one relation traversal on a resolved path.
type Hop struct {
	// Path is the canonical path up to and including this relation field.
	Path  string
	From  *Entity
	Field *Field
	To    *Entity
}

// Resolution is the result of resolving a field path against a root entity.
// Resolutions are cached and shared; treat them as read-only.
type Resolution struct {
	Root *Entity

	// Owner is the entity that declares Field.
	Owner *Entity

	// Field is the final path segment. It may itself be a relation, e.g.
	// for IS_EMPTY on a collection.
	Field *Field

	// CanonicalPath is the path after alias redirection.
	CanonicalPath string

	// Hops are the relations traversed before Field, in order.
	Hops []Hop
}

// JoinPath is the canonical path of the entity owning Field, or "" when the
// field is on the root.
func (r *Resolution) JoinPath() string {
	if len(r.Hops) == 0 {
		return ""
	}
	return r.Hops[len(r.Hops)-1].Path
}

// FirstToMany returns the index of the first to-many hop, or -1.
func (r *Resolution) FirstToMany() int {
	for i, h := range r.Hops {
		if h.Field.Relation.Kind.ToMany() {
			return i
		}
	}
	return -1
}

// Resolver resolves dotted paths against a schema and enforces per-entity
// path policies. It is safe for concurrent use.
type Resolver struct {
	schema   *Schema
	policies map[string]Policy
	cache    *resolutionCache
}

// NewResolver creates a resolver over s. Entities without an entry in
// policies accept every path.
func NewResolver(s *Schema, policies map[string]Policy) *Resolver {
	if policies == nil {
		policies = map[string]Policy{}
	}
	return &Resolver{
		schema:   s,
		policies: policies,
		cache:    newResolutionCache(),
	}
}

// Schema returns the schema the resolver reads.
func (r *Resolver) Schema() *Schema {
	return r.schema
}

// Policy returns the path policy for root.
func (r *Resolver) Policy(root string) Policy {
	return r.policies[root]
}

// IsPermissive reports whether resolution failures on path should be
// skipped rather than abort the request.
func (r *Resolver) IsPermissive(root, path string) bool {
	return r.policies[root].IsPermissive(path)
}

// Resolve maps path to its owning entity and canonical path. With
// allowDeepDive false, or a Shallow policy on root, only fields declared on
// root resolve.
//
// Results, including failures, are memoized per (root, path, allowDeepDive):
// they depend only on the immutable schema and policies.
func (r *Resolver) Resolve(root, path string, allowDeepDive bool) (*Resolution, error) {
	return r.cache.get(cacheKey{root: root, path: path, deep: allowDeepDive}, func() (*Resolution, error) {
		return r.resolve(root, path, allowDeepDive)
	})
}

func (r *Resolver) resolve(root, path string, allowDeepDive bool) (*Resolution, error) {
	rootEntity, ok := r.schema.Entity(root)
	if !ok {
		return nil, ir.NewPathNotFoundError(root, path, fmt.Sprintf("unknown root entity %q", root))
	}
	if path == "" {
		return nil, ir.NewPathNotFoundError(root, path, "empty path")
	}

	policy := r.policies[root]
	if !policy.Allows(path) {
		return nil, ir.NewPathNotAllowedError(root, path)
	}

	segments := strings.Split(path, ".")
	if len(segments) > 1 && (!allowDeepDive || policy.Shallow) {
		return nil, ir.NewPathNotAllowedError(root, path)
	}

	res := &Resolution{Root: rootEntity}
	if err := r.walk(res, rootEntity, "", segments, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// walk resolves segments starting at entity. prefix is the canonical path
// of entity relative to the root.
func (r *Resolver) walk(res *Resolution, entity *Entity, prefix string, segments []string, aliasDepth int) error {
	for i, seg := range segments {
		field, ok := entity.Field(seg)
		if !ok {
			return ir.NewPathNotFoundError(res.Root.Name, strings.Join(segments, "."),
				fmt.Sprintf("entity %s has no field %q", entity.Name, seg))
		}

		if field.Alias != "" {
			if aliasDepth >= maxAliasDepth {
				return ir.NewPathNotFoundError(res.Root.Name, field.Alias,
					fmt.Sprintf("alias chain through %s.%s is too deep", entity.Name, field.Name))
			}
			redirected := append(strings.Split(field.Alias, "."), segments[i+1:]...)
			return r.walk(res, entity, prefix, redirected, aliasDepth+1)
		}

		canonical := join(prefix, seg)
		last := i == len(segments)-1
		if last {
			res.Owner = entity
			res.Field = field
			res.CanonicalPath = canonical
			return nil
		}

		if !field.IsRelation() {
			return ir.NewPathNotFoundError(res.Root.Name, strings.Join(segments, "."),
				fmt.Sprintf("%s.%s is not a relation", entity.Name, seg))
		}

		target, _ := r.schema.Entity(field.Relation.Target)
		res.Hops = append(res.Hops, Hop{Path: canonical, From: entity, Field: field, To: target})
		entity = target
		prefix = canonical
	}
	return nil
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
