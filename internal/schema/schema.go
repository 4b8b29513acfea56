package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the declared storage type of a scalar field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "time"
	TypeEnum   FieldType = "enum"
)

// ParseFieldType validates a type name.
func ParseFieldType(s string) (FieldType, error) {
	switch t := FieldType(s); t {
	case TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeEnum:
		return t, nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}

// RelationKind describes how a relation field reaches its target entity.
type RelationKind string

const (
	// ManyToOne: the local Column holds the target's key.
	ManyToOne RelationKind = "many_to_one"
	// OneToOne: like ManyToOne, at most one owner per target row.
	OneToOne RelationKind = "one_to_one"
	// OneToMany: the target's Remote column holds the local key.
	OneToMany RelationKind = "one_to_many"
	// ManyToMany: rows of Through link ThroughLocal (local key) to
	// ThroughRemote (target key).
	ManyToMany RelationKind = "many_to_many"
	// Unrelated: no foreign key exists; rows correlate when the local
	// Column equals the target's Remote column.
	Unrelated RelationKind = "unrelated"
)

// ParseRelationKind validates a relation kind name.
func ParseRelationKind(s string) (RelationKind, error) {
	switch k := RelationKind(s); k {
	case ManyToOne, OneToOne, OneToMany, ManyToMany, Unrelated:
		return k, nil
	default:
		return "", fmt.Errorf("unknown relation kind %q", s)
	}
}

// ToMany reports whether following the relation can multiply parent rows.
// Unrelated counts as to-many: nothing guarantees the correlation column is
// unique on the target.
func (k RelationKind) ToMany() bool {
	return k == OneToMany || k == ManyToMany || k == Unrelated
}

// Relation describes a traversal from one entity to another.
type Relation struct {
	Kind   RelationKind
	Target string

	// Column is the local column: the foreign key for ManyToOne/OneToOne,
	// the correlation column for Unrelated.
	Column string

	// Remote is the target column: the back-reference for OneToMany, the
	// correlation column for Unrelated.
	Remote string

	Through       string
	ThroughLocal  string
	ThroughRemote string
}

// Field is one named member of an entity: a scalar column, a relation, or
// an alias that redirects to another path.
type Field struct {
	Name   string
	Column string
	Type   FieldType
	Enum   []string

	// Alias, when set, is a dotted path relative to the owning entity that
	// this field stands for. Aliased fields have no column of their own.
	Alias string

	Relation *Relation
}

// IsRelation reports whether the field traverses to another entity.
func (f *Field) IsRelation() bool {
	return f.Relation != nil
}

// IsScalar reports whether the field maps to a column on its own entity.
func (f *Field) IsScalar() bool {
	return f.Relation == nil && f.Alias == ""
}

// Entity is a named root or related type backed by one table.
type Entity struct {
	Name  string
	Table string
	Key   string

	// Fields in declaration order.
	Fields []*Field

	// Search lists the paths free-text search covers when a request does
	// not name its own.
	Search []string

	byName map[string]*Field
}

// Field looks up a field by name.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.byName[name]
	return f, ok
}

// KeyField returns the field whose column is the primary key.
func (e *Entity) KeyField() *Field {
	for _, f := range e.Fields {
		if f.IsScalar() && f.Column == e.Key {
			return f
		}
	}
	return nil
}

// Columns returns the scalar fields in declaration order.
func (e *Entity) Columns() []*Field {
	var cols []*Field
	for _, f := range e.Fields {
		if f.IsScalar() {
			cols = append(cols, f)
		}
	}
	return cols
}

// Schema is an immutable set of entities. Build it with New; resolution and
// planning only ever read it.
type Schema struct {
	entities map[string]*Entity
	order    []string
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used unquoted as a table, column
// or field name.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// New indexes and validates entities. Every relation target must exist,
// every table and column name must be a plain identifier, and every entity
// must declare a scalar key field.
func New(entities ...*Entity) (*Schema, error) {
	s := &Schema{entities: make(map[string]*Entity, len(entities))}

	for _, e := range entities {
		if !ValidIdentifier(e.Name) {
			return nil, fmt.Errorf("entity %q: invalid name", e.Name)
		}
		if _, dup := s.entities[e.Name]; dup {
			return nil, fmt.Errorf("entity %q: declared twice", e.Name)
		}
		if e.Table == "" {
			e.Table = strings.ToLower(e.Name)
		}
		if e.Key == "" {
			e.Key = "id"
		}
		if !ValidIdentifier(e.Table) || !ValidIdentifier(e.Key) {
			return nil, fmt.Errorf("entity %q: invalid table or key name", e.Name)
		}

		e.byName = make(map[string]*Field, len(e.Fields))
		for _, f := range e.Fields {
			if err := normalizeField(e, f); err != nil {
				return nil, err
			}
			if _, dup := e.byName[f.Name]; dup {
				return nil, fmt.Errorf("entity %q: field %q declared twice", e.Name, f.Name)
			}
			e.byName[f.Name] = f
		}
		if e.KeyField() == nil {
			return nil, fmt.Errorf("entity %q: key column %q has no scalar field", e.Name, e.Key)
		}

		s.entities[e.Name] = e
		s.order = append(s.order, e.Name)
	}

	for _, e := range entities {
		for _, f := range e.Fields {
			if f.Relation == nil {
				continue
			}
			if _, ok := s.entities[f.Relation.Target]; !ok {
				return nil, fmt.Errorf("entity %q: field %q targets unknown entity %q", e.Name, f.Name, f.Relation.Target)
			}
		}
	}

	return s, nil
}

func normalizeField(e *Entity, f *Field) error {
	if !ValidIdentifier(f.Name) {
		return fmt.Errorf("entity %q: invalid field name %q", e.Name, f.Name)
	}

	switch {
	case f.Alias != "":
		if f.Relation != nil {
			return fmt.Errorf("entity %q: field %q cannot be both alias and relation", e.Name, f.Name)
		}
		return nil

	case f.Relation != nil:
		return validateRelation(e, f)

	default:
		if f.Column == "" {
			f.Column = f.Name
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("entity %q: field %q has invalid column %q", e.Name, f.Name, f.Column)
		}
		if f.Type == TypeEnum && len(f.Enum) == 0 {
			return fmt.Errorf("entity %q: enum field %q declares no values", e.Name, f.Name)
		}
		return nil
	}
}

func validateRelation(e *Entity, f *Field) error {
	r := f.Relation
	check := func(names ...string) error {
		for _, n := range names {
			if !ValidIdentifier(n) {
				return fmt.Errorf("entity %q: relation %q has invalid column %q", e.Name, f.Name, n)
			}
		}
		return nil
	}

	switch r.Kind {
	case ManyToOne, OneToOne:
		if r.Column == "" {
			r.Column = f.Name + "_id"
		}
		return check(r.Column)
	case OneToMany:
		return check(r.Remote)
	case ManyToMany:
		return check(r.Through, r.ThroughLocal, r.ThroughRemote)
	case Unrelated:
		return check(r.Column, r.Remote)
	default:
		return fmt.Errorf("entity %q: relation %q has unknown kind %q", e.Name, f.Name, r.Kind)
	}
}

// Entity looks up an entity by name.
func (s *Schema) Entity(name string) (*Entity, bool) {
	e, ok := s.entities[name]
	return e, ok
}

// Entities returns all entities in declaration order.
func (s *Schema) Entities() []*Entity {
	out := make([]*Entity, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entities[name])
	}
	return out
}
