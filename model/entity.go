package model

import "github.com/exoql/exocore/internal/arena"

// Representation is the closed set of ways an entity can be stored
// (spec §3).
type Representation int

const (
	Managed Representation = iota
	JsonRepr
	NotManaged
)

// FieldShape is the closed set of field-type wrappers (spec §3):
// Plain(T), Optional(T), or List(T).
type FieldShape int

const (
	Plain FieldShape = iota
	Optional
	List
)

// FieldTypeRef describes what a field's type actually is: either a
// reference to a typecheck primitive (by name) or to another entity.
type FieldTypeRef struct {
	Shape      FieldShape
	PrimName   string // set if this names a primitive
	EntityName string // set if this names a composite/entity
	IsEnum     bool
}

// AccessSlots holds the interned indices of an entity's or field's
// compiled access predicates. Index 0 is, by the access package's own
// convention, the shared "restricted" sentinel (spec §9): every
// Entity/Field starts zero-valued, and every build phase that computes
// real access must overwrite it.
type AccessSlots struct {
	Read           int
	CreationInput  int
	UpdateInput    int
	UpdateDatabase int
	Delete         int
}

// ContextSelection is a dynamic default: a field default that resolves
// a request-context value at mutation time rather than at migration
// time (spec Glossary).
type ContextSelection struct {
	Context string
	Path    []string
}

// TypeHint carries the physical-type-shaping annotations of a field:
// integer bit width, decimal precision/scale, string max length, or
// vector size + distance function.
type TypeHint struct {
	Bits         int
	Precision    int
	Scale        int
	MaxLen       int
	VectorSize   int
	DistanceFunc string
}

// Field is an entity field, fully resolved by the model builder (spec §3).
type Field struct {
	Name            string
	Type            FieldTypeRef
	Relation        PostgresRelation
	Access          AccessSlots
	Default         Expr
	DynamicDefault  *ContextSelection
	Readonly        bool
	UpdateSync      bool
	Hint            *TypeHint
	ColumnNames     []string // the physical column(s) backing this field, in order
}

// AggregateField is a derived `_agg` field (e.g. `concertsAgg: ConcertAgg`)
// computed over a one-to-many relation.
type AggregateField struct {
	Name         string
	RelationName string // the Set<T> field this aggregates
}

// VectorDistanceField is a derived field exposing the distance of a
// row's vector column to a query parameter (e.g. similarity search).
type VectorDistanceField struct {
	Name      string
	VectorCol string
}

// Entity is a composite type lowered to its physical representation (spec §3).
type Entity struct {
	Name                 string
	PluralName           string
	Representation       Representation
	Fields               []*Field
	AggregateFields      []*AggregateField
	VectorDistanceFields []*VectorDistanceField
	Table                *Table // nil when Representation == JsonRepr
	Access               AccessSlots
}

// Field returns the first field with the given name.
func (e *Entity) Field(name string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// EntityModel is the long-lived, frozen-after-build arena of entities
// (spec §3 Lifecycle).
type EntityModel struct {
	arena *arena.MappedArena[Entity]
}

// NewEntityModel creates an empty entity model.
func NewEntityModel() *EntityModel {
	return &EntityModel{arena: arena.NewMappedArena[Entity]()}
}

// Insert adds entity under name, returning its stable id.
func (m *EntityModel) Insert(name string, e Entity) (arena.Id, error) {
	return m.arena.Insert(name, e)
}

// InsertShallow reserves a slot for a later GetMut fill.
func (m *EntityModel) InsertShallow(name string) (arena.Id, error) {
	return m.arena.InsertShallow(name, Entity{Name: name})
}

// Get dereferences id.
func (m *EntityModel) Get(id arena.Id) *Entity { return m.arena.Get(id) }

// GetMut returns a mutable pointer to the entity at id.
func (m *EntityModel) GetMut(id arena.Id) *Entity { return m.arena.GetMut(id) }

// ByName returns the id registered under name.
func (m *EntityModel) ByName(name string) (arena.Id, bool) { return m.arena.GetByName(name) }

// Iter yields every entity in insertion order.
func (m *EntityModel) Iter() []arena.Entry[Entity] { return m.arena.Iter() }
