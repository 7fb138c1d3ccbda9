package typecheck

import (
	"github.com/exoql/exocore/internal/arena"
	"github.com/exoql/exocore/lang/ast"
)

// Primitive is the closed set of built-in primitive types.
type Primitive int

const (
	Boolean Primitive = iota
	Int
	Float
	Decimal
	String
	LocalTime
	LocalDate
	LocalDateTime
	Instant
	Json
	Blob
	Uuid
	Vector
	Operation
)

var primitiveNames = map[Primitive]string{
	Boolean: "Boolean", Int: "Int", Float: "Float", Decimal: "Decimal",
	String: "String", LocalTime: "LocalTime", LocalDate: "LocalDate",
	LocalDateTime: "LocalDateTime", Instant: "Instant", Json: "Json",
	Blob: "Blob", Uuid: "Uuid", Vector: "Vector", Operation: "Operation",
}

// String returns the source-level spelling of p.
func (p Primitive) String() string { return primitiveNames[p] }

// numeric reports whether p supports arithmetic/ordering comparisons.
func (p Primitive) numeric() bool {
	switch p {
	case Int, Float, Decimal:
		return true
	default:
		return false
	}
}

// TypeKind is the closed set of type-environment variants (spec §3).
type TypeKind int

const (
	KindPrimitive TypeKind = iota
	KindComposite
	KindEnum
	KindSet
	KindArray
	KindDeferred // sentinel: name seen but not yet (or never) resolved
)

// TypeEntry is a single binding in the type environment: a type name
// mapped to one of the five closed-set variants.
type TypeEntry struct {
	Name      string
	Kind      TypeKind
	Primitive Primitive
	Composite *Composite // KindComposite
	Enum      *EnumType  // KindEnum
	Elem      arena.Id   // KindSet / KindArray: element type id
}

// EnumType is a closed set of string variants.
type EnumType struct {
	Name     string
	Variants []string
}

// FieldType is one of Plain(T), Optional(T), or List(T), per spec §3.
// Nested Optional(Optional(_)) and Optional(List(List(_))) cannot be
// expressed by this shape; a reference that is both optional and a
// list is rejected by passFieldTypes.
type FieldType struct {
	Base     arena.Id // the element TypeEntry id
	Optional bool
	List     bool
}

// Composite is a shallow-then-fully-resolved entity/data-shape type.
// Representation and access are populated by later components (model,
// access); the typechecker only resolves field shapes and annotations.
type Composite struct {
	Name        string
	Fields      []*Field
	Annotations []*ResolvedAnnotation
	resolved    bool // true once every field has a concrete FieldType

	// astFields/id are elaboration-only bookkeeping filled in by
	// Build; astFields holds the still-untyped source fields in
	// lockstep with Fields (same index), and id is this composite's
	// own TypeEnv arena id (for self-referential field resolution).
	astFields      []*ast.Field
	astAnnotations []*ast.Annotation
	id             arena.Id
}

// Field is a single field of a Composite, after typechecking.
type Field struct {
	Name        string
	Type        FieldType
	TypeResolved bool
	Default     TypedExpr
	Annotations []*ResolvedAnnotation
}

// ResolvedAnnotation is a source @annotation after its target and
// parameter shape have been checked against the AnnotationRegistry.
type ResolvedAnnotation struct {
	Name   string
	Params map[string]TypedExpr // empty for NoParams, one entry keyed "" for SingleParams
}

// TypeEnv is the interned, index-addressed type environment produced by
// Build. Every cross-reference elsewhere in the compiler (model,
// access, plan) is a TypeEnv arena.Id.
type TypeEnv struct {
	arena *arena.MappedArena[TypeEntry]
}

// NewTypeEnv creates a type environment seeded with the closed set of
// primitives.
func NewTypeEnv() *TypeEnv {
	env := &TypeEnv{arena: arena.NewMappedArena[TypeEntry]()}
	for p, name := range primitiveNames {
		_, _ = env.arena.Insert(name, TypeEntry{Name: name, Kind: KindPrimitive, Primitive: p})
	}
	return env
}

// Lookup returns the id of the type named name, if registered.
func (e *TypeEnv) Lookup(name string) (arena.Id, bool) {
	return e.arena.GetByName(name)
}

// Entry dereferences id.
func (e *TypeEnv) Entry(id arena.Id) *TypeEntry {
	return e.arena.Get(id)
}

// InsertShallow reserves an entry under name with KindDeferred, to be
// filled in once the composite/enum is fully resolved.
func (e *TypeEnv) InsertShallow(name string) (arena.Id, error) {
	return e.arena.InsertShallow(name, TypeEntry{Name: name, Kind: KindDeferred})
}

// Fill overwrites a previously shallow-inserted entry.
func (e *TypeEnv) Fill(id arena.Id, entry TypeEntry) {
	*e.arena.GetMut(id) = entry
}

// Iter yields every entry in insertion order (primitives first, then
// composites/enums in source order).
func (e *TypeEnv) Iter() []arena.Entry[TypeEntry] {
	return e.arena.Iter()
}

// setOrArray interns a Set<T> or Array(T) wrapper type, returning its
// id (creating it if not already present under a synthetic name).
func (e *TypeEnv) setOrArray(kind TypeKind, elem arena.Id, nameSuffix string) (arena.Id, error) {
	name := e.Entry(elem).Name + nameSuffix
	if id, ok := e.Lookup(name); ok {
		return id, nil
	}
	return e.arena.Insert(name, TypeEntry{Name: name, Kind: kind, Elem: elem})
}

// SetOf interns Set<T>.
func (e *TypeEnv) SetOf(elem arena.Id) (arena.Id, error) { return e.setOrArray(KindSet, elem, "[]set") }

// ArrayOf interns Array(T).
func (e *TypeEnv) ArrayOf(elem arena.Id) (arena.Id, error) {
	return e.setOrArray(KindArray, elem, "[]array")
}
