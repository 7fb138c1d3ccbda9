// Package ast defines the parsed-source surface the typechecker
// consumes. The lexer and parser that produce these values are out of
// scope for this module (spec §1); this package only fixes the shape
// of their output so the rest of the compiler has a stable interface
// to build against.
package ast

import "github.com/hashicorp/hcl/v2"

// System is the root of a parsed source file: every top-level
// declaration, in source order.
type System struct {
	Contexts []*Context
	Modules  []*Module
	Services []*Service
	Types    []*Type
	Enums    []*Enum
}

// Context declares a request-context shape such as `context
// AccessContext { id: Int = AuthContext.id }`.
type Context struct {
	Name   string
	Fields []*Field
	Pos    hcl.Range
}

// Module groups entity types under a subsystem plugin annotation, e.g.
// `@postgres module M { ... }` or `@deno("file.ts") module M { ... }`.
type Module struct {
	Name        string
	Annotations []*Annotation
	Types       []*Type
	Enums       []*Enum
	Services    []*Service
	Pos         hcl.Range
}

// Service declares a set of RPC-style methods.
type Service struct {
	Name        string
	Annotations []*Annotation
	Methods     []*Method
	Models      []*Type
	Pos         hcl.Range
}

// Method is a single service method signature.
type Method struct {
	Name        string
	Annotations []*Annotation
	Args        []*Argument
	Ret         *TypeRef
	Pos         hcl.Range
}

// Argument is a single method argument.
type Argument struct {
	Name        string
	Type        *TypeRef
	Annotations []*Annotation
	Pos         hcl.Range
}

// Type declares an entity (composite type) or a plain data shape.
type Type struct {
	Name        string
	Annotations []*Annotation
	Fields      []*Field
	Pos         hcl.Range
}

// Enum declares a closed set of string variants.
type Enum struct {
	Name        string
	Variants    []string
	Annotations []*Annotation
	Pos         hcl.Range
}

// Field is a single field of a Type or Context.
type Field struct {
	Name        string
	Type        *TypeRef
	Default     Expr
	Annotations []*Annotation
	Pos         hcl.Range
}

// TypeRef is an unresolved reference to a named type, with optionality
// and list wrapping preserved from source syntax (`Type`, `Type?`,
// `Set<Type>`, `Type[]`).
type TypeRef struct {
	Name     string
	Optional bool
	List     bool
	Set      bool
	Pos      hcl.Range
}

// Annotation is a `@name` or `@name(args...)` source annotation.
type Annotation struct {
	Name   string
	Params AnnotationParams
	Pos    hcl.Range
}

// AnnotationParams is the closed set of shapes an annotation's
// parenthesized arguments can take.
type AnnotationParams interface{ annotationParams() }

// NoParams marks a parameterless annotation, e.g. `@pk`.
type NoParams struct{}

// SingleParams marks a single positional argument, e.g. `@deno("x.ts")`.
type SingleParams struct{ Value Expr }

// MappedParams marks named arguments, e.g. `@range(min=0, max=100)`.
type MappedParams struct{ Values map[string]Expr }

func (NoParams) annotationParams()     {}
func (SingleParams) annotationParams() {}
func (MappedParams) annotationParams() {}

// Expr is the restricted expression grammar the typechecker and access
// compiler both operate over: field selections, logical/relational
// operators and literals.
type Expr interface {
	expr()
	Range() hcl.Range
}

// Selection is a dotted path, e.g. `self.author.id` or
// `self.publications.some(p => p.royalty > 0)`.
type Selection struct {
	Path []string
	Call *HOFCall // non-nil if the tail segment is a higher-order call
	Pos  hcl.Range
}

// HOFCall captures `<method>(<param> => <body>)` tails such as
// `.some(p => p.royalty > 0)`.
type HOFCall struct {
	Method string // some | all | none | any
	Param  string
	Body   Expr
	Pos    hcl.Range
}

// Logical is `!e`, `a && b`, or `a || b`.
type Logical struct {
	Op   LogicalOp
	Args []Expr
	Pos  hcl.Range
}

// LogicalOp is the closed set of logical operators.
type LogicalOp int

const (
	LogicalNot LogicalOp = iota
	LogicalAnd
	LogicalOr
)

// Relational is a binary comparison, e.g. `a == b`, `a < b`,
// `a in b`, `a like b`.
type Relational struct {
	Op    RelationalOp
	Left  Expr
	Right Expr
	Pos   hcl.Range
}

// RelationalOp is the closed set of comparators the expression
// grammar admits.
type RelationalOp int

const (
	OpEq RelationalOp = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpIn
	OpLike
	OpStartsWith
	OpEndsWith
)

// Literal is a string, number, boolean, null, or string-list literal.
type Literal struct {
	Kind LiteralKind
	S    string
	N    float64
	B    bool
	SS   []string
	Pos  hcl.Range
}

// LiteralKind is the closed set of literal shapes.
type LiteralKind int

const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
	LitNull
	LitStringList
)

func (*Selection) expr()  {}
func (*Logical) expr()    {}
func (*Relational) expr() {}
func (*Literal) expr()    {}

func (s *Selection) Range() hcl.Range  { return s.Pos }
func (l *Logical) Range() hcl.Range    { return l.Pos }
func (r *Relational) Range() hcl.Range { return r.Pos }
func (l *Literal) Range() hcl.Range    { return l.Pos }
