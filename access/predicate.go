// Package access compiles the restricted-expression grammar the
// typechecker admits for `@access` annotations into a small closed set
// of predicate nodes, then interns the result behind the integer
// indices `model.AccessSlots` carries (spec §4.D).
package access

import "github.com/exoql/exocore/lang/ast"

// Predicate is the closed set of compiled access-rule shapes. Unlike
// ast.Expr, a Predicate has already been resolved against a specific
// entity: every Path knows exactly which field chain (and, for
// database-form predicates, which joins) it denotes.
type Predicate interface{ predicate() }

// BoolLiteral is `true`, `false`, or the deny-by-default sentinel.
type BoolLiteral struct{ Value bool }

// Not negates a predicate.
type Not struct{ X Predicate }

// And is the conjunction of every argument.
type And struct{ Args []Predicate }

// Or is the disjunction of every argument.
type Or struct{ Args []Predicate }

// Compare is a leaf comparison between two operands.
type Compare struct {
	Op    ast.RelationalOp
	Left  Operand
	Right Operand
}

// HOFPredicate compiles `self.<relation>.some(p => body)` and its
// all/none/any siblings. Relation is always rooted at self (spec §4.D:
// nested higher-order calls are rejected by the typechecker before
// compilation ever reaches this package).
type HOFPredicate struct {
	Method   string // some | all | none | any
	Relation Path   // the Set<T> field this ranges over
	Param    string
	Body     Predicate
}

func (BoolLiteral) predicate()  {}
func (Not) predicate()          {}
func (And) predicate()          {}
func (Or) predicate()           {}
func (Compare) predicate()      {}
func (HOFPredicate) predicate() {}

// Operand is either a literal value or a rooted field path.
type Operand interface{ operand() }

// Literal is a constant operand.
type Literal struct{ V any }

// PathRoot is the closed set of roots a Path can be anchored to.
type PathRoot int

const (
	// RootSelf anchors a path at the entity the predicate was compiled
	// for (the row being read, created, updated, or deleted).
	RootSelf PathRoot = iota
	// RootParam anchors a path at an enclosing HOF parameter.
	RootParam
	// RootContext anchors a path at a named request-context value.
	RootContext
)

// Path is a rooted field-access chain. For RootSelf/RootParam, Entity
// names the entity the root ranges over (needed by the planner to know
// which table a segment resolves against); for RootContext it is empty.
type Path struct {
	Root     PathRoot
	Name     string // context name, or HOF param name; unused for RootSelf
	Entity   string
	Segments []string
}

func (Literal) operand() {}
func (Path) operand()    {}
