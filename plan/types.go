// Package plan translates a typechecked, access-compiled entity model
// into concrete PostgreSQL text: SELECT plans for reads, and
// Insert/Update/Delete plans (with nested one-to-many cascades) for
// mutations. It is the query-planner half of spec §4.E, grounded on
// the teacher's own sql/postgres/migrate.go "state" accumulator idiom
// (mirrored here as joinSet/Args) rather than introducing a new
// builder pattern.
package plan

import "github.com/exoql/exocore/access"

// Cardinality distinguishes a JSON selection that aggregates many rows
// from one that expects exactly one.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// Column is the closed set of things a selection list can project:
// a physical column, or a correlated sub-select.
type Column interface{ column() }

// ColumnRef names one physical column on one joined table.
type ColumnRef struct {
	Table  string
	Column string
}

// SubSelectColumn embeds a correlated sub-query as a projected column
// (spec §4.E "SubSelect(link, inner) as a column").
type SubSelectColumn struct {
	Link  Link
	Inner *AbstractSelect
}

func (ColumnRef) column()       {}
func (SubSelectColumn) column() {}

// JSONField is one key/value pair of a Json selection's
// json_build_object(...) call.
type JSONField struct {
	Key   string
	Value Column
}

// Selection is the closed set of row-shaping strategies spec §4.E
// admits: a flat column list, or a JSON object/array aggregate.
type Selection interface{ selection() }

// Seq projects a plain comma list of columns and sub-selects.
type Seq struct{ Cols []Column }

// Json builds one json_build_object per row; Card picks between a
// bare object (One) and a json_agg array (Many).
type Json struct {
	Fields []JSONField
	Card   Cardinality
}

func (Seq) selection()  {}
func (Json) selection() {}

// OrderTerm is one ORDER BY column.
type OrderTerm struct {
	Table, Column string
	Desc          bool
}

// AbstractSelect is spec §4.E's abstract select: everything the
// planner needs to synthesize one SELECT statement, including any
// joins and sub-selects its predicate or selection pulls in.
type AbstractSelect struct {
	Entity    string // the entity Predicate/OrderBy paths are rooted at
	Table     string
	Selection Selection
	Predicate access.Predicate
	OrderBy   []OrderTerm
	Offset    *int
	Limit     *int
}

// ColumnValue is one column assignment in an Insert row or an Update's
// SET list.
type ColumnValue struct {
	Column string
	Value  any
}

// NestedOp describes a one-to-many cascade attached to an Update: the
// child relation field name plus the rows to create, update, or
// delete, each scoped to the parent row's primary key (spec §4.E
// "Abstract mutations").
type NestedOp struct {
	Relation string
	Creates  []Insert
	Updates  []Update
	Deletes  []Delete
}

// Insert is spec §4.E's abstract insert.
type Insert struct {
	Entity             string
	Table              string
	Rows               [][]ColumnValue
	Selection          Selection
	PrecheckPredicates []access.Predicate
}

// Update is spec §4.E's abstract update.
type Update struct {
	Entity             string
	Table              string
	Predicate          access.Predicate
	ColumnValues       []ColumnValue
	Selection          Selection
	Nested             []NestedOp
	PrecheckPredicates []access.Predicate
}

// Delete is spec §4.E's abstract delete.
type Delete struct {
	Entity             string
	Table              string
	Predicate          access.Predicate
	Selection          Selection
	PrecheckPredicates []access.Predicate
}

// TransactionStep is one statement in a TransactionScript: either a
// directly executable SQL+args pair, or one whose args reference a
// prior step's output row by index and column name (spec §4.E "Plan
// shape").
type TransactionStep struct {
	SQL       string
	Args      []any
	DependsOn []StepRef
}

// StepRef points at a value produced by an earlier step: its row index
// within that step's result set, and the column to read.
type StepRef struct {
	Step   int
	Row    int
	Column string
}

// TransactionScript is an ordered sequence of steps executed inside a
// single transaction.
type TransactionScript struct {
	Steps []TransactionStep
}

// ErrorKind is the closed set of runtime (as opposed to compile-time)
// failures a plan execution can surface (spec §7).
type ErrorKind int

const (
	Authorization ErrorKind = iota
	Validation
	Database
	Serialization
)

// ExecutionError wraps a runtime fault with its kind, so a host can
// distinguish "access denied" from "bad input" from "the database
// said no" without string-matching.
type ExecutionError struct {
	Kind ErrorKind
	Err  error
}

func (e *ExecutionError) Error() string { return e.Err.Error() }
func (e *ExecutionError) Unwrap() error { return e.Err }
