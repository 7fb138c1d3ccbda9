// Package migrate computes the structural difference between two
// physical schema snapshots (model.Database) and emits it as an
// ordered, destructiveness-tagged SQL edit script (spec §4.F),
// generalizing the teacher's sql/schema/migrate.go Change/Clause
// closed set, sql/postgres/diff.go set-difference algorithm, and
// sql/postgres/migrate.go statement emission into a single dialect
// (this repo targets PostgreSQL exclusively, so there is no separate
// driver-facing schema.Change abstraction to cross).
package migrate

import "github.com/exoql/exocore/model"

// Statement is one SQL op's emission: a main statement plus any
// fragments that must run strictly before or after it (spec §4.F
// point 4 and Glossary "pre/post statements") — e.g. a foreign key is
// added only after every table exists, so it is emitted as a Post
// fragment of the table/column that owns it.
type Statement struct {
	Pre   []string
	Stmt  string
	Post  []string
}

// SchemaOp is the closed set of structural edits the differ emits
// (spec §4.F "operation taxonomy"). Exhaustive matching over this set,
// not open polymorphism, is what lets Diff and the writer stay total.
type SchemaOp interface {
	schemaOp()
	ToSQL() Statement
	// Destructive reports whether executing this op can lose data:
	// DeleteColumn, DeleteTable, RemoveExtension (spec §4.F).
	Destructive() bool
}

// CreateTable adds a new managed table.
type CreateTable struct{ Table *model.Table }

// DeleteTable drops a managed table no longer present in the new
// schema.
type DeleteTable struct{ Table *model.Table }

// CreateColumn adds a column to an existing table.
type CreateColumn struct {
	Table  *model.Table
	Column *model.Column
}

// DeleteColumn drops a column no longer present on the table.
type DeleteColumn struct {
	Table  *model.Table
	Column *model.Column
}

// CreateExtension installs a PostgreSQL extension a column type now
// requires (pgcrypto for gen_random_uuid() defaults, vector for
// Vector columns).
type CreateExtension struct{ Name string }

// RemoveExtension uninstalls an extension no column type needs
// anymore.
type RemoveExtension struct{ Name string }

// CreateUniqueConstraint adds a named unique constraint over one or
// more columns.
type CreateUniqueConstraint struct {
	Table   *model.Table
	Name    string
	Columns []string
}

// RemoveUniqueConstraint drops a named unique constraint.
type RemoveUniqueConstraint struct {
	Table *model.Table
	Name  string
}

// SetColumnDefaultValue sets (or changes) a column's default
// expression.
type SetColumnDefaultValue struct {
	Table  *model.Table
	Column *model.Column
}

// UnsetColumnDefaultValue drops a column's default expression.
type UnsetColumnDefaultValue struct {
	Table  *model.Table
	Column *model.Column
}

// SetNotNull adds a NOT NULL constraint to a column.
type SetNotNull struct {
	Table  *model.Table
	Column *model.Column
}

// UnsetNotNull removes a column's NOT NULL constraint.
type UnsetNotNull struct {
	Table  *model.Table
	Column *model.Column
}

// CreateIndex adds a physical index.
type CreateIndex struct {
	Table *model.Table
	Index *model.Index
}

// RemoveIndex drops a physical index.
type RemoveIndex struct {
	Table *model.Table
	Index *model.Index
}

func (CreateTable) schemaOp()             {}
func (DeleteTable) schemaOp()             {}
func (CreateColumn) schemaOp()            {}
func (DeleteColumn) schemaOp()            {}
func (CreateExtension) schemaOp()         {}
func (RemoveExtension) schemaOp()         {}
func (CreateUniqueConstraint) schemaOp()  {}
func (RemoveUniqueConstraint) schemaOp()  {}
func (SetColumnDefaultValue) schemaOp()   {}
func (UnsetColumnDefaultValue) schemaOp() {}
func (SetNotNull) schemaOp()              {}
func (UnsetNotNull) schemaOp()            {}
func (CreateIndex) schemaOp()             {}
func (RemoveIndex) schemaOp()             {}

func (CreateTable) Destructive() bool             { return false }
func (DeleteTable) Destructive() bool             { return true }
func (CreateColumn) Destructive() bool            { return false }
func (DeleteColumn) Destructive() bool            { return true }
func (CreateExtension) Destructive() bool         { return false }
func (RemoveExtension) Destructive() bool         { return true }
func (CreateUniqueConstraint) Destructive() bool  { return false }
func (RemoveUniqueConstraint) Destructive() bool  { return false }
func (SetColumnDefaultValue) Destructive() bool   { return false }
func (UnsetColumnDefaultValue) Destructive() bool { return false }
func (SetNotNull) Destructive() bool              { return false }
func (UnsetNotNull) Destructive() bool            { return false }
func (CreateIndex) Destructive() bool             { return false }
func (RemoveIndex) Destructive() bool             { return false }
