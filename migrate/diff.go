package migrate

import (
	"sort"
	"strings"

	"github.com/exoql/exocore/model"
)

// Diff compares two physical schema snapshots and returns the ordered
// edit script that turns old into next (spec §4.F). Table, column,
// unique-constraint and index comparisons all proceed name-keyed, in
// the order names first appear in next then any leftover from old, so
// the result is deterministic across runs over the same pair of
// schemas (spec §9).
func Diff(old, next *model.Database) []SchemaOp {
	var ops []SchemaOp

	oldTables := indexTables(old)
	newTables := indexTables(next)

	for _, name := range tableOrder(old, next) {
		ot, inOld := oldTables[name]
		nt, inNew := newTables[name]
		switch {
		case inNew && !inOld:
			ops = append(ops, CreateTable{Table: nt})
		case inOld && !inNew:
			ops = append(ops, DeleteTable{Table: ot})
		default:
			ops = append(ops, diffTable(ot, nt)...)
		}
	}

	ops = append(ops, diffExtensions(old, next)...)
	return ops
}

func indexTables(db *model.Database) map[string]*model.Table {
	m := make(map[string]*model.Table, len(db.Tables))
	for _, t := range db.Tables {
		m[t.Name] = t
	}
	return m
}

// tableOrder lists every table name next then old, each name appearing
// exactly once, next's declaration order first.
func tableOrder(old, next *model.Database) []string {
	var order []string
	seen := map[string]bool{}
	for _, t := range next.Tables {
		if !seen[t.Name] {
			seen[t.Name] = true
			order = append(order, t.Name)
		}
	}
	for _, t := range old.Tables {
		if !seen[t.Name] {
			seen[t.Name] = true
			order = append(order, t.Name)
		}
	}
	return order
}

func diffTable(old, next *model.Table) []SchemaOp {
	var ops []SchemaOp
	ops = append(ops, diffColumns(old, next)...)
	ops = append(ops, diffUniqueConstraints(old, next)...)
	ops = append(ops, diffIndexes(old, next)...)
	return ops
}

func diffColumns(old, next *model.Table) []SchemaOp {
	var ops []SchemaOp

	oldCols := map[string]*model.Column{}
	for _, c := range old.Columns {
		oldCols[c.Name] = c
	}
	newCols := map[string]*model.Column{}
	for _, c := range next.Columns {
		newCols[c.Name] = c
	}

	for _, name := range columnOrder(old, next) {
		oc, inOld := oldCols[name]
		nc, inNew := newCols[name]
		switch {
		case inNew && !inOld:
			ops = append(ops, CreateColumn{Table: next, Column: nc})
		case inOld && !inNew:
			ops = append(ops, DeleteColumn{Table: old, Column: oc})
		default:
			ops = append(ops, diffColumn(next, oc, nc)...)
		}
	}
	return ops
}

func columnOrder(old, next *model.Table) []string {
	var order []string
	seen := map[string]bool{}
	for _, c := range next.Columns {
		if !seen[c.Name] {
			seen[c.Name] = true
			order = append(order, c.Name)
		}
	}
	for _, c := range old.Columns {
		if !seen[c.Name] {
			seen[c.Name] = true
			order = append(order, c.Name)
		}
	}
	return order
}

// diffColumn compares a column present in both snapshots. A type
// change is emitted as a drop-then-add: this repo never attempts an
// in-place ALTER COLUMN TYPE, which requires a USING clause this
// differ has no basis to synthesize.
func diffColumn(table *model.Table, old, next *model.Column) []SchemaOp {
	if typeChanged(old.Type, next.Type) {
		return []SchemaOp{
			DeleteColumn{Table: table, Column: old},
			CreateColumn{Table: table, Column: next},
		}
	}

	var ops []SchemaOp
	if old.IsNullable && !next.IsNullable {
		ops = append(ops, SetNotNull{Table: table, Column: next})
	} else if !old.IsNullable && next.IsNullable {
		ops = append(ops, UnsetNotNull{Table: table, Column: next})
	}

	if defaultChanged(old.Default, next.Default) {
		if next.Default == nil {
			ops = append(ops, UnsetColumnDefaultValue{Table: table, Column: old})
		} else {
			ops = append(ops, SetColumnDefaultValue{Table: table, Column: next})
		}
	}
	return ops
}

func typeChanged(a, b model.ColumnType) bool {
	return columnTypeSQL(a) != columnTypeSQL(b)
}

func defaultChanged(a, b model.Expr) bool {
	return exprSQL(a) != exprSQL(b)
}

func exprSQL(e model.Expr) string {
	switch v := e.(type) {
	case *model.Literal:
		return "L:" + v.V
	case *model.RawExpr:
		return "R:" + v.X
	default:
		return ""
	}
}

// diffUniqueConstraints compares the named unique-constraint groups
// each table's columns advertise via UniqueGroups.
func diffUniqueConstraints(old, next *model.Table) []SchemaOp {
	oldGroups := uniqueGroupsOf(old)
	newGroups := uniqueGroupsOf(next)

	var names []string
	seen := map[string]bool{}
	for _, c := range next.Columns {
		for _, g := range c.UniqueGroups {
			if !seen[g] {
				seen[g] = true
				names = append(names, g)
			}
		}
	}
	for _, c := range old.Columns {
		for _, g := range c.UniqueGroups {
			if !seen[g] {
				seen[g] = true
				names = append(names, g)
			}
		}
	}

	var ops []SchemaOp
	for _, name := range names {
		oc, inOld := oldGroups[name]
		nc, inNew := newGroups[name]
		switch {
		case inNew && !inOld:
			ops = append(ops, CreateUniqueConstraint{Table: next, Name: name, Columns: nc})
		case inOld && !inNew:
			ops = append(ops, RemoveUniqueConstraint{Table: old, Name: name})
		case inNew && inOld && !stringsEqual(oc, nc):
			ops = append(ops, RemoveUniqueConstraint{Table: old, Name: name})
			ops = append(ops, CreateUniqueConstraint{Table: next, Name: name, Columns: nc})
		}
	}
	return ops
}

func uniqueGroupsOf(t *model.Table) map[string][]string {
	m := map[string][]string{}
	for _, c := range t.Columns {
		for _, g := range c.UniqueGroups {
			m[g] = append(m[g], c.Name)
		}
	}
	for _, cols := range m {
		sort.Strings(cols)
	}
	return m
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func diffIndexes(old, next *model.Table) []SchemaOp {
	oldIdx := map[string]*model.Index{}
	for _, i := range old.Indexes {
		oldIdx[i.Name] = i
	}
	newIdx := map[string]*model.Index{}
	for _, i := range next.Indexes {
		newIdx[i.Name] = i
	}

	var names []string
	seen := map[string]bool{}
	for _, i := range next.Indexes {
		if !seen[i.Name] {
			seen[i.Name] = true
			names = append(names, i.Name)
		}
	}
	for _, i := range old.Indexes {
		if !seen[i.Name] {
			seen[i.Name] = true
			names = append(names, i.Name)
		}
	}

	var ops []SchemaOp
	for _, name := range names {
		oi, inOld := oldIdx[name]
		ni, inNew := newIdx[name]
		switch {
		case inNew && !inOld:
			ops = append(ops, CreateIndex{Table: next, Index: ni})
		case inOld && !inNew:
			ops = append(ops, RemoveIndex{Table: old, Index: oi})
		case inNew && inOld && (!stringsEqual(oi.Columns, ni.Columns) || oi.Kind != ni.Kind || oi.DistanceFunc != ni.DistanceFunc):
			ops = append(ops, RemoveIndex{Table: old, Index: oi})
			ops = append(ops, CreateIndex{Table: next, Index: ni})
		}
	}
	return ops
}

// diffExtensions scans both schemas for extension-requiring column
// types (vector, pgcrypto's gen_random_uuid() default) and emits
// install/removal ops for whichever extension's need appeared or
// disappeared entirely across the schema.
func diffExtensions(old, next *model.Database) []SchemaOp {
	oldExt := extensionsNeeded(old)
	newExt := extensionsNeeded(next)

	var ops []SchemaOp
	for _, name := range []string{"pgcrypto", "vector"} {
		if newExt[name] && !oldExt[name] {
			ops = append(ops, CreateExtension{Name: name})
		} else if oldExt[name] && !newExt[name] {
			ops = append(ops, RemoveExtension{Name: name})
		}
	}
	return ops
}

func extensionsNeeded(db *model.Database) map[string]bool {
	need := map[string]bool{}
	for _, t := range db.Tables {
		for _, c := range t.Columns {
			switch c.Type.(type) {
			case model.VectorType:
				need["vector"] = true
			case model.UUIDType:
				need["pgcrypto"] = true
			}
			if raw, ok := c.Default.(*model.RawExpr); ok && strings.Contains(raw.X, "gen_random_uuid") {
				need["pgcrypto"] = true
			}
		}
	}
	return need
}
