package plan

import (
	"fmt"
	"strings"

	"github.com/exoql/exocore/internal/sqlbuild"
)

// BuildInsert renders one row of ins into an INSERT statement
// returning its own row back out (so a caller can read the generated
// PK and feed it to nested/dependent steps).
func BuildInsert(ins Insert, row []ColumnValue) (string, []any) {
	args := &Args{}
	cols := make([]string, len(row))
	placeholders := make([]string, len(row))
	for i, cv := range row {
		cols[i] = cv.Column
		placeholders[i] = args.Add(cv.Value)
	}

	b := sqlbuild.New("INSERT INTO")
	b.Ident(ins.Table)
	b.Wrap(func(b *sqlbuild.Builder) {
		b.MapComma(len(cols), func(i int, b *sqlbuild.Builder) { b.Ident(cols[i]) })
	})
	b.P("VALUES")
	b.Wrap(func(b *sqlbuild.Builder) {
		for i, p := range placeholders {
			if i > 0 {
				b.Comma()
			}
			b.Raw(p + " ")
		}
	})
	b.P("RETURNING *")
	return b.String() + ";", args.Values
}

// BuildUpdate renders an Update's column assignments and predicate
// into an UPDATE statement. Nested cascades are returned separately as
// their own TransactionStep entries by BuildUpdateScript, since each
// depends on this statement's affected row ids.
func BuildUpdate(u Update, cat Catalog, context map[string]any) (string, []any, error) {
	args := &Args{}
	joins := newJoinSet()

	predSQL, err := RenderPredicate(u.Predicate, u.Entity, u.Table, cat, joins, context, args)
	if err != nil {
		return "", nil, err
	}
	if len(joins.links) > 0 {
		return "", nil, fmt.Errorf("plan: UPDATE predicate cannot require a join (%d joins)", len(joins.links))
	}

	b := sqlbuild.New("UPDATE")
	b.Ident(u.Table).P("SET")
	for i, cv := range u.ColumnValues {
		if i > 0 {
			b.Comma()
		}
		b.Ident(cv.Column).Raw("= " + args.Add(cv.Value) + " ")
	}
	b.P("WHERE").Raw(predSQL)
	return b.String() + ";", args.Values, nil
}

// BuildDelete renders a Delete's predicate into a DELETE statement.
func BuildDelete(d Delete, cat Catalog, context map[string]any) (string, []any, error) {
	args := &Args{}
	joins := newJoinSet()

	predSQL, err := RenderPredicate(d.Predicate, d.Entity, d.Table, cat, joins, context, args)
	if err != nil {
		return "", nil, err
	}
	if len(joins.links) > 0 {
		return "", nil, fmt.Errorf("plan: DELETE predicate cannot require a join (%d joins)", len(joins.links))
	}

	b := sqlbuild.New("DELETE FROM")
	b.Ident(d.Table).P("WHERE").Raw(predSQL)
	return b.String() + ";", args.Values, nil
}

// BuildUpdateScript assembles u and every row of its nested cascades
// into a TransactionScript: the parent UPDATE runs first, then each
// nested create/update/delete. Nested creates reference the parent's
// primary key via a StepRef rather than a literal value; nested
// updates and deletes are rendered from their own predicates only and
// carry no reference to the parent step.
func BuildUpdateScript(u Update, pkColumn string, cat Catalog, context map[string]any) (*TransactionScript, error) {
	sql, args, err := BuildUpdate(u, cat, context)
	if err != nil {
		return nil, err
	}
	script := &TransactionScript{Steps: []TransactionStep{{SQL: sql, Args: args}}}
	parentStep := 0

	for _, nested := range u.Nested {
		for _, ins := range nested.Creates {
			for _, r := range ins.Rows {
				r = withParentRef(r, nested.Relation, parentStep, pkColumn)
				stmt, insArgs := BuildInsert(ins, r)
				script.Steps = append(script.Steps, TransactionStep{
					SQL:       stmt,
					Args:      insArgs,
					DependsOn: []StepRef{{Step: parentStep, Row: 0, Column: pkColumn}},
				})
			}
		}
		for _, upd := range nested.Updates {
			stmt, updArgs, err := BuildUpdate(upd, cat, context)
			if err != nil {
				return nil, err
			}
			script.Steps = append(script.Steps, TransactionStep{SQL: stmt, Args: updArgs})
		}
		for _, del := range nested.Deletes {
			stmt, delArgs, err := BuildDelete(del, cat, context)
			if err != nil {
				return nil, err
			}
			script.Steps = append(script.Steps, TransactionStep{SQL: stmt, Args: delArgs})
		}
	}
	return script, nil
}

// withParentRef finds the column in row that names the parent foreign
// key (lower-cased relation name + "_" + pkColumn) and replaces its
// value with a StepRef to the parent step's generated id, for the
// executor to substitute; the step's DependsOn records the same
// dependency.
func withParentRef(row []ColumnValue, relation string, parentStep int, pkColumn string) []ColumnValue {
	fkName := strings.ToLower(relation) + "_" + pkColumn
	for i, cv := range row {
		if cv.Column == fkName {
			row[i].Value = StepRef{Step: parentStep, Row: 0, Column: pkColumn}
		}
	}
	return row
}
