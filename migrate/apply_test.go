package migrate

import (
	"bytes"
	"testing"

	"github.com/exoql/exocore/model"
	"github.com/stretchr/testify/require"
)

func TestScriptStatementsOrdering(t *testing.T) {
	table := &model.Table{Name: "memberships", Columns: []*model.Column{pkCol("id")}}
	fkCol := &model.Column{
		Name:       "user_id",
		Type:       model.IntType{Bits: 32},
		References: &model.ColumnRef{Group: "user", TargetTable: "users", TargetColumn: "id"},
	}
	script := Script{Ops: []SchemaOp{CreateColumn{Table: table, Column: fkCol}}}

	stmts, err := script.Statements(true)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	require.Contains(t, stmts[0], "ADD COLUMN")
	require.Contains(t, stmts[1], "ADD CONSTRAINT")
}

func TestScriptStatementsRefusesDestructive(t *testing.T) {
	script := Script{Ops: []SchemaOp{DeleteTable{Table: &model.Table{Name: "logs"}}}}
	_, err := script.Statements(false)
	require.Error(t, err)

	stmts, err := script.Statements(true)
	require.NoError(t, err)
	require.Equal(t, []string{`DROP TABLE "logs" CASCADE;`}, stmts)
}

func TestScriptWriteCommentsOutDestructive(t *testing.T) {
	script := Script{Ops: []SchemaOp{DeleteTable{Table: &model.Table{Name: "logs"}}}}

	var buf bytes.Buffer
	require.NoError(t, script.Write(&buf, false))
	require.Contains(t, buf.String(), `-- DROP TABLE "logs" CASCADE;`)

	buf.Reset()
	require.NoError(t, script.Write(&buf, true))
	require.NotContains(t, buf.String(), "-- ")
	require.Contains(t, buf.String(), `DROP TABLE "logs" CASCADE;`)
}
