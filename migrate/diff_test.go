package migrate

import (
	"testing"

	"github.com/exoql/exocore/model"
	"github.com/stretchr/testify/require"
)

func col(name string, typ model.ColumnType, nullable bool) *model.Column {
	return &model.Column{Name: name, Type: typ, IsNullable: nullable}
}

func pkCol(name string) *model.Column {
	return &model.Column{Name: name, Type: model.IntType{Bits: 32}, IsPK: true}
}

// TestDiffCreateTable checks scenario 1: a brand-new table diffs from
// an empty database to a single CreateTable op whose SQL collapses
// the integer PK to SERIAL.
func TestDiffCreateTable(t *testing.T) {
	concerts := &model.Table{
		Name: "concerts",
		Columns: []*model.Column{
			pkCol("id"),
			col("title", model.StringType{}, false),
			col("published", model.BooleanType{}, false),
		},
	}
	next := &model.Database{Tables: []*model.Table{concerts}}
	old := &model.Database{}

	ops := Diff(old, next)
	require.Len(t, ops, 1)
	create, ok := ops[0].(CreateTable)
	require.True(t, ok)
	require.False(t, create.Destructive())

	stmt := create.ToSQL()
	require.Equal(t,
		`CREATE TABLE "concerts" ("id" SERIAL PRIMARY KEY, "title" TEXT NOT NULL, "published" BOOLEAN NOT NULL);`,
		stmt.Stmt)
	require.Empty(t, stmt.Post)
}

// TestDiffDeleteTableReverse checks scenario 1's reverse direction.
func TestDiffDeleteTableReverse(t *testing.T) {
	concerts := &model.Table{Name: "concerts", Columns: []*model.Column{pkCol("id")}}
	old := &model.Database{Tables: []*model.Table{concerts}}
	next := &model.Database{}

	ops := Diff(old, next)
	require.Len(t, ops, 1)
	del, ok := ops[0].(DeleteTable)
	require.True(t, ok)
	require.True(t, del.Destructive())
	require.Equal(t, `DROP TABLE "concerts" CASCADE;`, del.ToSQL().Stmt)
}

// TestDiffAddOneToOne checks scenario 2: a new FK column carries both
// a unique constraint and a foreign-key constraint as a post
// statement, named per the table/field convention.
func TestDiffAddOneToOne(t *testing.T) {
	userIDCol := &model.Column{
		Name:         "user_id",
		Type:         model.IntType{Bits: 32},
		IsNullable:   false,
		UniqueGroups: []string{"unique_constraint_membership_user"},
		References:   &model.ColumnRef{Group: "user", TargetTable: "users", TargetColumn: "id"},
		// fkConstraintName derives from the column name, not Group.
	}
	memberships := &model.Table{Name: "memberships", Columns: []*model.Column{pkCol("id")}}
	membershipsNext := &model.Table{Name: "memberships", Columns: []*model.Column{pkCol("id"), userIDCol}}

	old := &model.Database{Tables: []*model.Table{memberships}}
	next := &model.Database{Tables: []*model.Table{membershipsNext}}

	ops := Diff(old, next)
	require.Len(t, ops, 2)

	create, ok := ops[0].(CreateColumn)
	require.True(t, ok)
	stmt := create.ToSQL()
	require.Equal(t, `ALTER TABLE "memberships" ADD COLUMN "user_id" INT NOT NULL;`, stmt.Stmt)
	require.Equal(t, []string{
		`ALTER TABLE "memberships" ADD CONSTRAINT "memberships_user_id_fk" FOREIGN KEY ("user_id") REFERENCES "users" ("id");`,
	}, stmt.Post)

	uniq, ok := ops[1].(CreateUniqueConstraint)
	require.True(t, ok)
	require.Equal(t, "unique_constraint_membership_user", uniq.Name)
	require.Equal(t,
		`ALTER TABLE "memberships" ADD CONSTRAINT "unique_constraint_membership_user" UNIQUE ("user_id");`,
		uniq.ToSQL().Stmt)
}

// TestDiffDefaultValueTransitions checks scenario 3.
func TestDiffDefaultValueTransitions(t *testing.T) {
	users := func(def model.Expr) *model.Table {
		return &model.Table{Name: "users", Columns: []*model.Column{
			pkCol("id"),
			{Name: "role", Type: model.StringType{}, Default: def},
		}}
	}

	old := &model.Database{Tables: []*model.Table{users(nil)}}
	next := &model.Database{Tables: []*model.Table{users(&model.Literal{V: "USER"})}}

	ops := Diff(old, next)
	require.Len(t, ops, 1)
	set, ok := ops[0].(SetColumnDefaultValue)
	require.True(t, ok)
	require.Equal(t, `ALTER TABLE "users" ALTER COLUMN "role" SET DEFAULT 'USER'::text;`, set.ToSQL().Stmt)

	verifiedTable := func(b bool) *model.Table {
		return &model.Table{Name: "users", Columns: []*model.Column{
			pkCol("id"),
			{Name: "verified", Type: model.BooleanType{}, Default: &model.Literal{V: boolStr(b)}},
		}}
	}
	old = &model.Database{Tables: []*model.Table{verifiedTable(false)}}
	next = &model.Database{Tables: []*model.Table{verifiedTable(true)}}
	ops = Diff(old, next)
	require.Len(t, ops, 1)
	set, ok = ops[0].(SetColumnDefaultValue)
	require.True(t, ok)
	require.Equal(t, `ALTER TABLE "users" ALTER COLUMN "verified" SET DEFAULT true;`, set.ToSQL().Stmt)

	old = &model.Database{Tables: []*model.Table{users(&model.Literal{V: "USER"})}}
	next = &model.Database{Tables: []*model.Table{users(nil)}}
	ops = Diff(old, next)
	require.Len(t, ops, 1)
	unset, ok := ops[0].(UnsetColumnDefaultValue)
	require.True(t, ok)
	require.Equal(t, `ALTER TABLE "users" ALTER COLUMN "role" DROP DEFAULT;`, unset.ToSQL().Stmt)
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// TestDiffNullabilityTransitions checks scenario 4.
func TestDiffNullabilityTransitions(t *testing.T) {
	logs := func(nullable bool) *model.Table {
		return &model.Table{Name: "logs", Columns: []*model.Column{
			pkCol("id"),
			{Name: "level", Type: model.StringType{}, IsNullable: nullable},
		}}
	}

	old := &model.Database{Tables: []*model.Table{logs(true)}}
	next := &model.Database{Tables: []*model.Table{logs(false)}}
	ops := Diff(old, next)
	require.Len(t, ops, 1)
	set, ok := ops[0].(SetNotNull)
	require.True(t, ok)
	require.Equal(t, `ALTER TABLE "logs" ALTER COLUMN "level" SET NOT NULL;`, set.ToSQL().Stmt)

	old, next = next, old
	ops = Diff(old, next)
	require.Len(t, ops, 1)
	unset, ok := ops[0].(UnsetNotNull)
	require.True(t, ok)
	require.Equal(t, `ALTER TABLE "logs" ALTER COLUMN "level" DROP NOT NULL;`, unset.ToSQL().Stmt)
}

// TestDiffIdempotence checks the universal property: diff(S, S) is empty.
func TestDiffIdempotence(t *testing.T) {
	s := &model.Database{Tables: []*model.Table{
		{
			Name: "concerts",
			Columns: []*model.Column{
				pkCol("id"),
				col("title", model.StringType{}, false),
			},
			Indexes: []*model.Index{{Name: "concerts_title_idx", Columns: []string{"title"}, Kind: model.BTree}},
		},
	}}
	require.Empty(t, Diff(s, s))
}

// TestDiffExtensionUsage checks that introducing a vector column
// requires installing the vector extension, and removing the last one
// drops it again.
func TestDiffExtensionUsage(t *testing.T) {
	withVector := &model.Database{Tables: []*model.Table{{
		Name: "embeddings",
		Columns: []*model.Column{
			pkCol("id"),
			col("vec", model.VectorType{Size: 3, DistanceFunc: "vector_l2_ops"}, false),
		},
	}}}
	empty := &model.Database{Tables: []*model.Table{{
		Name:    "embeddings",
		Columns: []*model.Column{pkCol("id")},
	}}}

	ops := Diff(empty, withVector)
	require.Len(t, ops, 2)
	_, ok := ops[0].(CreateColumn)
	require.True(t, ok)
	ext, ok := ops[1].(CreateExtension)
	require.True(t, ok)
	require.Equal(t, "vector", ext.Name)

	ops = Diff(withVector, empty)
	require.Len(t, ops, 2)
	_, ok = ops[0].(DeleteColumn)
	require.True(t, ok)
	rm, ok := ops[1].(RemoveExtension)
	require.True(t, ok)
	require.Equal(t, "vector", rm.Name)
}
