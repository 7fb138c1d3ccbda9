package model

import (
	"testing"

	"github.com/exoql/exocore/lang/ast"
	"github.com/exoql/exocore/lang/typecheck"
	"github.com/stretchr/testify/require"
)

func typeRef(name string, optional, list bool) *ast.TypeRef {
	return &ast.TypeRef{Name: name, Optional: optional, List: list}
}

func ann(name string) *ast.Annotation { return &ast.Annotation{Name: name, Params: ast.NoParams{}} }

func buildSystem(t *testing.T, sys *ast.System) *typecheck.TypecheckedSystem {
	t.Helper()
	out, diags := typecheck.Build([]typecheck.Plugin{typecheck.PostgresPlugin}, sys)
	require.False(t, diags.HasErrors(), diags)
	require.NotNil(t, out)
	return out
}

func TestBuildMinimalEntity(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{{
				Name: "Concert",
				Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "title", Type: typeRef("String", false, false)},
				},
			}},
		}},
	}
	tc := buildSystem(t, sys)
	res, err := Build(tc)
	require.NoError(t, err)
	require.NotNil(t, res)

	tbl, ok := res.DB.Table("concerts")
	require.True(t, ok)
	require.Len(t, tbl.PKColumns(), 1)
	require.Equal(t, "id", tbl.PKColumns()[0].Name)

	id, ok := res.Entities.ByName("Concert")
	require.True(t, ok)
	ent := res.Entities.Get(id)
	require.Equal(t, "concerts", ent.Table.Name)
	f, ok := ent.Field("title")
	require.True(t, ok)
	require.Equal(t, Plain, f.Type.Shape)
	require.Equal(t, "String", f.Type.PrimName)
}

func TestBuildManyToOneNoReciprocal(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{
				{Name: "Venue", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "name", Type: typeRef("String", false, false)},
				}},
				{Name: "Concert", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "venue", Type: typeRef("Venue", false, false)},
				}},
			},
		}},
	}
	tc := buildSystem(t, sys)
	res, err := Build(tc)
	require.NoError(t, err)

	tbl, ok := res.DB.Table("concerts")
	require.True(t, ok)
	col, ok := tbl.Column("venue_id")
	require.True(t, ok)
	require.NotNil(t, col.References)
	require.Equal(t, "venues", col.References.TargetTable)
	require.Equal(t, "id", col.References.TargetColumn)

	cid, _ := res.Entities.ByName("Concert")
	cf, ok := res.Entities.Get(cid).Field("venue")
	require.True(t, ok)
	rel, ok := cf.Relation.(ManyToOneRelation)
	require.True(t, ok)
	require.Equal(t, ManyToOneRequired, rel.Cardinality)
}

func TestBuildOneToOneOwnership(t *testing.T) {
	// Membership.user: User? and User.membership: Membership? are a
	// one-to-one pair; @manyToOne on Membership.user picks it as the
	// column-owning side, so only memberships.user_id should exist.
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{
				{Name: "User", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "membership", Type: typeRef("Membership", true, false)},
				}},
				{Name: "Membership", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "user", Type: typeRef("User", true, false), Annotations: []*ast.Annotation{ann("manyToOne")}},
				}},
			},
		}},
	}
	tc := buildSystem(t, sys)
	res, err := Build(tc)
	require.NoError(t, err)

	mtbl, ok := res.DB.Table("memberships")
	require.True(t, ok)
	col, ok := mtbl.Column("user_id")
	require.True(t, ok)
	require.NotNil(t, col.References)
	require.Contains(t, col.UniqueGroups, "unique_constraint_membership_user")

	utbl, ok := res.DB.Table("users")
	require.True(t, ok)
	_, hasCol := utbl.Column("membership_id")
	require.False(t, hasCol)

	uid, _ := res.Entities.ByName("User")
	uf, ok := res.Entities.Get(uid).Field("membership")
	require.True(t, ok)
	require.Empty(t, uf.ColumnNames)
}

func TestBuildMissingPrimaryKey(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{
				{Name: "Orphan", Fields: []*ast.Field{
					{Name: "name", Type: typeRef("String", false, false)},
				}},
			},
		}},
	}
	tc := buildSystem(t, sys)
	_, err := Build(tc)
	require.Error(t, err)
}
