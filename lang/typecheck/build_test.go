package typecheck

import (
	"testing"

	"github.com/exoql/exocore/lang/ast"
	"github.com/stretchr/testify/require"
)

func typeRef(name string, optional, list bool) *ast.TypeRef {
	return &ast.TypeRef{Name: name, Optional: optional, List: list}
}

func TestBuildMinimalEntity(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{{Name: "postgres", Params: ast.NoParams{}}},
			Types: []*ast.Type{{
				Name: "Concert",
				Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{{Name: "pk", Params: ast.NoParams{}}}},
					{Name: "title", Type: typeRef("String", false, false)},
					{Name: "published", Type: typeRef("Boolean", false, false)},
				},
			}},
		}},
	}
	out, diags := Build([]Plugin{PostgresPlugin}, sys)
	require.False(t, diags.HasErrors(), diags)
	require.NotNil(t, out)

	id, ok := out.Env.Lookup("Concert")
	require.True(t, ok)
	entry := out.Env.Entry(id)
	require.Equal(t, KindComposite, entry.Kind)
	require.Len(t, entry.Composite.Fields, 3)
	require.True(t, entry.Composite.Fields[0].TypeResolved)
	require.Len(t, entry.Composite.Fields[0].Annotations, 1)
	require.Equal(t, "pk", entry.Composite.Fields[0].Annotations[0].Name)
}

func TestBuildUnknownType(t *testing.T) {
	sys := &ast.System{
		Types: []*ast.Type{{
			Name: "Membership",
			Fields: []*ast.Field{
				{Name: "org", Type: typeRef("Organization", false, false)},
			},
		}},
	}
	_, diags := Build(nil, sys)
	require.True(t, diags.HasErrors())
	require.Equal(t, CodeUnknownType, diags[0].Code)
}

func TestBuildDuplicateTypeName(t *testing.T) {
	sys := &ast.System{
		Types: []*ast.Type{
			{Name: "User", Fields: []*ast.Field{{Name: "id", Type: typeRef("Int", false, false)}}},
			{Name: "User", Fields: []*ast.Field{{Name: "id", Type: typeRef("Int", false, false)}}},
		},
	}
	_, diags := Build(nil, sys)
	require.True(t, diags.HasErrors())
}

func TestBuildMutualRecursion(t *testing.T) {
	// User.membership: Membership? and Membership.user: User? are
	// mutually referential; the shallow-insertion step must let both
	// resolve regardless of declaration order.
	sys := &ast.System{
		Types: []*ast.Type{
			{Name: "User", Fields: []*ast.Field{
				{Name: "id", Type: typeRef("Int", false, false)},
				{Name: "membership", Type: typeRef("Membership", true, false)},
			}},
			{Name: "Membership", Fields: []*ast.Field{
				{Name: "id", Type: typeRef("Int", false, false)},
				{Name: "user", Type: typeRef("User", true, false)},
			}},
		},
	}
	out, diags := Build(nil, sys)
	require.False(t, diags.HasErrors(), diags)
	uid, _ := out.Env.Lookup("User")
	mid, _ := out.Env.Lookup("Membership")
	require.Equal(t, KindComposite, out.Env.Entry(uid).Kind)
	require.Equal(t, KindComposite, out.Env.Entry(mid).Kind)
}

func TestLiftBoolean(t *testing.T) {
	sel := &ast.Selection{Path: []string{"self", "published"}}
	lifted := LiftBoolean(sel)
	rel, ok := lifted.(*ast.Relational)
	require.True(t, ok)
	require.Equal(t, ast.OpEq, rel.Op)
	lit, ok := rel.Right.(*ast.Literal)
	require.True(t, ok)
	require.True(t, lit.B)
}
