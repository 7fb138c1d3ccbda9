package access

import (
	"testing"

	"github.com/exoql/exocore/lang/ast"
	"github.com/exoql/exocore/lang/typecheck"
	"github.com/exoql/exocore/model"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func typeRef(name string, optional, list bool) *ast.TypeRef {
	return &ast.TypeRef{Name: name, Optional: optional, List: list}
}

func ann(name string) *ast.Annotation { return &ast.Annotation{Name: name, Params: ast.NoParams{}} }

func sel(path ...string) *ast.Selection { return &ast.Selection{Path: path} }

func eq(l, r ast.Expr) *ast.Relational { return &ast.Relational{Op: ast.OpEq, Left: l, Right: r} }

func accessAnn(values map[string]ast.Expr) *ast.Annotation {
	return &ast.Annotation{Name: "access", Params: ast.MappedParams{Values: values}}
}

func buildAndCompile(t *testing.T, sys *ast.System) (*typecheck.TypecheckedSystem, *model.Result, *Store) {
	t.Helper()
	tc, diags := typecheck.Build([]typecheck.Plugin{typecheck.PostgresPlugin}, sys)
	require.False(t, diags.HasErrors(), diags)
	res, err := model.Build(tc)
	require.NoError(t, err)
	store, err := CompileModelAccess(tc, res.Entities)
	require.NoError(t, err)
	return tc, res, store
}

// TestCompilePKResidue checks that a database-form rule comparing
// `self.venue.id` collapses to the local `venue_id` foreign-key column
// rather than carrying a two-segment relation-crossing path.
func TestCompilePKResidue(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{
				{Name: "Venue", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "ownerId", Type: typeRef("Int", false, false)},
				}},
				{Name: "Concert", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "venue", Type: typeRef("Venue", false, false)},
				}, Annotations: []*ast.Annotation{
					accessAnn(map[string]ast.Expr{
						"query": eq(sel("self", "venue", "id"), sel("AuthContext", "venueId")),
					}),
				}},
			},
		}},
	}
	_, res, store := buildAndCompile(t, sys)

	cid, ok := res.Entities.ByName("Concert")
	require.True(t, ok)
	ent := res.Entities.Get(cid)
	require.NotZero(t, ent.Access.Read)

	pred := store.Get(ent.Access.Read)
	cmp, ok := pred.(Compare)
	require.True(t, ok)
	left, ok := cmp.Left.(Path)
	require.True(t, ok)
	require.Equal(t, RootSelf, left.Root)
	require.Equal(t, []string{"venue_id"}, left.Segments, "self.venue.id must collapse to the local FK column")
}

// TestCompileHOFPredicate checks that a `some` call over a one-to-many
// relation compiles to a HOFPredicate that Solve always leaves as
// residue (it can only be resolved by the query planner).
func TestCompileHOFPredicate(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{
				{Name: "Review", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "concert", Type: typeRef("Concert", false, false), Annotations: []*ast.Annotation{ann("manyToOne")}},
					{Name: "approved", Type: typeRef("Boolean", false, false)},
				}},
				{Name: "Concert", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "reviews", Type: typeRef("Review", false, true)},
				}, Annotations: []*ast.Annotation{
					accessAnn(map[string]ast.Expr{
						"query": &ast.Selection{
							Path: []string{"self", "reviews"},
							Call: &ast.HOFCall{
								Method: "some",
								Param:  "r",
								Body:   eq(sel("r", "approved"), &ast.Literal{Kind: ast.LitBool, B: true}),
							},
						},
					}),
				}},
			},
		}},
	}
	_, res, store := buildAndCompile(t, sys)

	cid, ok := res.Entities.ByName("Concert")
	require.True(t, ok)
	ent := res.Entities.Get(cid)
	require.NotZero(t, ent.Access.Read)

	pred := store.Get(ent.Access.Read)
	hof, ok := pred.(HOFPredicate)
	require.True(t, ok)
	require.Equal(t, "some", hof.Method)
	require.Equal(t, []string{"reviews"}, hof.Relation.Segments)

	v := Solve(pred, nopResolver{})
	require.False(t, v.Decided, "a HOF predicate can never be decided without iterating relation rows")
	require.Equal(t, hof, v.Residue)
}

// TestDeriveSlotsFallback checks the default/mutation fallback chain:
// a field with only `default` set answers for every one of the five
// slots it is eligible for.
func TestDeriveSlotsFallback(t *testing.T) {
	sys := &ast.System{
		Modules: []*ast.Module{{
			Name:        "M",
			Annotations: []*ast.Annotation{ann("postgres")},
			Types: []*ast.Type{
				{Name: "Concert", Fields: []*ast.Field{
					{Name: "id", Type: typeRef("Int", false, false), Annotations: []*ast.Annotation{ann("pk")}},
					{Name: "title", Type: typeRef("String", false, false), Annotations: []*ast.Annotation{
						accessAnn(map[string]ast.Expr{
							"default": &ast.Literal{Kind: ast.LitBool, B: true},
						}),
					}},
				}},
			},
		}},
	}
	_, res, store := buildAndCompile(t, sys)

	cid, ok := res.Entities.ByName("Concert")
	require.True(t, ok)
	f, ok := res.Entities.Get(cid).Field("title")
	require.True(t, ok)
	require.NotZero(t, f.Access.Read)
	require.NotZero(t, f.Access.CreationInput)
	require.NotZero(t, f.Access.UpdateInput)
	require.NotZero(t, f.Access.UpdateDatabase)
	require.NotZero(t, f.Access.Delete)
	require.Equal(t, BoolLiteral{Value: true}, store.Get(f.Access.Read))
}

// TestStoreRestrictedSentinel checks that index 0 always denies.
func TestStoreRestrictedSentinel(t *testing.T) {
	store := NewStore()
	require.Equal(t, BoolLiteral{Value: false}, store.Get(0))
	v := Solve(store.Get(0), nopResolver{})
	require.True(t, v.Decided)
	require.False(t, v.Value)
}

// TestSolveCompareContext checks a plain Database-form context
// comparison solves in-memory once the context resolver answers.
func TestSolveCompareContext(t *testing.T) {
	pred := Compare{
		Op:    ast.OpEq,
		Left:  Path{Root: RootSelf, Segments: []string{"ownerId"}},
		Right: Path{Root: RootContext, Name: "AuthContext", Segments: []string{"userId"}},
	}
	v := Solve(pred, stubResolver{self: map[string]cty.Value{"ownerId": cty.NumberIntVal(7)}, ctx: map[string]cty.Value{"userId": cty.NumberIntVal(7)}})
	require.True(t, v.Decided)
	require.True(t, v.Value)
}

type nopResolver struct{}

func (nopResolver) Context(string, []string) (cty.Value, bool) { return cty.NilVal, false }
func (nopResolver) Self(string) (cty.Value, bool)               { return cty.NilVal, false }
func (nopResolver) Param(string, string) (cty.Value, bool)      { return cty.NilVal, false }

type stubResolver struct {
	self map[string]cty.Value
	ctx  map[string]cty.Value
}

func (s stubResolver) Context(name string, path []string) (cty.Value, bool) {
	if len(path) != 1 {
		return cty.NilVal, false
	}
	v, ok := s.ctx[path[0]]
	return v, ok
}
func (s stubResolver) Self(col string) (cty.Value, bool) {
	v, ok := s.self[col]
	return v, ok
}
func (s stubResolver) Param(string, string) (cty.Value, bool) { return cty.NilVal, false }
