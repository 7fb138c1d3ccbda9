package plan

import (
	"testing"

	"github.com/exoql/exocore/access"
	"github.com/exoql/exocore/lang/ast"
	"github.com/stretchr/testify/require"
)

// fixtureCatalog is a small hand-built Catalog, grounded in the same
// table-driven-fixture style the teacher uses for its planner tests
// (sql/postgres/migrate_test.go builds schema.Table values by hand
// rather than running a live differ).
type fixtureCatalog struct {
	tables  map[string]string
	columns map[string]map[string]string
	links   map[string]map[string]linkSpec
}

type linkSpec struct {
	link   Link
	target string
}

func (c fixtureCatalog) TableForEntity(e string) (string, bool) {
	t, ok := c.tables[e]
	return t, ok
}

func (c fixtureCatalog) ColumnForField(entity, field string) (string, string, bool) {
	table, ok := c.tables[entity]
	if !ok {
		return "", "", false
	}
	col, ok := c.columns[entity][field]
	return table, col, ok
}

func (c fixtureCatalog) RelationLink(entity, field string) (Link, string, bool) {
	ls, ok := c.links[entity][field]
	return ls.link, ls.target, ok
}

func publicationCatalog() fixtureCatalog {
	return fixtureCatalog{
		tables: map[string]string{"Publication": "publications", "User": "users"},
		columns: map[string]map[string]string{
			"Publication": {"id": "id", "authorId": "author_id"},
			"User":        {"id": "id", "age": "age"},
		},
		links: map[string]map[string]linkSpec{
			"Publication": {
				"author": {link: Link{FromCol: "author_id", ToTable: "users", ToCol: "id"}, target: "User"},
			},
		},
	}
}

// TestRenderPredicateCrossTableCompare mirrors spec §8 scenario 6: a
// many-to-one path comparison renders as a join-qualified column
// reference, with the join itself recorded for the caller to emit.
func TestRenderPredicateCrossTableCompare(t *testing.T) {
	cat := publicationCatalog()
	pred := access.Compare{
		Op:    ast.OpLt,
		Left:  access.Path{Root: access.RootSelf, Entity: "Publication", Segments: []string{"author", "age"}},
		Right: access.Literal{V: float64(2)},
	}

	joins := newJoinSet()
	args := &Args{}
	sql, err := RenderPredicate(pred, "Publication", "publications", cat, joins, nil, args)
	require.NoError(t, err)
	require.Equal(t, `"users"."age" < $1`, sql)
	require.Equal(t, []any{float64(2)}, args.Values)

	ordered := joins.ordered()
	require.Len(t, ordered, 1)
	require.Equal(t, Link{FromTable: "publications", FromCol: "author_id", ToTable: "users", ToCol: "id"}, ordered[0])
}

// TestRenderHOFSome mirrors spec §8 scenario 5: a `some` call over a
// one-to-many relation compiles to a correlated EXISTS.
func TestRenderHOFSome(t *testing.T) {
	cat := fixtureCatalog{
		tables: map[string]string{"Author": "authors", "Publication": "publications"},
		columns: map[string]map[string]string{
			"Publication": {"royalty": "royalty"},
		},
		links: map[string]map[string]linkSpec{
			"Author": {
				"publications": {link: Link{FromCol: "id", ToTable: "publications", ToCol: "author_id"}, target: "Publication"},
			},
		},
	}

	pred := access.HOFPredicate{
		Method:   "some",
		Relation: access.Path{Root: access.RootSelf, Entity: "Author", Segments: []string{"publications"}},
		Param:    "p",
		Body: access.Compare{
			Op:    ast.OpEq,
			Left:  access.Path{Root: access.RootParam, Name: "p", Entity: "Publication", Segments: []string{"royalty"}},
			Right: access.Path{Root: access.RootContext, Name: "AccessContext", Segments: []string{"id"}},
		},
	}

	joins := newJoinSet()
	args := &Args{}
	sql, err := RenderPredicate(pred, "Author", "authors", cat, joins, map[string]any{"AccessContext.id": 100}, args)
	require.NoError(t, err)
	require.Equal(t,
		`EXISTS (SELECT 1 FROM "publications" WHERE "publications"."author_id" = "authors"."id" AND ("publications"."royalty" = $1))`,
		sql)
	require.Equal(t, []any{100}, args.Values)
	require.Empty(t, joins.ordered(), "the HOF's own join stays scoped inside the EXISTS, not hoisted to the outer plan")
}

// TestBuildSelectSeq checks a minimal Seq selection renders a full
// SELECT with join and WHERE clause.
func TestBuildSelectSeq(t *testing.T) {
	cat := publicationCatalog()
	sel := &AbstractSelect{
		Entity: "Publication",
		Table:  "publications",
		Selection: Seq{Cols: []Column{
			ColumnRef{Table: "publications", Column: "id"},
			ColumnRef{Table: "users", Column: "age"},
		}},
		Predicate: access.Compare{
			Op:    ast.OpLt,
			Left:  access.Path{Root: access.RootSelf, Entity: "Publication", Segments: []string{"author", "age"}},
			Right: access.Literal{V: float64(2)},
		},
	}

	sql, args, err := BuildSelect(sel, cat, nil)
	require.NoError(t, err)
	require.Equal(t,
		`SELECT "publications"."id", "users"."age" FROM "publications" `+
			`LEFT JOIN "users" ON "publications"."author_id" = "users"."id" `+
			`WHERE "users"."age" < $1;`,
		sql)
	require.Equal(t, []any{float64(2)}, args)
}

func TestJoinSetDeterministicOrder(t *testing.T) {
	js := newJoinSet()
	js.add(Link{FromTable: "t", FromCol: "b_id", ToTable: "bravo", ToCol: "id"})
	js.add(Link{FromTable: "t", FromCol: "a_id", ToTable: "alpha", ToCol: "id"})
	ordered := js.ordered()
	require.Len(t, ordered, 2)
	require.Equal(t, "alpha", ordered[0].ToTable)
	require.Equal(t, "bravo", ordered[1].ToTable)
}
