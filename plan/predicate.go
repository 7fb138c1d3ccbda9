package plan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/exoql/exocore/access"
	"github.com/exoql/exocore/lang/ast"
)

// Args accumulates positional placeholders ($1, $2, ...) for a plan's
// parameters, in emission order.
type Args struct{ Values []any }

// Add records v and returns its placeholder text.
func (a *Args) Add(v any) string {
	a.Values = append(a.Values, v)
	return "$" + strconv.Itoa(len(a.Values))
}

// renderCtx threads the pieces the predicate renderer needs down
// through recursive calls: the entity the predicate is rooted at, the
// physical table that entity resolves to, the catalog, the join set
// being accumulated, and request-context values already known at
// plan-build time (keyed by "ContextName.field").
type renderCtx struct {
	entity  string
	table   string
	cat     Catalog
	joins   *joinSet
	context map[string]any
}

// RenderPredicate renders a compiled access predicate to a SQL boolean
// expression in join mode (spec §4.E): every relational-path operand
// is resolved to a "table"."column" reference, synthesizing any
// LEFT JOINs it needs along the way via joins. HOFPredicate nodes
// render as a correlated EXISTS over the relation's table, which is
// the only shape spec §4.E's subselect mode can express for a
// quantified sub-collection.
func RenderPredicate(p access.Predicate, entity, table string, cat Catalog, joins *joinSet, context map[string]any, args *Args) (string, error) {
	return renderPredicate(p, renderCtx{entity: entity, table: table, cat: cat, joins: joins, context: context}, args)
}

func renderPredicate(p access.Predicate, rc renderCtx, args *Args) (string, error) {
	switch n := p.(type) {
	case access.BoolLiteral:
		if n.Value {
			return "TRUE", nil
		}
		return "FALSE", nil
	case access.Not:
		inner, err := renderPredicate(n.X, rc, args)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case access.And:
		return renderConjunction(n.Args, rc, args, " AND ")
	case access.Or:
		return renderConjunction(n.Args, rc, args, " OR ")
	case access.Compare:
		return renderCompare(n, rc, args)
	case access.HOFPredicate:
		return renderHOF(n, rc, args)
	default:
		return "", fmt.Errorf("plan: unsupported predicate node %T", p)
	}
}

func renderConjunction(parts []access.Predicate, rc renderCtx, args *Args, sep string) (string, error) {
	rendered := make([]string, len(parts))
	for i, a := range parts {
		s, err := renderPredicate(a, rc, args)
		if err != nil {
			return "", err
		}
		rendered[i] = "(" + s + ")"
	}
	return strings.Join(rendered, sep), nil
}

func renderCompare(c access.Compare, rc renderCtx, args *Args) (string, error) {
	left, err := renderOperand(c.Left, rc, args)
	if err != nil {
		return "", err
	}
	right, err := renderLikeOperand(c.Op, c.Right, rc, args)
	if err != nil {
		return "", err
	}
	op, err := sqlOp(c.Op)
	if err != nil {
		return "", err
	}
	if c.Op == ast.OpIn {
		return left + " " + op + "(" + right + ")", nil
	}
	return left + " " + op + " " + right, nil
}

// renderLikeOperand binds the right-hand operand of a comparison. For
// starts_with/ends_with, a literal string value gets the trailing or
// leading `%` wildcard PostgreSQL's LIKE expects before it is bound as
// a parameter; a like operand is bound as written.
func renderLikeOperand(op ast.RelationalOp, operand access.Operand, rc renderCtx, args *Args) (string, error) {
	lit, ok := operand.(access.Literal)
	if !ok {
		return renderOperand(operand, rc, args)
	}
	s, ok := lit.V.(string)
	if !ok {
		return renderOperand(operand, rc, args)
	}
	switch op {
	case ast.OpStartsWith:
		return args.Add(s + "%"), nil
	case ast.OpEndsWith:
		return args.Add("%" + s), nil
	default:
		return renderOperand(operand, rc, args)
	}
}

func sqlOp(op ast.RelationalOp) (string, error) {
	switch op {
	case ast.OpEq:
		return "=", nil
	case ast.OpNeq:
		return "<>", nil
	case ast.OpLt:
		return "<", nil
	case ast.OpLte:
		return "<=", nil
	case ast.OpGt:
		return ">", nil
	case ast.OpGte:
		return ">=", nil
	case ast.OpIn:
		return "= ANY", nil
	case ast.OpLike, ast.OpStartsWith, ast.OpEndsWith:
		return "LIKE", nil
	default:
		return "", fmt.Errorf("plan: unsupported relational operator %v", op)
	}
}

func renderOperand(op access.Operand, rc renderCtx, args *Args) (string, error) {
	switch v := op.(type) {
	case access.Literal:
		return args.Add(v.V), nil
	case access.Path:
		return renderPath(v, rc, args)
	default:
		return "", fmt.Errorf("plan: unsupported operand %T", op)
	}
}

func renderPath(p access.Path, rc renderCtx, args *Args) (string, error) {
	switch p.Root {
	case access.RootContext:
		key := p.Name
		if len(p.Segments) > 0 {
			key += "." + strings.Join(p.Segments, ".")
		}
		v, ok := rc.context[key]
		if !ok {
			return "", fmt.Errorf("plan: unresolved context path %s", key)
		}
		return args.Add(v), nil
	case access.RootSelf, access.RootParam:
		table, column, hops, ok := resolveTable(rc.cat, rc.table, p.Entity, p.Segments)
		if !ok {
			return "", fmt.Errorf("plan: cannot resolve path %v on %s", p.Segments, p.Entity)
		}
		for _, l := range hops {
			rc.joins.add(l)
		}
		return quoteIdent(table) + "." + quoteIdent(column), nil
	default:
		return "", fmt.Errorf("plan: unknown path root")
	}
}

// renderHOF compiles a some/all/none/any call over a relation into a
// correlated EXISTS (or NOT EXISTS) clause against the relation's own
// table.
func renderHOF(h access.HOFPredicate, rc renderCtx, args *Args) (string, error) {
	link, targetEntity, ok := rc.cat.RelationLink(rc.entity, h.Relation.Segments[0])
	if !ok {
		return "", fmt.Errorf("plan: cannot resolve HOF relation %v", h.Relation.Segments)
	}
	link.FromTable = rc.table

	innerJoins := newJoinSet()
	inner := renderCtx{entity: targetEntity, table: link.ToTable, cat: rc.cat, joins: innerJoins, context: rc.context}
	body, err := renderPredicate(h.Body, inner, args)
	if err != nil {
		return "", err
	}

	from := quoteIdent(link.ToTable)
	for _, l := range innerJoins.ordered() {
		from += fmt.Sprintf(" LEFT JOIN %s ON %s.%s = %s.%s",
			quoteIdent(l.ToTable), quoteIdent(l.FromTable), quoteIdent(l.FromCol), quoteIdent(l.ToTable), quoteIdent(l.ToCol))
	}

	cond := fmt.Sprintf("%s.%s = %s.%s",
		quoteIdent(link.ToTable), quoteIdent(link.ToCol), quoteIdent(link.FromTable), quoteIdent(link.FromCol))
	exists := fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s AND (%s))", from, cond, body)

	switch h.Method {
	case "some", "any":
		return exists, nil
	case "none":
		return "NOT " + exists, nil
	case "all":
		notExists := fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s AND (NOT (%s)))", from, cond, body)
		return notExists, nil
	default:
		return "", fmt.Errorf("plan: unknown HOF method %s", h.Method)
	}
}

func quoteIdent(s string) string { return `"` + s + `"` }
