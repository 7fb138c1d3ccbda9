package plan

import (
	"fmt"
	"strings"

	"github.com/exoql/exocore/internal/sqlbuild"
)

// BuildSelect renders sel into a single SQL statement plus its bound
// parameters, joining in whatever relations its predicate or selection
// need (spec §4.E "Join synthesis"). Order-by terms name a physical
// table and column directly and add no join.
func BuildSelect(sel *AbstractSelect, cat Catalog, context map[string]any) (string, []any, error) {
	args := &Args{}
	joins := newJoinSet()

	predSQL, err := RenderPredicate(sel.Predicate, sel.Entity, sel.Table, cat, joins, context, args)
	if err != nil {
		return "", nil, err
	}

	selSQL, err := renderSelection(sel.Selection, sel.Table, cat, joins, context, args)
	if err != nil {
		return "", nil, err
	}

	b := sqlbuild.New("SELECT")
	b.Raw(selSQL)
	b.P("FROM").Ident(sel.Table)

	for _, l := range joins.ordered() {
		b.P("LEFT JOIN").Ident(l.ToTable).P("ON")
		b.Raw(quoteIdent(l.FromTable) + "." + quoteIdent(l.FromCol) + " = " + quoteIdent(l.ToTable) + "." + quoteIdent(l.ToCol))
		b.Raw(" ")
	}

	b.P("WHERE").Raw(predSQL).Raw(" ")

	if len(sel.OrderBy) > 0 {
		terms := make([]string, len(sel.OrderBy))
		for i, o := range sel.OrderBy {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = quoteIdent(o.Table) + "." + quoteIdent(o.Column) + " " + dir
		}
		b.P("ORDER BY").Raw(strings.Join(terms, ", ")).Raw(" ")
	}
	if sel.Limit != nil {
		b.P("LIMIT").Raw(args.Add(*sel.Limit)).Raw(" ")
	}
	if sel.Offset != nil {
		b.P("OFFSET").Raw(args.Add(*sel.Offset)).Raw(" ")
	}

	return b.String() + ";", args.Values, nil
}

func renderSelection(sel Selection, table string, cat Catalog, joins *joinSet, context map[string]any, args *Args) (string, error) {
	switch s := sel.(type) {
	case Seq:
		parts := make([]string, len(s.Cols))
		for i, c := range s.Cols {
			rendered, err := renderColumn(c, table, cat, joins, context, args)
			if err != nil {
				return "", err
			}
			parts[i] = rendered
		}
		return strings.Join(parts, ", "), nil
	case Json:
		obj, err := renderJSONObject(s.Fields, table, cat, joins, context, args)
		if err != nil {
			return "", err
		}
		switch s.Card {
		case One:
			return obj + "::text", nil
		default:
			return "COALESCE(json_agg(" + obj + "), '[]'::json)::text", nil
		}
	default:
		return "", fmt.Errorf("plan: unsupported selection %T", sel)
	}
}

func renderColumn(c Column, table string, cat Catalog, joins *joinSet, context map[string]any, args *Args) (string, error) {
	switch v := c.(type) {
	case ColumnRef:
		return quoteIdent(v.Table) + "." + quoteIdent(v.Column), nil
	case SubSelectColumn:
		joins.add(v.Link)
		inner, innerArgs, err := BuildSelect(v.Inner, cat, context)
		if err != nil {
			return "", err
		}
		args.Values = append(args.Values, innerArgs...)
		return "(" + strings.TrimSuffix(inner, ";") + ")", nil
	default:
		return "", fmt.Errorf("plan: unsupported column %T", c)
	}
}

func renderJSONObject(fields []JSONField, table string, cat Catalog, joins *joinSet, context map[string]any, args *Args) (string, error) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		val, err := renderColumn(f.Value, table, cat, joins, context, args)
		if err != nil {
			return "", err
		}
		parts[i] = "'" + f.Key + "', " + val
	}
	return "json_build_object(" + strings.Join(parts, ", ") + ")", nil
}
