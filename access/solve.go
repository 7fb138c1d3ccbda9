package access

import (
	"strings"

	"github.com/exoql/exocore/lang/ast"
	"github.com/zclconf/go-cty/cty"
)

// Resolver supplies the concrete values a Solve pass needs against a
// specific request: the request context, the bound HOF parameter rows
// (absent here; Solve never descends into a relation), and the
// persisted row's own scalar columns. A Resolver never needs to answer
// for a path that crosses a relation — Solve always leaves those as
// residue for the query planner to push down as SQL (spec §4.D/§4.E).
type Resolver interface {
	// Context resolves a named request-context value at path.
	Context(name string, path []string) (cty.Value, bool)
	// Self resolves one of the row's own scalar columns.
	Self(col string) (cty.Value, bool)
	// Param resolves a bound HOF parameter's own scalar column. Solve
	// calls it only for a RootParam path outside a HOFPredicate; the
	// compiler emits such paths only inside a HOFPredicate body, which
	// Solve always leaves as residue.
	Param(name, col string) (cty.Value, bool)
}

// Verdict is the outcome of solving a Predicate against a Resolver:
// either fully decided, or reduced to a residue predicate that still
// needs a join or subselect to finish evaluating.
type Verdict struct {
	Decided bool
	Value   bool
	Residue Predicate
}

func decided(v bool) Verdict { return Verdict{Decided: true, Value: v} }
func residue(p Predicate) Verdict { return Verdict{Residue: p} }

// Solve evaluates p against r as far as it can without crossing a
// relation, per the Input/Precheck forms' own restriction (they never
// contain a relation-crossing path to begin with) and the Database
// form's residue contract: any sub-predicate Solve cannot decide in
// memory is returned as a (possibly simplified) residue Predicate for
// the planner to compile into SQL.
func Solve(p Predicate, r Resolver) Verdict {
	switch n := p.(type) {
	case BoolLiteral:
		return decided(n.Value)
	case Not:
		v := Solve(n.X, r)
		if v.Decided {
			return decided(!v.Value)
		}
		return residue(Not{X: v.Residue})
	case And:
		return solveConjunction(n.Args, r, false)
	case Or:
		return solveConjunction(n.Args, r, true)
	case Compare:
		return solveCompare(n, r)
	case HOFPredicate:
		// Requires iterating relation rows: always left for the planner.
		return residue(n)
	default:
		return residue(p)
	}
}

// solveConjunction solves And (short-circuit=false) and Or
// (short-circuit=true) uniformly: a branch decided to the
// short-circuiting value collapses the whole node; an undecided
// fully-true/false And (or all-false Or) collapses the other way;
// anything left over becomes residue of the same shape.
func solveConjunction(args []Predicate, r Resolver, or bool) Verdict {
	var res []Predicate
	for _, a := range args {
		v := Solve(a, r)
		if v.Decided {
			if v.Value == or {
				return decided(or) // Or found a true, or And found a false
			}
			continue // And found a true (drop it), or Or found a false (drop it)
		}
		res = append(res, v.Residue)
	}
	switch len(res) {
	case 0:
		return decided(!or) // And: every arg true. Or: every arg false.
	case 1:
		return residue(res[0])
	default:
		if or {
			return residue(Or{Args: res})
		}
		return residue(And{Args: res})
	}
}

func solveCompare(c Compare, r Resolver) Verdict {
	lv, lok := resolveOperand(c.Left, r)
	rv, rok := resolveOperand(c.Right, r)
	if !lok || !rok {
		return residue(c)
	}
	ok, decidable := evalCompare(c.Op, lv, rv)
	if !decidable {
		return residue(c)
	}
	return decided(ok)
}

// resolveOperand resolves an Operand to a concrete value, or reports
// false when it names a relation-crossing path Solve cannot answer
// in-memory (left for the planner).
func resolveOperand(op Operand, r Resolver) (cty.Value, bool) {
	switch o := op.(type) {
	case Literal:
		return literalCty(o.V), true
	case Path:
		switch o.Root {
		case RootContext:
			return r.Context(o.Name, o.Segments)
		case RootSelf:
			if len(o.Segments) != 1 {
				return cty.NilVal, false
			}
			return r.Self(o.Segments[0])
		case RootParam:
			if len(o.Segments) != 1 {
				return cty.NilVal, false
			}
			return r.Param(o.Name, o.Segments[0])
		}
	}
	return cty.NilVal, false
}

func literalCty(v any) cty.Value {
	switch x := v.(type) {
	case nil:
		return cty.NilVal
	case string:
		return cty.StringVal(x)
	case float64:
		return cty.NumberFloatVal(x)
	case bool:
		return cty.BoolVal(x)
	case []string:
		vals := make([]cty.Value, len(x))
		for i, s := range x {
			vals[i] = cty.StringVal(s)
		}
		if len(vals) == 0 {
			return cty.ListValEmpty(cty.String)
		}
		return cty.ListVal(vals)
	default:
		return cty.NilVal
	}
}

// evalCompare evaluates a single relational operator over two already-
// resolved cty values. The second return reports whether the
// comparison could be decided at all (a null operand decides nothing
// except == / != against null).
func evalCompare(op ast.RelationalOp, l, r cty.Value) (bool, bool) {
	if l.IsNull() || r.IsNull() {
		switch op {
		case ast.OpEq:
			return l.IsNull() == r.IsNull(), true
		case ast.OpNeq:
			return l.IsNull() != r.IsNull(), true
		default:
			return false, false
		}
	}
	switch op {
	case ast.OpEq:
		return l.RawEquals(r), true
	case ast.OpNeq:
		return !l.RawEquals(r), true
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		if l.Type() != cty.Number || r.Type() != cty.Number {
			return false, false
		}
		lf, _ := l.AsBigFloat().Float64()
		rf, _ := r.AsBigFloat().Float64()
		switch op {
		case ast.OpLt:
			return lf < rf, true
		case ast.OpLte:
			return lf <= rf, true
		case ast.OpGt:
			return lf > rf, true
		default:
			return lf >= rf, true
		}
	case ast.OpIn:
		if !r.CanIterateElements() {
			return false, false
		}
		found := false
		for it := r.ElementIterator(); it.Next(); {
			_, v := it.Element()
			if v.RawEquals(l) {
				found = true
				break
			}
		}
		return found, true
	case ast.OpLike, ast.OpStartsWith, ast.OpEndsWith:
		if l.Type() != cty.String || r.Type() != cty.String {
			return false, false
		}
		ls, rs := l.AsString(), r.AsString()
		switch op {
		case ast.OpStartsWith:
			return strings.HasPrefix(ls, rs), true
		case ast.OpEndsWith:
			return strings.HasSuffix(ls, rs), true
		default: // OpLike: treat as plain substring match, the common case for @access rules
			return strings.Contains(ls, rs), true
		}
	}
	return false, false
}
