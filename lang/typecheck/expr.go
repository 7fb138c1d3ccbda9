package typecheck

import (
	"github.com/exoql/exocore/internal/arena"
	"github.com/exoql/exocore/lang/ast"
)

// TypedExpr pairs a source expression with the type it was resolved
// against. It is deliberately thin: the typechecker only establishes
// that the expression is well-typed; compiling it into an executable
// predicate is the access compiler's job (component D).
type TypedExpr struct {
	Expr ast.Expr
	Type arena.Id // arena.NoId for expressions with no single static type (e.g. a bare selection root)
}

// Scope carries the enclosing composite (for `self.` resolution) and
// any higher-order-function parameter bindings in effect while typing
// an expression.
type Scope struct {
	Self   *Composite
	SelfId arena.Id
	Params map[string]arena.Id // bound HOF parameter name -> element composite TypeEnv id
}

// childScope returns a scope with a new HOF parameter bound, per the
// access-compiler rule that nested HOF calls are rejected (so only a
// single-frame lookup is ever needed, spec §9).
func (s Scope) childScope(param string, elem arena.Id) Scope {
	params := make(map[string]arena.Id, len(s.Params)+1)
	for k, v := range s.Params {
		params[k] = v
	}
	params[param] = elem
	return Scope{Self: s.Self, SelfId: s.SelfId, Params: params}
}

// typeExpr types a restricted expression against env/registry/scope,
// returning its resolved type and any diagnostics (spec §4.B).
func (b *Builder) typeExpr(e ast.Expr, scope Scope) (TypedExpr, Diagnostics) {
	switch n := e.(type) {
	case *ast.Literal:
		return b.typeLiteral(n)
	case *ast.Selection:
		return b.typeSelection(n, scope)
	case *ast.Logical:
		return b.typeLogical(n, scope)
	case *ast.Relational:
		return b.typeRelational(n, scope)
	default:
		return TypedExpr{Expr: e, Type: arena.NoId}, Diagnostics{errf(CodeInvalidAccessShape, e.Range(), "unsupported expression shape %T", e)}
	}
}

func (b *Builder) typeLiteral(l *ast.Literal) (TypedExpr, Diagnostics) {
	var prim Primitive
	switch l.Kind {
	case ast.LitString, ast.LitStringList:
		prim = String
	case ast.LitNumber:
		prim = Float
	case ast.LitBool:
		prim = Boolean
	case ast.LitNull:
		return TypedExpr{Expr: l, Type: arena.NoId}, nil
	}
	id, _ := b.env.Lookup(prim.String())
	return TypedExpr{Expr: l, Type: id}, nil
}

// typeSelection types a dotted path, optionally tailed by a
// higher-order call. The first identifier resolves either to `self`
// (when inside an entity context), a bound HOF parameter, or is
// otherwise treated as a context path whose precise type is left to
// the access compiler (it is not an error at this layer: dynamic
// context shapes are only checked against a Context declaration when
// used as a default value, see model's resolveDynamicDefaults). A path
// ending at a list field types to the interned Set<T>/Array(T) wrapper
// rather than to the element type, so a HOF tail can range over it.
func (b *Builder) typeSelection(s *ast.Selection, scope Scope) (TypedExpr, Diagnostics) {
	if len(s.Path) == 0 {
		return TypedExpr{Expr: s, Type: arena.NoId}, Diagnostics{errf(CodeInvalidAccessShape, s.Pos, "empty selection")}
	}
	head := s.Path[0]
	cur, ok := scope.resolveHead(head)
	if !ok {
		// A context selection: its type is resolved against the
		// context declaration elsewhere; here we only validate shape.
		return b.typeHOFTail(s, arena.NoId, scope)
	}
	var diags Diagnostics
	var last *Field
	for _, seg := range s.Path[1:] {
		entry := b.env.Entry(cur)
		if entry.Kind != KindComposite || entry.Composite == nil {
			diags = append(diags, errf(CodeTypeMismatch, s.Pos, "cannot select field %q on non-composite type %q", seg, entry.Name))
			return TypedExpr{Expr: s, Type: arena.NoId}, diags
		}
		f := findField(entry.Composite, seg)
		if f == nil {
			diags = append(diags, errf(CodeUnknownType, s.Pos, "unknown field %q on type %q", seg, entry.Name))
			return TypedExpr{Expr: s, Type: arena.NoId}, diags
		}
		cur = f.Type.Base
		last = f
	}
	if last != nil && last.Type.List {
		wrap := b.env.ArrayOf
		if b.env.Entry(cur).Kind == KindComposite {
			wrap = b.env.SetOf
		}
		if id, err := wrap(cur); err == nil {
			cur = id
		}
	}
	return b.typeHOFTail(s, cur, scope)
}

func (b *Builder) typeHOFTail(s *ast.Selection, leadType arena.Id, scope Scope) (TypedExpr, Diagnostics) {
	if s.Call == nil {
		return TypedExpr{Expr: s, Type: leadType}, nil
	}
	if leadType == arena.NoId {
		return TypedExpr{Expr: s, Type: arena.NoId}, Diagnostics{errf(CodeInvalidAccessShape, s.Call.Pos, "higher-order call %q must be applied to a relation", s.Call.Method)}
	}
	entry := b.env.Entry(leadType)
	if entry.Kind != KindSet && entry.Kind != KindArray {
		return TypedExpr{Expr: s, Type: arena.NoId}, Diagnostics{errf(CodeInvalidAccessShape, s.Call.Pos, "%q is not a relation/list, cannot call %q on it", entry.Name, s.Call.Method)}
	}
	switch s.Call.Method {
	case "some", "all", "none", "any":
	default:
		return TypedExpr{Expr: s, Type: arena.NoId}, Diagnostics{errf(CodeInvalidAccessShape, s.Call.Pos, "unknown higher-order function %q", s.Call.Method)}
	}
	if containsHOF(s.Call.Body) {
		return TypedExpr{Expr: s, Type: arena.NoId}, Diagnostics{errf(CodeInvalidAccessShape, s.Call.Pos, "nested higher-order function calls are not supported")}
	}
	inner := scope.childScope(s.Call.Param, entry.Elem)
	_, diags := b.typeExpr(s.Call.Body, inner)
	boolId, _ := b.env.Lookup(Boolean.String())
	return TypedExpr{Expr: s, Type: boolId}, diags
}

// containsHOF reports whether e contains a nested higher-order call,
// which the access compiler rejects outright (spec §4.D, §9).
func containsHOF(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.Selection:
		return n.Call != nil
	case *ast.Logical:
		for _, a := range n.Args {
			if containsHOF(a) {
				return true
			}
		}
	case *ast.Relational:
		return containsHOF(n.Left) || containsHOF(n.Right)
	}
	return false
}

func (b *Builder) typeLogical(l *ast.Logical, scope Scope) (TypedExpr, Diagnostics) {
	var diags Diagnostics
	for _, a := range l.Args {
		_, d := b.typeExpr(a, scope)
		diags = append(diags, d...)
	}
	boolId, _ := b.env.Lookup(Boolean.String())
	return TypedExpr{Expr: l, Type: boolId}, diags
}

// typeRelational types a binary comparison. Per spec §4.B, a boolean
// selection used as a bare top-level predicate is lifted to
// `selection == true`; this function handles the already-lifted form,
// and LiftBoolean (called by callers before invoking typeExpr on a
// top-level predicate) performs the lift itself.
func (b *Builder) typeRelational(r *ast.Relational, scope Scope) (TypedExpr, Diagnostics) {
	left, dl := b.typeExpr(r.Left, scope)
	right, dr := b.typeExpr(r.Right, scope)
	diags := append(dl, dr...)
	boolId, _ := b.env.Lookup(Boolean.String())
	if left.Type == arena.NoId || right.Type == arena.NoId {
		// One side is a context path whose type is resolved later;
		// admit it here (the access compiler enforces compatibility
		// once the context declaration is in scope).
		return TypedExpr{Expr: r, Type: boolId}, diags
	}
	switch r.Op {
	case ast.OpIn:
		// right must be a list-like type; the receiver (left) is not checked
		rightEntry := b.env.Entry(right.Type)
		if rightEntry.Kind != KindArray && rightEntry.Kind != KindSet {
			diags = append(diags, errf(CodeTypeMismatch, r.Pos, "right-hand side of \"in\" must be a list"))
		}
	case ast.OpLike, ast.OpStartsWith, ast.OpEndsWith:
		leftEntry := b.env.Entry(left.Type)
		if leftEntry.Kind != KindPrimitive || leftEntry.Primitive != String {
			diags = append(diags, errf(CodeTypeMismatch, r.Pos, "%q requires a String receiver", opName(r.Op)))
		}
	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		leftEntry, rightEntry := b.env.Entry(left.Type), b.env.Entry(right.Type)
		if leftEntry.Kind != KindPrimitive || !leftEntry.Primitive.numeric() {
			if !(leftEntry.Kind == KindPrimitive && isOrderable(leftEntry.Primitive)) {
				diags = append(diags, errf(CodeTypeMismatch, r.Pos, "operator %q requires an orderable operand", opName(r.Op)))
			}
		}
		_ = rightEntry
	case ast.OpEq, ast.OpNeq:
		if left.Type != right.Type {
			diags = append(diags, errf(CodeTypeMismatch, r.Pos, "cannot compare incompatible types"))
		}
	}
	return TypedExpr{Expr: r, Type: boolId}, diags
}

func isOrderable(p Primitive) bool {
	switch p {
	case Int, Float, Decimal, LocalTime, LocalDate, LocalDateTime, Instant, String:
		return true
	default:
		return false
	}
}

func opName(op ast.RelationalOp) string {
	switch op {
	case ast.OpIn:
		return "in"
	case ast.OpLike:
		return "like"
	case ast.OpStartsWith:
		return "startsWith"
	case ast.OpEndsWith:
		return "endsWith"
	case ast.OpLt:
		return "<"
	case ast.OpLte:
		return "<="
	case ast.OpGt:
		return ">"
	case ast.OpGte:
		return ">="
	case ast.OpEq:
		return "=="
	case ast.OpNeq:
		return "!="
	}
	return "?"
}

// LiftBoolean lifts a bare boolean-typed top-level predicate `e` into
// `e == true`, per spec §4.B. Called by access-expression compilation
// before descending into a user-written access rule body.
func LiftBoolean(e ast.Expr) ast.Expr {
	if _, isSel := e.(*ast.Selection); !isSel {
		return e
	}
	return &ast.Relational{
		Op:    ast.OpEq,
		Left:  e,
		Right: &ast.Literal{Kind: ast.LitBool, B: true, Pos: e.Range()},
		Pos:   e.Range(),
	}
}

// resolveHead resolves the lead identifier of a selection to either
// `self` or a bound HOF parameter.
func (s Scope) resolveHead(name string) (arena.Id, bool) {
	if name == "self" && s.Self != nil {
		return s.SelfId, true
	}
	if id, ok := s.Params[name]; ok {
		return id, true
	}
	return arena.NoId, false
}

func findField(c *Composite, name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}
