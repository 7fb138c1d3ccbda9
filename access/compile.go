package access

import (
	"fmt"

	"github.com/exoql/exocore/lang/ast"
	"github.com/exoql/exocore/lang/typecheck"
	"github.com/exoql/exocore/model"
)

// Form is the closed set of predicate grammars spec §4.D admits. Each
// admits a different subset of paths: Input and Precheck never cross a
// relation (no join, no extra row fetch); Database may.
type Form int

const (
	// FormInput checks values about to be written, before they reach
	// the database: used for creation/update input validation.
	FormInput Form = iota
	// FormPrecheck checks the persisted row's own scalar columns plus
	// context, cheaply, before any relation is touched.
	FormPrecheck
	// FormDatabase is the full predicate, compiled down for the query
	// planner to push into SQL (joins, subselects).
	FormDatabase
)

// scope carries the entity a self-path is rooted at, the entity model
// used to walk relation chains, and any bound HOF parameters (param
// name -> entity it ranges over).
type scope struct {
	selfEntity string
	em         *model.EntityModel
	params     map[string]string
}

func (s scope) withParam(name, entity string) scope {
	next := scope{selfEntity: s.selfEntity, em: s.em, params: make(map[string]string, len(s.params)+1)}
	for k, v := range s.params {
		next.params[k] = v
	}
	next.params[name] = entity
	return next
}

// CompileError reports an access rule that cannot be expressed in its
// requested form — e.g. a creation-input rule that crosses a relation.
type CompileError struct {
	Entity, Field, Form string
	Message             string
}

func (e *CompileError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("access: %s.%s (%s): %s", e.Entity, e.Field, e.Form, e.Message)
	}
	return fmt.Sprintf("access: %s (%s): %s", e.Entity, e.Form, e.Message)
}

// CompileModelAccess derives and interns every entity's and field's
// five access slots (spec §4.D), mutating em in place and returning the
// Store the resulting indices reference.
func CompileModelAccess(tc *typecheck.TypecheckedSystem, em *model.EntityModel) (*Store, error) {
	store := NewStore()
	for _, entry := range em.Iter() {
		ent := entry.Val
		typeId, ok := tc.Env.Lookup(ent.Name)
		if !ok {
			continue
		}
		composite := tc.Env.Entry(typeId).Composite

		slots, err := deriveSlots(store, ent.Name, "", composite.Annotations, ent.Name, em)
		if err != nil {
			return nil, err
		}
		ent.Access = slots

		for i, f := range ent.Fields {
			fieldAnns := composite.Fields[i].Annotations
			fSlots, err := deriveSlots(store, ent.Name, f.Name, fieldAnns, ent.Name, em)
			if err != nil {
				return nil, err
			}
			f.Access = fSlots
		}
	}
	return store, nil
}

// deriveSlots computes the five access slots from a (possibly absent)
// `@access` annotation's params. A slot's own key (query, creation,
// update, delete) that is absent falls back to "mutation" (for every
// slot except Read), then "default", then the restricted sentinel
// (spec §9 deny-by-default).
func deriveSlots(store *Store, entityName, fieldName string, anns []*typecheck.ResolvedAnnotation, selfEntity string, em *model.EntityModel) (model.AccessSlots, error) {
	var params map[string]typecheck.TypedExpr
	for _, a := range anns {
		if a.Name == "access" {
			params = a.Params
		}
	}
	if params == nil {
		return model.AccessSlots{}, nil // every slot defaults to the 0 = restricted sentinel
	}

	compileKey := func(keys []string, form Form) (int, error) {
		for _, k := range keys {
			te, ok := params[k]
			if !ok {
				continue
			}
			pred, err := compileTop(te.Expr, scope{selfEntity: selfEntity, em: em}, form)
			if err != nil {
				return 0, &CompileError{Entity: entityName, Field: fieldName, Form: fmt.Sprint(form), Message: err.Error()}
			}
			return store.Intern(pred), nil
		}
		return 0, nil
	}

	var slots model.AccessSlots
	var err error
	if slots.Read, err = compileKey([]string{"query", "default"}, FormDatabase); err != nil {
		return slots, err
	}
	if slots.CreationInput, err = compileKey([]string{"creation", "mutation", "default"}, FormInput); err != nil {
		return slots, err
	}
	if slots.UpdateInput, err = compileKey([]string{"update", "mutation", "default"}, FormInput); err != nil {
		return slots, err
	}
	if slots.UpdateDatabase, err = compileKey([]string{"update", "mutation", "default"}, FormDatabase); err != nil {
		return slots, err
	}
	if slots.Delete, err = compileKey([]string{"delete", "mutation", "default"}, FormDatabase); err != nil {
		return slots, err
	}
	return slots, nil
}

// compileTop lifts a bare boolean selection to `== true` (spec §4.B)
// before compiling it.
func compileTop(e ast.Expr, sc scope, form Form) (Predicate, error) {
	return compileExpr(typecheck.LiftBoolean(e), sc, form)
}

func compileExpr(e ast.Expr, sc scope, form Form) (Predicate, error) {
	switch n := e.(type) {
	case *ast.Literal:
		if n.Kind != ast.LitBool {
			return nil, fmt.Errorf("non-boolean literal used as a predicate")
		}
		return BoolLiteral{Value: n.B}, nil
	case *ast.Logical:
		return compileLogical(n, sc, form)
	case *ast.Relational:
		return compileRelational(n, sc, form)
	case *ast.Selection:
		return compileSelectionPredicate(n, sc, form)
	default:
		return nil, fmt.Errorf("unsupported predicate shape %T", e)
	}
}

func compileLogical(l *ast.Logical, sc scope, form Form) (Predicate, error) {
	args := make([]Predicate, len(l.Args))
	for i, a := range l.Args {
		p, err := compileExpr(a, sc, form)
		if err != nil {
			return nil, err
		}
		args[i] = p
	}
	switch l.Op {
	case ast.LogicalNot:
		return Not{X: args[0]}, nil
	case ast.LogicalAnd:
		return And{Args: args}, nil
	case ast.LogicalOr:
		return Or{Args: args}, nil
	}
	return nil, fmt.Errorf("unknown logical operator")
}

func compileRelational(r *ast.Relational, sc scope, form Form) (Predicate, error) {
	left, err := compileOperand(r.Left, sc, form)
	if err != nil {
		return nil, err
	}
	right, err := compileOperand(r.Right, sc, form)
	if err != nil {
		return nil, err
	}
	return Compare{Op: r.Op, Left: left, Right: right}, nil
}

// compileSelectionPredicate handles a bare selection used as a
// sub-predicate: either a HOF call (self.items.some(...)) or, after
// LiftBoolean, this path is only reached for HOF-tailed selections.
func compileSelectionPredicate(s *ast.Selection, sc scope, form Form) (Predicate, error) {
	if s.Call == nil {
		return nil, fmt.Errorf("selection %v used as a predicate without a comparison", s.Path)
	}
	if form != FormDatabase {
		return nil, fmt.Errorf("higher-order relation queries are only supported in database-form rules")
	}
	relPath, targetEntity, err := resolvePath(s.Path, sc)
	if err != nil {
		return nil, err
	}
	inner := sc.withParam(s.Call.Param, targetEntity)
	body, err := compileTop(s.Call.Body, inner, form)
	if err != nil {
		return nil, err
	}
	return HOFPredicate{Method: s.Call.Method, Relation: relPath, Param: s.Call.Param, Body: body}, nil
}

func compileOperand(e ast.Expr, sc scope, form Form) (Operand, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return literalOperand(n)
	case *ast.Selection:
		if n.Call != nil {
			return nil, fmt.Errorf("higher-order call cannot appear inside a comparison")
		}
		path, _, err := resolvePath(n.Path, sc)
		if err != nil {
			return nil, err
		}
		if form != FormDatabase && path.Root == RootSelf && len(path.Segments) > 1 {
			return nil, fmt.Errorf("%s-form rules cannot cross a relation (path %v)", formName(form), n.Path)
		}
		return path, nil
	default:
		return nil, fmt.Errorf("unsupported operand shape %T", e)
	}
}

func literalOperand(l *ast.Literal) (Operand, error) {
	switch l.Kind {
	case ast.LitString:
		return Literal{V: l.S}, nil
	case ast.LitNumber:
		return Literal{V: l.N}, nil
	case ast.LitBool:
		return Literal{V: l.B}, nil
	case ast.LitStringList:
		return Literal{V: l.SS}, nil
	case ast.LitNull:
		return Literal{V: nil}, nil
	}
	return nil, fmt.Errorf("unknown literal kind")
}

func formName(f Form) string {
	switch f {
	case FormInput:
		return "input"
	case FormPrecheck:
		return "precheck"
	default:
		return "database"
	}
}

// resolvePath roots a selection path at self, a bound HOF parameter, or
// a named context, and — for self/param roots — applies the many-to-one
// "PK residue" rewrite: a path ending at a many-to-one relation's target
// primary key collapses to the local foreign-key column, so the
// planner never has to join just to re-read the value it already holds
// locally (spec §4.D). Returns the resolved path and, for self/param
// roots, the entity the path's final segment type-checks against (used
// to scope a following HOF body).
func resolvePath(path []string, sc scope) (Path, string, error) {
	if len(path) == 0 {
		return Path{}, "", fmt.Errorf("empty path")
	}
	head := path[0]
	var root PathRoot
	var rootEntity string
	switch {
	case head == "self":
		root, rootEntity = RootSelf, sc.selfEntity
	case sc.params[head] != "":
		root, rootEntity = RootParam, sc.params[head]
	default:
		return Path{Root: RootContext, Name: head, Segments: path[1:]}, "", nil
	}
	segs := path[1:]
	curEntity := rootEntity
	for _, seg := range segs {
		f, ok := lookupField(sc.em, curEntity, seg)
		if !ok || f.Type.EntityName == "" {
			break // unknown, or a scalar field tail segment: nothing further to resolve
		}
		curEntity = f.Type.EntityName
	}
	segs = collapsePKResidue(sc.em, rootEntity, segs)
	return Path{Root: root, Name: head, Entity: rootEntity, Segments: segs}, curEntity, nil
}

func lookupField(em *model.EntityModel, entityName, fieldName string) (*model.Field, bool) {
	if em == nil {
		return nil, false
	}
	id, ok := em.ByName(entityName)
	if !ok {
		return nil, false
	}
	return em.Get(id).Field(fieldName)
}

// collapsePKResidue rewrites a two-segment self/param path
// `<manyToOneField>.<targetPK>` into the single physical FK column that
// already holds the same value.
func collapsePKResidue(em *model.EntityModel, rootEntity string, segs []string) []string {
	if len(segs) != 2 {
		return segs
	}
	f, ok := lookupField(em, rootEntity, segs[0])
	if !ok {
		return segs
	}
	rel, ok := f.Relation.(model.ManyToOneRelation)
	if !ok || len(rel.SelfColumns) != 1 {
		return segs
	}
	targetField, ok := lookupField(em, rel.TargetEntity, segs[1])
	if !ok {
		return segs
	}
	if pk, ok := targetField.Relation.(model.PkRelation); ok && pk.Column == rel.TargetCols[0] {
		return []string{rel.SelfColumns[0]}
	}
	return segs
}
