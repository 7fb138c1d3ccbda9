package typecheck

import (
	"github.com/exoql/exocore/internal/arena"
	"github.com/exoql/exocore/lang/ast"
)

// passFieldTypes resolves each field's TypeRef to a concrete
// FieldType, wrapping Set<T>/List<T>/Optional(T) as needed and
// rejecting a reference that is both optional and a list (the TypeRef
// shape cannot express the deeper nestings spec §3 forbids). A field whose
// base type name is not yet registered in the environment is left
// unresolved for a later pass (or, at fixed point, becomes an
// "unknown type" diagnostic).
func (b *Builder) passFieldTypes(composites map[string]*Composite) bool {
	progress := false
	for _, c := range composites {
		for i, af := range c.astFields {
			f := c.Fields[i]
			if f.TypeResolved {
				continue
			}
			baseId, ok := b.env.Lookup(af.Type.Name)
			if !ok {
				continue // deferred; try again next pass
			}
			if af.Type.Optional && af.Type.List {
				// `T?[]` is not part of the grammar; treat as forbidden nesting.
				b.diags = append(b.diags, errf(CodeForbiddenNesting, af.Pos, "optional list element types are not supported directly on %q", f.Name))
				f.TypeResolved = true // stop re-visiting; already reported
				progress = true
				continue
			}
			ft := FieldType{Base: baseId, Optional: af.Type.Optional, List: af.Type.List || af.Type.Set}
			f.Type = ft
			f.TypeResolved = true
			progress = true
		}
	}
	return progress
}

// passComposeResolved fills in the type-environment entry for any
// composite whose every field has now been resolved, flipping its
// TypeEntry.Kind from KindDeferred to KindComposite. This is the step
// that lets other composites referencing it by name "see" a real
// composite rather than a sentinel.
func (b *Builder) passComposeResolved(composites map[string]*Composite) bool {
	progress := false
	for _, c := range composites {
		if c.resolved {
			continue
		}
		allResolved := true
		for _, f := range c.Fields {
			if !f.TypeResolved {
				allResolved = false
				break
			}
		}
		if !allResolved {
			continue
		}
		c.resolved = true
		b.env.Fill(c.id, TypeEntry{Name: c.Name, Kind: KindComposite, Composite: c})
		progress = true
	}
	return progress
}

// passContextFields resolves the field types of `context` declarations,
// which share the same TypeRef grammar as entity fields but are never
// inserted into the composite type environment (contexts are not
// database-backed).
func (b *Builder) passContextFields(contexts *arena.MappedArena[ContextDecl], contextAst map[string]*ast.Context) bool {
	progress := false
	for name, ctx := range contextAst {
		id, _ := contexts.GetByName(name)
		decl := contexts.Get(id)
		if len(decl.Fields) == len(ctx.Fields) {
			continue
		}
		var fields []*Field
		allOk := true
		for _, af := range ctx.Fields {
			baseId, ok := b.env.Lookup(af.Type.Name)
			if !ok {
				allOk = false
				break
			}
			fields = append(fields, &Field{Name: af.Name, Type: FieldType{Base: baseId, Optional: af.Type.Optional, List: af.Type.List || af.Type.Set}, TypeResolved: true})
		}
		if !allOk {
			continue
		}
		decl.Fields = fields
		progress = true
	}
	return progress
}

// passDefaults types each field's default-value expression, once the
// field's own type is known. Compatibility between a dynamic default
// (a context selection) and the field's type is checked later by the
// model builder (spec §4.C phase 4), which has access to the fully
// resolved context declarations; here we only establish that the
// expression itself is well-typed.
func (b *Builder) passDefaults(composites map[string]*Composite) bool {
	progress := false
	for _, c := range composites {
		for i, af := range c.astFields {
			f := c.Fields[i]
			if af.Default == nil || f.Default.Expr != nil || !f.TypeResolved {
				continue
			}
			typed, diags := b.typeExpr(af.Default, Scope{Self: c, SelfId: c.id})
			b.diags = append(b.diags, diags...)
			f.Default = typed
			progress = true
		}
	}
	return progress
}

// passAnnotations resolves every field's and composite's source
// annotations against the registry, validating both target and
// parameter shape.
func (b *Builder) passAnnotations(composites map[string]*Composite) bool {
	progress := false
	for _, c := range composites {
		for i, af := range c.astFields {
			f := c.Fields[i]
			if len(f.Annotations) > 0 || len(af.Annotations) == 0 || !f.TypeResolved {
				continue
			}
			f.Annotations = b.resolveAnnotations(af.Annotations, TargetField, Scope{Self: c, SelfId: c.id})
			progress = true
		}
	}
	return progress
}

// resolveAnnotations types an annotation's parameters against scope —
// which, for field and type annotations, carries the enclosing
// composite as `self` so that access-rule bodies like
// `@access(query=self.owner.id == AuthContext.id)` can resolve
// `self.owner`.
func (b *Builder) resolveAnnotations(anns []*ast.Annotation, target Target, scope Scope) []*ResolvedAnnotation {
	out := make([]*ResolvedAnnotation, 0, len(anns))
	for _, a := range anns {
		def, ok := b.registry.Lookup(a.Name)
		if !ok {
			b.diags = append(b.diags, errf(CodeUnknownAnnotation, a.Pos, "unknown annotation %q", a.Name))
			continue
		}
		if !def.ValidTarget(target) {
			b.diags = append(b.diags, errf(CodeInvalidAnnotationTgt, a.Pos, "annotation %q is not valid on this target", a.Name))
			continue
		}
		ra := &ResolvedAnnotation{Name: a.Name, Params: map[string]TypedExpr{}}
		switch p := a.Params.(type) {
		case ast.NoParams:
			if def.Shape != NoParams {
				b.diags = append(b.diags, errf(CodeBadAnnotationParams, a.Pos, "annotation %q requires parameters", a.Name))
			}
		case ast.SingleParams:
			if def.Shape != SingleParam {
				b.diags = append(b.diags, errf(CodeBadAnnotationParams, a.Pos, "annotation %q does not take a single positional parameter", a.Name))
				break
			}
			typed, diags := b.typeExpr(p.Value, scope)
			b.diags = append(b.diags, diags...)
			ra.Params[""] = typed
		case ast.MappedParams:
			if def.Shape != MappedParams {
				b.diags = append(b.diags, errf(CodeBadAnnotationParams, a.Pos, "annotation %q does not take named parameters", a.Name))
				break
			}
			for k, v := range p.Values {
				if !containsName(def.Mapped.Required, k) && !containsName(def.Mapped.Optional, k) {
					b.diags = append(b.diags, errf(CodeBadAnnotationParams, a.Pos, "annotation %q does not accept parameter %q", a.Name, k))
					continue
				}
				typed, diags := b.typeExpr(v, scope)
				b.diags = append(b.diags, diags...)
				ra.Params[k] = typed
			}
			for _, req := range def.Mapped.Required {
				if _, ok := p.Values[req]; !ok {
					b.diags = append(b.diags, errf(CodeBadAnnotationParams, a.Pos, "annotation %q is missing required parameter %q", a.Name, req))
				}
			}
		}
		out = append(out, ra)
	}
	return out
}

// passComposeAnnotations resolves type-level (entity-level)
// annotations such as `@table("concerts")` or `@access(...)`, once the
// composite is itself resolved.
func (b *Builder) passComposeAnnotations(composites map[string]*Composite) bool {
	progress := false
	for _, c := range composites {
		if !c.resolved || len(c.Annotations) > 0 || len(c.astAnnotations) == 0 {
			continue
		}
		c.Annotations = b.resolveAnnotations(c.astAnnotations, TargetType, Scope{Self: c, SelfId: c.id})
		progress = true
	}
	return progress
}

func containsName(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// passServices types every method's argument and return types once
// their named types are resolvable.
func (b *Builder) passServices(services *arena.MappedArena[Service], serviceAst map[string]*ast.Service) bool {
	progress := false
	for name, s := range serviceAst {
		id, _ := services.GetByName(name)
		svc := services.Get(id)
		if len(svc.Methods) == len(s.Methods) {
			continue
		}
		var methods []*ServiceMethod
		allOk := true
		for _, m := range s.Methods {
			retId, ok := b.env.Lookup(m.Ret.Name)
			if !ok {
				allOk = false
				break
			}
			sm := &ServiceMethod{Name: m.Name, Ret: FieldType{Base: retId, Optional: m.Ret.Optional, List: m.Ret.List || m.Ret.Set}}
			for _, arg := range m.Args {
				argId, ok := b.env.Lookup(arg.Type.Name)
				if !ok {
					allOk = false
					break
				}
				sm.Args = append(sm.Args, Argument{Name: arg.Name, Type: FieldType{Base: argId, Optional: arg.Type.Optional, List: arg.Type.List || arg.Type.Set}})
			}
			if !allOk {
				break
			}
			methods = append(methods, sm)
		}
		if !allOk {
			continue
		}
		svc.Methods = methods
		progress = true
	}
	return progress
}
