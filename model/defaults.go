package model

import "github.com/exoql/exocore/lang/typecheck"

// resolveDynamicDefaults implements Phase 4: validating every pending
// ContextSelection default against the now-fully-resolved context
// declarations (spec §4.C phase 4). A dynamic default's context path
// must resolve to a field whose type is identical to the defaulted
// field's own type, up to Optional/List wrapping (spec §3 invariant on
// default-value compatibility).
func resolveDynamicDefaults(tc *typecheck.TypecheckedSystem, em *EntityModel) error {
	for _, entry := range em.Iter() {
		ent := entry.Val
		for _, f := range ent.Fields {
			if f.DynamicDefault == nil {
				continue
			}
			sel := f.DynamicDefault
			ctxId, ok := tc.Contexts.GetByName(sel.Context)
			if !ok {
				return buildErr(ent.Name, f.Name, "default references unknown context %q", sel.Context)
			}
			ctx := tc.Contexts.Get(ctxId)
			ctxField, ok := contextField(ctx, sel.Path)
			if !ok {
				return buildErr(ent.Name, f.Name, "context %q has no field %q", sel.Context, joinPath(sel.Path))
			}
			ctxPrim := tc.Env.Entry(ctxField.Type.Base).Name
			if f.Type.PrimName != ctxPrim {
				return buildErr(ent.Name, f.Name, "default from %s.%s has type %q, field has type %q",
					sel.Context, joinPath(sel.Path), ctxPrim, f.Type.PrimName)
			}
		}
	}
	return nil
}

// contextField resolves a (possibly single-segment) path against a
// context's fields. Context declarations are flat (spec Glossary), so
// any path longer than one segment is unsupported and reported as
// not-found.
func contextField(ctx *typecheck.ContextDecl, path []string) (*typecheck.Field, bool) {
	if len(path) != 1 {
		return nil, false
	}
	for _, f := range ctx.Fields {
		if f.Name == path[0] {
			return f, true
		}
	}
	return nil, false
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
