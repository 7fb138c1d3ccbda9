package typecheck

import (
	"github.com/exoql/exocore/internal/arena"
	"github.com/exoql/exocore/lang/ast"
)

// Plugin is contributed by a subsystem builder (e.g. the postgres
// module plugin) to extend the annotation registry before elaboration
// starts. Real module plugins (the JS/TS runtime, the RPC surface) are
// out of scope; this module ships the postgres plugin only.
type Plugin struct {
	ModuleAnnotation string
	Register         func(*Registry)
}

// PostgresPlugin is the one subsystem plugin this module ships.
var PostgresPlugin = Plugin{ModuleAnnotation: "postgres", Register: func(r *Registry) { r.RegisterPostgresModule() }}

// Service is a fully typed RPC-style service.
type Service struct {
	Name    string
	Methods []*ServiceMethod
}

// ServiceMethod is a single typed method signature.
type ServiceMethod struct {
	Name string
	Args []Argument
	Ret  FieldType
}

// Argument is a single typed method argument.
type Argument struct {
	Name string
	Type FieldType
}

// ContextDecl is a fully typed `context` declaration.
type ContextDecl struct {
	Name   string
	Fields []*Field
}

// TypecheckedSystem is the output of Build: a fully annotated, interned
// type environment plus typed services and contexts.
type TypecheckedSystem struct {
	Env      *TypeEnv
	Registry *Registry
	Services *arena.MappedArena[Service]
	Contexts *arena.MappedArena[ContextDecl]
	// ModuleOf maps an entity name to the module it was declared in,
	// used by the model builder to decide which module's representation
	// (relational vs. external) governs the entity.
	ModuleOf map[string]string
}

// Builder carries the mutable elaboration state across passes.
type Builder struct {
	env      *TypeEnv
	registry *Registry
	diags    Diagnostics
	moduleOf map[string]string
}

// Build elaborates ast into a TypecheckedSystem, or returns the
// accumulated diagnostics if elaboration could not reach a fixed point
// without error (spec §4.B).
func Build(plugins []Plugin, sys *ast.System) (*TypecheckedSystem, Diagnostics) {
	b := &Builder{
		env:      NewTypeEnv(),
		registry: NewRegistry(),
		moduleOf: make(map[string]string),
	}

	allTypes, allEnums := flatten(sys, b.moduleOf)

	// Step 1: validate no duplicate names.
	b.validateNoDuplicates(sys, allTypes, allEnums)
	if b.diags.HasErrors() {
		return nil, b.diags
	}

	// Pre-step: register module plugin annotations. Structural (not
	// part of the value fixed point): which plugin a module uses is
	// known directly from its annotation list, with no dependency on
	// type resolution.
	for _, m := range sys.Modules {
		for _, a := range m.Annotations {
			for _, p := range plugins {
				if a.Name == p.ModuleAnnotation {
					p.Register(b.registry)
				}
			}
		}
	}

	// Step 2: install shallow copies of every type/enum/service.
	composites := make(map[string]*Composite, len(allTypes))
	for _, t := range allTypes {
		c := &Composite{Name: t.Name}
		c.astFields = t.Fields
		c.astAnnotations = t.Annotations
		c.Fields = make([]*Field, len(t.Fields))
		for i, f := range t.Fields {
			c.Fields[i] = &Field{Name: f.Name}
		}
		id, err := b.env.InsertShallow(t.Name)
		if err != nil {
			b.diags = append(b.diags, errf(CodeDuplicateName, t.Pos, "%v", err))
			continue
		}
		c.id = id
		composites[t.Name] = c
	}
	for _, en := range allEnums {
		id, err := b.env.InsertShallow(en.Name)
		if err != nil {
			b.diags = append(b.diags, errf(CodeDuplicateName, en.Pos, "%v", err))
			continue
		}
		b.env.Fill(id, TypeEntry{Name: en.Name, Kind: KindEnum, Enum: &EnumType{Name: en.Name, Variants: en.Variants}})
	}
	services := arena.NewMappedArena[Service]()
	serviceAst := make(map[string]*ast.Service)
	for _, s := range sys.Services {
		if _, err := services.InsertShallow(s.Name, Service{Name: s.Name}); err != nil {
			b.diags = append(b.diags, errf(CodeDuplicateName, s.Pos, "%v", err))
			continue
		}
		serviceAst[s.Name] = s
	}
	for _, m := range sys.Modules {
		for _, s := range m.Services {
			if _, err := services.InsertShallow(s.Name, Service{Name: s.Name}); err != nil {
				b.diags = append(b.diags, errf(CodeDuplicateName, s.Pos, "%v", err))
				continue
			}
			serviceAst[s.Name] = s
		}
	}
	contexts := arena.NewMappedArena[ContextDecl]()
	contextAst := make(map[string]*ast.Context)
	for _, ctx := range sys.Contexts {
		if _, err := contexts.InsertShallow(ctx.Name, ContextDecl{Name: ctx.Name}); err != nil {
			b.diags = append(b.diags, errf(CodeDuplicateName, ctx.Pos, "%v", err))
			continue
		}
		contextAst[ctx.Name] = ctx
	}

	// Step 3: fixed-point elaboration loop. Bounded by the number of
	// composites (spec §8 testable property: "the number of passes is
	// bounded by the number of composites").
	maxPasses := len(composites) + len(contextAst) + 1
	for pass := 0; pass < maxPasses; pass++ {
		progress := false
		progress = b.passFieldTypes(composites) || progress
		progress = b.passComposeResolved(composites) || progress
		progress = b.passContextFields(contexts, contextAst) || progress
		progress = b.passDefaults(composites) || progress
		progress = b.passAnnotations(composites) || progress
		progress = b.passComposeAnnotations(composites) || progress
		progress = b.passServices(services, serviceAst) || progress
		if !progress {
			break
		}
	}

	// Step 4: anything still unresolved is a genuine "unknown type" error.
	for _, c := range composites {
		for i, f := range c.astFields {
			if !c.Fields[i].TypeResolved {
				b.diags = append(b.diags, errf(CodeUnknownType, f.Pos, "unknown type %q referenced by field %q.%q", f.Type.Name, c.Name, f.Name))
			}
		}
	}

	if b.diags.HasErrors() {
		return nil, b.diags
	}
	return &TypecheckedSystem{Env: b.env, Registry: b.registry, Services: services, Contexts: contexts, ModuleOf: b.moduleOf}, b.diags
}

func flatten(sys *ast.System, moduleOf map[string]string) ([]*ast.Type, []*ast.Enum) {
	var types []*ast.Type
	var enums []*ast.Enum
	types = append(types, sys.Types...)
	enums = append(enums, sys.Enums...)
	for _, m := range sys.Modules {
		for _, t := range m.Types {
			types = append(types, t)
			moduleOf[t.Name] = m.Name
		}
		enums = append(enums, m.Enums...)
	}
	return types, enums
}

func (b *Builder) validateNoDuplicates(sys *ast.System, types []*ast.Type, enums []*ast.Enum) {
	seen := make(map[string]bool)
	check := func(name string, pos interface{ String() string }) {
		if seen[name] {
			b.diags = append(b.diags, &Diagnostic{Level: LevelError, Code: CodeDuplicateName, Message: "duplicate type/enum name " + name})
			return
		}
		seen[name] = true
	}
	for _, t := range types {
		check(t.Name, t.Pos)
	}
	for _, e := range enums {
		check(e.Name, e.Pos)
	}
	moduleNames := make(map[string]bool)
	for _, m := range sys.Modules {
		if moduleNames[m.Name] {
			b.diags = append(b.diags, &Diagnostic{Level: LevelError, Code: CodeDuplicateName, Message: "duplicate module name " + m.Name})
		}
		moduleNames[m.Name] = true
		methodNames := make(map[string]bool)
		for _, s := range m.Services {
			for _, meth := range s.Methods {
				if methodNames[s.Name+"."+meth.Name] {
					b.diags = append(b.diags, &Diagnostic{Level: LevelError, Code: CodeDuplicateName, Message: "duplicate method name " + meth.Name})
				}
				methodNames[s.Name+"."+meth.Name] = true
			}
		}
	}
	for _, s := range sys.Services {
		methodNames := make(map[string]bool)
		for _, meth := range s.Methods {
			if methodNames[meth.Name] {
				b.diags = append(b.diags, &Diagnostic{Level: LevelError, Code: CodeDuplicateName, Message: "duplicate method name " + meth.Name})
			}
			methodNames[meth.Name] = true
		}
	}
}
