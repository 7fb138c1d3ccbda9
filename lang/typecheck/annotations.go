package typecheck

// Target is the closed set of source elements an annotation can be
// attached to.
type Target int

const (
	TargetType Target = 1 << iota
	TargetField
	TargetMethod
	TargetArgument
	TargetInterceptor
	TargetModule
)

// ParamShape is the closed set of parameter shapes an annotation
// accepts: no arguments (`@pk`), one positional argument
// (`@deno("x.ts")`), or named arguments (`@range(min=0, max=100)`).
type ParamShape int

const (
	NoParams ParamShape = iota
	SingleParam
	MappedParams
)

// MappedParamSchema names the allowed keys of a MappedParams
// annotation and whether each is required.
type MappedParamSchema struct {
	Required []string
	Optional []string
}

// AnnotationDef describes one entry of the annotation registry: the
// targets it may be attached to and the parameter shape it accepts.
type AnnotationDef struct {
	Name    string
	Targets Target
	Shape   ParamShape
	Mapped  MappedParamSchema // only meaningful when Shape == MappedParams
}

// Registry is the annotation registry: core annotations plus whatever
// additional annotations subsystem plugins (e.g. the postgres module
// plugin) contribute.
type Registry struct {
	defs map[string]AnnotationDef
}

// NewRegistry creates a registry seeded with the annotations every
// source file can use regardless of which module plugins are active.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]AnnotationDef)}
	for _, d := range coreAnnotations {
		r.defs[d.Name] = d
	}
	return r
}

var coreAnnotations = []AnnotationDef{
	{Name: "pk", Targets: TargetField, Shape: NoParams},
	{Name: "unique", Targets: TargetField, Shape: NoParams},
	{Name: "readonly", Targets: TargetField, Shape: NoParams},
	{Name: "column", Targets: TargetField, Shape: SingleParam},
	{Name: "table", Targets: TargetType, Shape: SingleParam},
	{Name: "plural", Targets: TargetType, Shape: SingleParam},
	{Name: "access", Targets: TargetType | TargetField, Shape: MappedParams, Mapped: MappedParamSchema{
		Optional: []string{"query", "creation", "update", "delete", "mutation", "default"},
	}},
	{Name: "range", Targets: TargetField, Shape: MappedParams, Mapped: MappedParamSchema{
		Optional: []string{"min", "max"},
	}},
	{Name: "size", Targets: TargetField, Shape: SingleParam},
	{Name: "precision", Targets: TargetField, Shape: MappedParams, Mapped: MappedParamSchema{
		Optional: []string{"precision", "scale"},
	}},
	{Name: "bits", Targets: TargetField, Shape: SingleParam},
	{Name: "vector", Targets: TargetField, Shape: MappedParams, Mapped: MappedParamSchema{
		Optional: []string{"size", "distanceFunction"},
	}},
}

// Register adds (or overwrites) an annotation definition, used by
// module plugins to contribute their own annotations (e.g. `@postgres`
// contributes `@index`, `@indexed`).
func (r *Registry) Register(def AnnotationDef) { r.defs[def.Name] = def }

// Lookup returns the definition for name, if registered.
func (r *Registry) Lookup(name string) (AnnotationDef, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// ValidTarget reports whether def may be attached to target.
func (d AnnotationDef) ValidTarget(target Target) bool {
	return d.Targets&target != 0
}

// postgresModuleAnnotations are the extra annotations the postgres
// module plugin (component C's sole supported subsystem target)
// contributes on top of the core registry.
var postgresModuleAnnotations = []AnnotationDef{
	{Name: "index", Targets: TargetField, Shape: SingleParam},
	{Name: "indexed", Targets: TargetField, Shape: NoParams},
	{Name: "manyToOne", Targets: TargetField, Shape: NoParams},
	{Name: "json", Targets: TargetField | TargetType, Shape: NoParams},
	{Name: "update", Targets: TargetField, Shape: NoParams},
}

// RegisterPostgresModule installs the postgres plugin's annotations
// into r. Called once per module annotated `@postgres`, after the
// duplicate-name validation and before the elaboration passes.
func (r *Registry) RegisterPostgresModule() {
	for _, d := range postgresModuleAnnotations {
		r.Register(d)
	}
}
