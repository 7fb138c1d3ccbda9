package model

import (
	"strconv"
	"strings"

	"github.com/exoql/exocore/internal/arena"
	"github.com/exoql/exocore/lang/ast"
	"github.com/exoql/exocore/lang/typecheck"
	"github.com/go-openapi/inflect"
)

// entitySkeleton is Phase 1's output for a single entity: bookkeeping
// threaded into Phase 2/3, not part of the frozen Result.
type entitySkeleton struct {
	Entry    *typecheck.TypeEntry
	EntityId arena.Id
	Table    *Table // nil for JsonRepr
}

// Result is the frozen output of Build: the physical schema and the
// entity model that sits on top of it (spec §3 Lifecycle).
type Result struct {
	DB       *Database
	Entities *EntityModel
}

// DefaultColumnNameList is the configurable column-name list Phase 2
// uses for a many-to-one field's self-side columns before Phase 3
// knows how many primary-key columns the target actually has. The
// common single-column-PK case needs only its first element.
var DefaultColumnNameList = []string{"id", "id2", "id3", "id4"}

// Build lowers tc into a physical schema plus entity model, in the
// four ordered sub-phases of spec §4.C. Any invariant violation that
// cannot be attributed to a specific diagnostic is reported as a
// BuildError and aborts the build.
func Build(tc *typecheck.TypecheckedSystem) (*Result, error) {
	db := &Database{}
	em := NewEntityModel()

	skeletons := make(map[string]*entitySkeleton)
	var order []string // declaration order, relied on for deterministic output (spec §9)

	// Phase 1: skeletons.
	for _, e := range tc.Env.Iter() {
		if e.Val.Kind != typecheck.KindComposite {
			continue
		}
		c := e.Val.Composite
		repr := Managed
		plural := inflect.Pluralize(c.Name)
		tableName := strings.ToLower(plural)
		for _, a := range c.Annotations {
			switch a.Name {
			case "json":
				repr = JsonRepr
			case "external":
				repr = NotManaged
			case "plural":
				if v, ok := a.Params[""]; ok {
					if s, ok := stringLiteral(v); ok {
						plural = s
						tableName = strings.ToLower(s)
					}
				}
			case "table":
				if v, ok := a.Params[""]; ok {
					if s, ok := stringLiteral(v); ok {
						tableName = s
					}
				}
			}
		}
		var tbl *Table
		if repr != JsonRepr {
			tbl = &Table{Name: tableName, Managed: repr == Managed}
			db.Tables = append(db.Tables, tbl)
		}
		entityId, err := em.InsertShallow(c.Name)
		if err != nil {
			return nil, err
		}
		ent := em.GetMut(entityId)
		ent.PluralName = plural
		ent.Representation = repr
		ent.Table = tbl
		skeletons[c.Name] = &entitySkeleton{Entry: e.Val, EntityId: entityId, Table: tbl}
		order = append(order, c.Name)
	}

	// Phase 2: column creation.
	for _, name := range order {
		sk := skeletons[name]
		c := sk.Entry.Composite
		ent := em.GetMut(sk.EntityId)
		for _, tf := range c.Fields {
			field, col, colNames := lowerField(tc, name, tf)
			ent.Fields = append(ent.Fields, field)
			if sk.Table != nil {
				for _, cc := range col {
					if existing, ok := sk.Table.Column(cc.Name); ok {
						// Shared column from composite-key field overlap: merge unique tags only.
						existing.UniqueGroups = mergeUnique(existing.UniqueGroups, cc.UniqueGroups)
						continue
					}
					sk.Table.Columns = append(sk.Table.Columns, cc)
				}
			}
			field.ColumnNames = colNames
		}
		if ent.Representation == Managed {
			if len(ent.Table.PKColumns()) == 0 {
				return nil, buildErr(name, "", "managed entity has no primary-key field")
			}
		}
	}

	// Phase 3: relations & column retyping.
	if err := resolveRelations(tc, em, db, skeletons, order); err != nil {
		return nil, err
	}

	// Phase 4: dynamic defaults.
	if err := resolveDynamicDefaults(tc, em); err != nil {
		return nil, err
	}

	return &Result{DB: db, Entities: em}, nil
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string{}, a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

// lowerField produces the entity Field plus zero or more physical
// columns for a single typechecked field (spec §4.C phase 2). Relation
// columns (many-to-one placeholders) are typed as a placeholder
// BooleanType pending Phase 3 retyping.
func lowerField(tc *typecheck.TypecheckedSystem, entityName string, tf *typecheck.Field) (*Field, []*Column, []string) {
	entry := tc.Env.Entry(tf.Type.Base)
	f := &Field{Name: tf.Name}
	hint := extractHint(tf.Annotations)
	f.Hint = hint
	isPK := hasAnnotation(tf.Annotations, "pk")
	readonly := hasAnnotation(tf.Annotations, "readonly")
	updateSync := hasAnnotation(tf.Annotations, "update")
	f.Readonly = readonly
	f.UpdateSync = updateSync

	switch entry.Kind {
	case typecheck.KindPrimitive:
		f.Type = FieldTypeRef{Shape: shapeOf(tf.Type), PrimName: entry.Name}
		colName := tf.Name
		col := &Column{
			Name:       colName,
			Type:       primitiveColumnType(entry.Primitive, hint),
			IsPK:       isPK,
			IsNullable: tf.Type.Optional,
			UpdateSync: updateSync,
		}
		if entry.Primitive == typecheck.Vector && hint != nil {
			col.Type = VectorType{Size: hint.VectorSize, DistanceFunc: hint.DistanceFunc}
		}
		if tf.Type.List {
			// List<primitive>: one array column over the element type.
			col.Type = ArrayType{Inner: col.Type}
		}
		if hasAnnotation(tf.Annotations, "unique") {
			col.UniqueGroups = append(col.UniqueGroups, "unique_constraint_"+strings.ToLower(entityName)+"_"+tf.Name)
		}
		if isPK {
			f.Relation = PkRelation{Entity: entityName, Column: colName}
		} else {
			f.Relation = ScalarRelation{Entity: entityName, Column: colName, IsPK: false}
		}
		attachDefault(f, col, tf)
		return f, []*Column{col}, []string{colName}

	case typecheck.KindEnum:
		f.Type = FieldTypeRef{Shape: shapeOf(tf.Type), PrimName: entry.Name, IsEnum: true}
		col := &Column{Name: tf.Name, Type: EnumColumnType{Name: entry.Name}, IsNullable: tf.Type.Optional}
		f.Relation = ScalarRelation{Entity: entityName, Column: tf.Name}
		attachDefault(f, col, tf)
		return f, []*Column{col}, []string{tf.Name}

	case typecheck.KindComposite:
		target := entry.Composite
		jsonTarget := hasAnnotation(target.Annotations, "json")
		if tf.Type.List {
			// Set<Composite>: one-to-many side, no self column.
			f.Type = FieldTypeRef{Shape: List, EntityName: target.Name}
			return f, nil, nil
		}
		if jsonTarget {
			f.Type = FieldTypeRef{Shape: shapeOf(tf.Type), EntityName: target.Name}
			col := &Column{Name: tf.Name, Type: JSONType{}, IsNullable: tf.Type.Optional}
			f.Relation = EmbeddedRelation{Entity: entityName, Column: tf.Name}
			return f, []*Column{col}, []string{tf.Name}
		}
		// Many-to-one candidate: emit one placeholder column using the
		// default single-column-PK convention; Phase 3 retypes it (and
		// extends it for composite keys).
		f.Type = FieldTypeRef{Shape: shapeOf(tf.Type), EntityName: target.Name}
		colName := tf.Name + "_" + DefaultColumnNameList[0]
		col := &Column{Name: colName, Type: BooleanType{}, IsNullable: tf.Type.Optional}
		return f, []*Column{col}, []string{colName}

	default:
		// KindSet/KindArray: List<primitive>.
		elem := tc.Env.Entry(entry.Elem)
		f.Type = FieldTypeRef{Shape: List, PrimName: elem.Name}
		col := &Column{Name: tf.Name, Type: ArrayType{Inner: primitiveColumnType(elem.Primitive, hint)}, IsNullable: tf.Type.Optional}
		return f, []*Column{col}, []string{tf.Name}
	}
}

func shapeOf(ft typecheck.FieldType) FieldShape {
	if ft.List {
		return List
	}
	if ft.Optional {
		return Optional
	}
	return Plain
}

// attachDefault resolves a field's source-level default expression, if
// any, into either a physical column default (a static literal) or a
// pending DynamicDefault (a context selection such as `AuthContext.id`,
// left for Phase 4 to validate once every context declaration is in
// scope).
func attachDefault(f *Field, col *Column, tf *typecheck.Field) {
	if tf.Default.Expr == nil {
		return
	}
	switch e := tf.Default.Expr.(type) {
	case *ast.Literal:
		switch e.Kind {
		case ast.LitString:
			col.Default = &Literal{V: e.S}
		case ast.LitNumber:
			col.Default = &RawExpr{X: strconv.FormatFloat(e.N, 'g', -1, 64)}
		case ast.LitBool:
			col.Default = &Literal{V: strconv.FormatBool(e.B)}
		case ast.LitNull:
			// no-op: NULL is already the nullable-column default.
		}
	case *ast.Selection:
		if len(e.Path) >= 2 {
			f.DynamicDefault = &ContextSelection{Context: e.Path[0], Path: e.Path[1:]}
		}
	}
}

func hasAnnotation(anns []*typecheck.ResolvedAnnotation, name string) bool {
	for _, a := range anns {
		if a.Name == name {
			return true
		}
	}
	return false
}
