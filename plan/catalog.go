package plan

import "github.com/exoql/exocore/model"

// Link is one LEFT JOIN step: join ToTable onto the plan's existing
// tables via FromTable.FromCol = ToTable.ToCol.
type Link struct {
	FromTable, FromCol string
	ToTable, ToCol     string
}

// Catalog resolves entity/field names to physical tables, columns, and
// relation links, the way model.EntityModel does for the rest of the
// compiler. Kept as an interface so planner tests can supply a small
// hand-built fixture instead of running the full model builder.
type Catalog interface {
	TableForEntity(entity string) (string, bool)
	ColumnForField(entity, field string) (table, column string, ok bool)
	RelationLink(entity, field string) (link Link, targetEntity string, ok bool)
}

// ModelCatalog implements Catalog directly over a built EntityModel.
type ModelCatalog struct{ EM *model.EntityModel }

func (c ModelCatalog) entity(name string) (*model.Entity, bool) {
	id, ok := c.EM.ByName(name)
	if !ok {
		return nil, false
	}
	return c.EM.Get(id), true
}

func (c ModelCatalog) TableForEntity(name string) (string, bool) {
	e, ok := c.entity(name)
	if !ok || e.Table == nil {
		return "", false
	}
	return e.Table.Name, true
}

func (c ModelCatalog) ColumnForField(entity, field string) (string, string, bool) {
	table, ok := c.TableForEntity(entity)
	if !ok {
		return "", "", false
	}
	e, _ := c.entity(entity)
	f, ok := e.Field(field)
	if !ok || len(f.ColumnNames) == 0 {
		return table, "", false
	}
	return table, f.ColumnNames[0], true
}

func (c ModelCatalog) RelationLink(entity, field string) (Link, string, bool) {
	e, ok := c.entity(entity)
	if !ok {
		return Link{}, "", false
	}
	f, ok := e.Field(field)
	if !ok {
		return Link{}, "", false
	}
	fromTable, ok := c.TableForEntity(entity)
	if !ok {
		return Link{}, "", false
	}

	switch rel := f.Relation.(type) {
	case model.ManyToOneRelation:
		toTable, ok := c.TableForEntity(rel.TargetEntity)
		if !ok || len(rel.SelfColumns) == 0 || len(rel.TargetCols) == 0 {
			return Link{}, "", false
		}
		return Link{FromTable: fromTable, FromCol: rel.SelfColumns[0], ToTable: toTable, ToCol: rel.TargetCols[0]}, rel.TargetEntity, true
	case model.OneToManyRelation:
		target, ok := c.entity(rel.TargetEntity)
		if !ok {
			return Link{}, "", false
		}
		tf, ok := target.Field(rel.TargetField)
		if !ok {
			return Link{}, "", false
		}
		mrel, ok := tf.Relation.(model.ManyToOneRelation)
		if !ok || len(mrel.SelfColumns) == 0 || len(mrel.TargetCols) == 0 {
			return Link{}, "", false
		}
		toTable, ok := c.TableForEntity(rel.TargetEntity)
		if !ok {
			return Link{}, "", false
		}
		return Link{FromTable: fromTable, FromCol: mrel.TargetCols[0], ToTable: toTable, ToCol: mrel.SelfColumns[0]}, rel.TargetEntity, true
	default:
		return Link{}, "", false
	}
}
