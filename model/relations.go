package model

import (
	"strings"

	"github.com/exoql/exocore/lang/typecheck"
)

// resolveRelations implements Phase 3: resolving many-to-one field
// placeholders created in Phase 2 against their target entity's
// primary key, discovering reciprocal one-to-many/one-to-one
// relations, and retyping the self-side columns to match (spec §4.C
// phase 3).
//
// Declaration order is threaded through explicitly (rather than
// ranging over the skeletons map) so that, when both sides of a
// relation are candidates to own the foreign-key column (the
// one-to-one case), the tie-break is deterministic: spec §9 requires
// stable output, and Go map iteration order is not stable.
func resolveRelations(tc *typecheck.TypecheckedSystem, em *EntityModel, db *Database, skeletons map[string]*entitySkeleton, order []string) error {
	rank := make(map[string]int, len(order))
	for i, n := range order {
		rank[n] = i
	}

	// dropped[entity][field] is true once that field's placeholder column
	// has been dropped in favor of the reciprocal side owning it.
	dropped := make(map[string]map[string]bool)
	isDropped := func(entity, field string) bool {
		m, ok := dropped[entity]
		return ok && m[field]
	}
	drop := func(entity, field string) {
		if dropped[entity] == nil {
			dropped[entity] = make(map[string]bool)
		}
		dropped[entity][field] = true
	}

	for _, name := range order {
		sk := skeletons[name]
		ent := em.GetMut(sk.EntityId)
		for _, f := range ent.Fields {
			if f.Type.EntityName == "" || f.Type.Shape == List {
				continue // not a many-to-one candidate
			}
			if isDropped(name, f.Name) {
				continue
			}
			if _, embedded := f.Relation.(EmbeddedRelation); embedded {
				continue // Json-represented target: stored inline, not a relation
			}
			targetSk, ok := skeletons[f.Type.EntityName]
			if !ok {
				return buildErr(name, f.Name, "relation target %q is not a managed or external entity", f.Type.EntityName)
			}
			targetEnt := em.Get(targetSk.EntityId)
			reciprocalField, oneToOne := findReciprocal(targetEnt, name)

			if oneToOne {
				// Both sides are singular (non-list) references to each
				// other, optional or not. Exactly
				// one owns the physical FK column; the tie-break prefers
				// an explicit @manyToOne annotation, and otherwise the
				// field declared earlier (lower rank) wins (an Open
				// Question decision recorded in DESIGN.md).
				selfManyToOne := hasAnnotation(fieldAnnotations(sk, f.Name), "manyToOne")
				otherManyToOne := hasAnnotation(fieldAnnotations(targetSk, reciprocalField.Name), "manyToOne")
				selfOwns := true
				switch {
				case selfManyToOne && !otherManyToOne:
					selfOwns = true
				case otherManyToOne && !selfManyToOne:
					selfOwns = false
				default:
					selfOwns = rank[name] <= rank[f.Type.EntityName]
				}
				if !selfOwns {
					dropColumn(sk, f)
					drop(name, f.Name)
					continue
				}
				drop(f.Type.EntityName, reciprocalField.Name)
				dropColumn(targetSk, reciprocalField)
				if err := wireManyToOne(db, sk, f, targetSk, OneToOne, true); err != nil {
					return err
				}
				// The non-owning side has no physical column of its own;
				// it is resolved by the query planner as a reverse lookup
				// through the owner's unique foreign key.
				reciprocalField.Relation = OneToManyRelation{Entity: f.Type.EntityName, Field: reciprocalField.Name, TargetEntity: name, TargetField: f.Name}
				continue
			}

			// Either a one-to-many reciprocal (Set<entity> field on the
			// target) or a lone many-to-one with no reciprocal at all.
			card := ManyToOneUnbounded
			if f.Type.Shape == Plain {
				card = ManyToOneRequired
			}
			if recip := findOneToMany(targetEnt, name); recip != nil {
				recip.Relation = OneToManyRelation{Entity: f.Type.EntityName, Field: recip.Name, TargetEntity: name, TargetField: f.Name}
			}
			if err := wireManyToOne(db, sk, f, targetSk, card, false); err != nil {
				return err
			}
		}
	}
	return nil
}

func fieldAnnotations(sk *entitySkeleton, fieldName string) []*typecheck.ResolvedAnnotation {
	for _, f := range sk.Entry.Composite.Fields {
		if f.Name == fieldName {
			return f.Annotations
		}
	}
	return nil
}

func findReciprocal(target *Entity, selfEntity string) (*Field, bool) {
	for _, f := range target.Fields {
		if f.Type.EntityName == selfEntity && f.Type.Shape != List {
			return f, true
		}
	}
	return nil, false
}

func findOneToMany(target *Entity, selfEntity string) *Field {
	for _, f := range target.Fields {
		if f.Type.EntityName == selfEntity && f.Type.Shape == List {
			return f
		}
	}
	return nil
}

func dropColumn(sk *entitySkeleton, f *Field) {
	if sk.Table == nil || len(f.ColumnNames) == 0 {
		return
	}
	var kept []*Column
	for _, c := range sk.Table.Columns {
		drop := false
		for _, cn := range f.ColumnNames {
			if c.Name == cn {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	sk.Table.Columns = kept
	f.ColumnNames = nil
}

// wireManyToOne retypes self's placeholder column(s) to match target's
// primary-key column(s), extends the column set for composite keys,
// records the foreign-key grouping, and inserts the ManyToOneRelation.
func wireManyToOne(db *Database, self *entitySkeleton, f *Field, target *entitySkeleton, card Cardinality, unique bool) error {
	pks := target.Table.PKColumns()
	if len(pks) == 0 {
		return buildErr(self.Entry.Composite.Name, f.Name, "relation target %q has no primary key", target.Entry.Composite.Name)
	}
	wanted := columnNamesForField(f.Name, pks)
	if len(wanted) != len(f.ColumnNames) {
		// Composite key: drop the single Phase-2 placeholder and create
		// the correct number of columns now that the target's PK shape
		// is known.
		dropColumn(self, f)
		for i, pk := range pks {
			c := &Column{Name: wanted[i], Type: pk.Type, IsNullable: f.Type.Shape == Optional}
			self.Table.Columns = append(self.Table.Columns, c)
		}
		f.ColumnNames = wanted
	}
	for i, cn := range f.ColumnNames {
		c, ok := self.Table.Column(cn)
		if !ok {
			return buildErr(self.Entry.Composite.Name, f.Name, "internal: missing placeholder column %q", cn)
		}
		c.Type = pks[i].Type
		c.IsNullable = f.Type.Shape == Optional
		c.References = &ColumnRef{Group: f.Name, TargetTable: target.Table.Name, TargetColumn: pks[i].Name}
		if unique {
			c.UniqueGroups = append(c.UniqueGroups, "unique_constraint_"+strings.ToLower(self.Entry.Composite.Name)+"_"+f.Name)
		}
	}
	db.Relations = append(db.Relations, ManyToOneRelation{
		Entity: self.Entry.Composite.Name, Field: f.Name,
		SelfColumns: f.ColumnNames, TargetEntity: target.Entry.Composite.Name,
		TargetCols: columnNames(pks), Cardinality: card,
	})
	f.Relation = ManyToOneRelation{
		Entity: self.Entry.Composite.Name, Field: f.Name,
		SelfColumns: f.ColumnNames, TargetEntity: target.Entry.Composite.Name,
		TargetCols: columnNames(pks), Cardinality: card,
	}
	return nil
}

func columnNamesForField(fieldName string, pks []*Column) []string {
	if len(pks) == 1 {
		return []string{fieldName + "_" + pks[0].Name}
	}
	names := make([]string, len(pks))
	for i, pk := range pks {
		names[i] = fieldName + "_" + pk.Name
	}
	return names
}

func columnNames(cols []*Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
