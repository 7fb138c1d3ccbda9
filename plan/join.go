package plan

import "sort"

// joinSet accumulates the LEFT JOIN chain a plan needs, keyed by the
// joined table's name so the same relation is never joined twice.
// Iteration is always by sorted table name: deterministic plans are a
// hard requirement (spec §9).
type joinSet struct {
	links map[string]Link
}

func newJoinSet() *joinSet { return &joinSet{links: map[string]Link{}} }

func (j *joinSet) add(l Link) { j.links[l.ToTable] = l }

// ordered returns the join chain lexicographically by joined table
// name (spec §4.E "Deterministic ordering ... lexicographic by link").
func (j *joinSet) ordered() []Link {
	names := make([]string, 0, len(j.links))
	for t := range j.links {
		names = append(names, t)
	}
	sort.Strings(names)
	out := make([]Link, len(names))
	for i, t := range names {
		out[i] = j.links[t]
	}
	return out
}

// resolveTable walks entity/segs through the catalog's relation links,
// registering a join for every hop but the last, and returns the table
// and column the final segment denotes.
func resolveTable(cat Catalog, rootTable, entity string, segs []string) (table, column string, joins []Link, ok bool) {
	if len(segs) == 0 {
		return "", "", nil, false
	}
	curEntity, curTable := entity, rootTable
	for i, seg := range segs {
		if i == len(segs)-1 {
			t, c, ok := cat.ColumnForField(curEntity, seg)
			if !ok {
				return "", "", nil, false
			}
			return t, c, joins, true
		}
		link, target, ok := cat.RelationLink(curEntity, seg)
		if !ok {
			return "", "", nil, false
		}
		link.FromTable = curTable
		joins = append(joins, link)
		curEntity, curTable = target, link.ToTable
	}
	return "", "", nil, false
}
