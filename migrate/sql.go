package migrate

import (
	"strconv"
	"strings"

	"github.com/exoql/exocore/internal/sqlbuild"
	"github.com/exoql/exocore/model"
)

// columnTypeSQL renders a physical column type to its PostgreSQL
// spelling (spec §3 ColumnType closed set).
func columnTypeSQL(ct model.ColumnType) string {
	switch t := ct.(type) {
	case model.IntType:
		switch t.Bits {
		case 16:
			return "SMALLINT"
		case 64:
			return "BIGINT"
		default:
			return "INT"
		}
	case model.FloatType:
		if t.Bits == 24 {
			return "REAL"
		}
		return "DOUBLE PRECISION"
	case model.NumericType:
		return "NUMERIC(" + strconv.Itoa(t.Precision) + "," + strconv.Itoa(t.Scale) + ")"
	case model.StringType:
		if t.MaxLen != nil {
			return "VARCHAR(" + strconv.Itoa(*t.MaxLen) + ")"
		}
		return "TEXT"
	case model.BooleanType:
		return "BOOLEAN"
	case model.TimeType:
		return "TIME"
	case model.TimestampType:
		if t.TZ {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case model.DateType:
		return "DATE"
	case model.JSONType:
		return "JSON"
	case model.BlobType:
		return "BYTEA"
	case model.UUIDType:
		return "UUID"
	case model.EnumColumnType:
		return t.Name
	case model.VectorType:
		return "vector(" + strconv.Itoa(t.Size) + ")"
	case model.ArrayType:
		return columnTypeSQL(t.Inner) + "[]"
	default:
		return "TEXT"
	}
}

// isSerialEligible reports whether col can use PostgreSQL's SERIAL/
// BIGSERIAL shorthand: an integer-typed PK with no explicit default
// (spec §6: "PK columns use SERIAL when autoIncrement() is the
// default").
func isSerialEligible(col *model.Column) bool {
	if !col.IsPK || col.Default != nil {
		return false
	}
	_, ok := col.Type.(model.IntType)
	return ok
}

func serialTypeSQL(col *model.Column) string {
	if it, ok := col.Type.(model.IntType); ok && it.Bits == 64 {
		return "BIGSERIAL"
	}
	return "SERIAL"
}

// defaultSQL renders col's default expression, quoting and casting a
// string literal default the way PostgreSQL's own pg_dump does
// (`'USER'::text`), per spec §8 scenario 3.
func defaultSQL(col *model.Column) string {
	switch d := col.Default.(type) {
	case *model.Literal:
		switch col.Type.(type) {
		case model.StringType:
			return "'" + strings.ReplaceAll(d.V, "'", "''") + "'::text"
		default:
			return d.V
		}
	case *model.RawExpr:
		return d.X
	default:
		return ""
	}
}

// columnDef renders one column's definition within a CREATE TABLE
// column list or an ADD COLUMN clause. inline marks whether a
// serial-eligible single-column PK may collapse to "SERIAL PRIMARY
// KEY" (only valid inside CREATE TABLE, never in ALTER TABLE ADD
// COLUMN).
func columnDef(b *sqlbuild.Builder, col *model.Column, inline bool) {
	b.Ident(col.Name)
	if inline && isSerialEligible(col) {
		b.P(serialTypeSQL(col), "PRIMARY KEY")
		return
	}
	b.P(columnTypeSQL(col.Type))
	if !col.IsNullable {
		b.P("NOT NULL")
	}
	if d := defaultSQL(col); d != "" {
		b.P("DEFAULT", d)
	}
}

// fkConstraintName is spec §6's naming convention: `"<table>_<field>_fk"`,
// field being the FK column name(s), underscore-joined for a
// composite key (spec §8 scenario 2: "memberships_user_id_fk").
func fkConstraintName(table string, cols []*model.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return table + "_" + strings.Join(names, "_") + "_fk"
}

// foreignKeyStatement emits the ALTER TABLE ... ADD CONSTRAINT ...
// FOREIGN KEY statement for one FK column group. Always a post
// statement: the referenced table must already exist (spec §4.F
// point 4, Glossary "pre/post statements").
func foreignKeyStatement(table *model.Table, cols []*model.Column) string {
	ref := cols[0].References
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(table.Name).P("ADD CONSTRAINT").Ident(fkConstraintName(table.Name, cols)).P("FOREIGN KEY")
	b.Wrap(func(b *sqlbuild.Builder) {
		b.MapComma(len(cols), func(i int, b *sqlbuild.Builder) { b.Ident(cols[i].Name) })
	})
	b.P("REFERENCES").Ident(ref.TargetTable)
	b.Wrap(func(b *sqlbuild.Builder) {
		b.MapComma(len(cols), func(i int, b *sqlbuild.Builder) { b.Ident(refTargetColumn(cols, i)) })
	})
	return b.String() + ";"
}

func refTargetColumn(cols []*model.Column, i int) string {
	return cols[i].References.TargetColumn
}

// fkGroups partitions t's foreign-key columns by their grouping name,
// in first-appearance order (spec §9 deterministic output).
func fkGroups(t *model.Table) [][]*model.Column {
	var order []string
	groups := map[string][]*model.Column{}
	for _, c := range t.Columns {
		if c.References == nil {
			continue
		}
		g := c.References.Group
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], c)
	}
	out := make([][]*model.Column, len(order))
	for i, g := range order {
		out[i] = groups[g]
	}
	return out
}

// indexStatement emits a CREATE INDEX statement (spec §6): plain
// B-Tree indices carry no USING clause; HNSW vector indices specify
// the distance operator class.
func indexStatement(table *model.Table, idx *model.Index) string {
	b := sqlbuild.New("CREATE INDEX")
	b.P("ON").Ident(table.Name)
	if idx.Kind == model.HNSW {
		b.P("USING hnsw")
	}
	b.Wrap(func(b *sqlbuild.Builder) {
		b.MapComma(len(idx.Columns), func(i int, b *sqlbuild.Builder) {
			b.Ident(idx.Columns[i])
			if idx.Kind == model.HNSW {
				b.Raw(idx.DistanceFunc)
			}
		})
	})
	return b.String() + ";"
}
