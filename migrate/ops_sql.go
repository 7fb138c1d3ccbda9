package migrate

import (
	"github.com/exoql/exocore/internal/sqlbuild"
	"github.com/exoql/exocore/model"
)

func (op CreateTable) ToSQL() Statement {
	t := op.Table
	pk := t.PKColumns()
	singleSerial := len(pk) == 1 && isSerialEligible(pk[0])

	b := sqlbuild.New("CREATE TABLE")
	b.Ident(t.Name)
	b.Wrap(func(b *sqlbuild.Builder) {
		b.MapComma(len(t.Columns), func(i int, b *sqlbuild.Builder) {
			columnDef(b, t.Columns[i], true)
		})
		if !singleSerial && len(pk) > 0 {
			b.Comma().P("PRIMARY KEY")
			b.Wrap(func(b *sqlbuild.Builder) {
				b.MapComma(len(pk), func(i int, b *sqlbuild.Builder) { b.Ident(pk[i].Name) })
			})
		}
	})

	var post []string
	for _, grp := range fkGroups(t) {
		post = append(post, foreignKeyStatement(t, grp))
	}
	return Statement{Stmt: b.String() + ";", Post: post}
}

func (op DeleteTable) ToSQL() Statement {
	b := sqlbuild.New("DROP TABLE")
	b.Ident(op.Table.Name).P("CASCADE")
	return Statement{Stmt: b.String() + ";"}
}

func (op CreateColumn) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("ADD COLUMN")
	columnDef(b, op.Column, false)
	stmt := Statement{Stmt: b.String() + ";"}
	if op.Column.References != nil {
		stmt.Post = []string{foreignKeyStatement(op.Table, []*model.Column{op.Column})}
	}
	return stmt
}

func (op DeleteColumn) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("DROP COLUMN").Ident(op.Column.Name)
	return Statement{Stmt: b.String() + ";"}
}

func (op CreateExtension) ToSQL() Statement {
	b := sqlbuild.New("CREATE EXTENSION")
	b.P("IF NOT EXISTS", op.Name)
	return Statement{Stmt: b.String() + ";"}
}

func (op RemoveExtension) ToSQL() Statement {
	b := sqlbuild.New("DROP EXTENSION")
	b.P("IF EXISTS", op.Name)
	return Statement{Stmt: b.String() + ";"}
}

func (op CreateUniqueConstraint) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("ADD CONSTRAINT").Ident(op.Name).P("UNIQUE")
	b.Wrap(func(b *sqlbuild.Builder) {
		b.MapComma(len(op.Columns), func(i int, b *sqlbuild.Builder) { b.Ident(op.Columns[i]) })
	})
	return Statement{Stmt: b.String() + ";"}
}

func (op RemoveUniqueConstraint) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("DROP CONSTRAINT").Ident(op.Name)
	return Statement{Stmt: b.String() + ";"}
}

func (op SetColumnDefaultValue) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("ALTER COLUMN").Ident(op.Column.Name).P("SET DEFAULT", defaultSQL(op.Column))
	return Statement{Stmt: b.String() + ";"}
}

func (op UnsetColumnDefaultValue) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("ALTER COLUMN").Ident(op.Column.Name).P("DROP DEFAULT")
	return Statement{Stmt: b.String() + ";"}
}

func (op SetNotNull) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("ALTER COLUMN").Ident(op.Column.Name).P("SET NOT NULL")
	return Statement{Stmt: b.String() + ";"}
}

func (op UnsetNotNull) ToSQL() Statement {
	b := sqlbuild.New("ALTER TABLE")
	b.Ident(op.Table.Name).P("ALTER COLUMN").Ident(op.Column.Name).P("DROP NOT NULL")
	return Statement{Stmt: b.String() + ";"}
}

func (op CreateIndex) ToSQL() Statement {
	return Statement{Stmt: indexStatement(op.Table, op.Index)}
}

func (op RemoveIndex) ToSQL() Statement {
	b := sqlbuild.New("DROP INDEX")
	b.Ident(op.Index.Name)
	return Statement{Stmt: b.String() + ";"}
}
