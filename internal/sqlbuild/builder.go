// Package sqlbuild is the small statement-text builder shared by the
// query planner and the migration writer: a thin wrapper over
// strings.Builder offering phrase/identifier helpers, grounded on the
// teacher's own sqlx.Builder ("syntactic sugar for writing SQL
// statements").
package sqlbuild

import "strings"

// Builder accumulates SQL statement text phrase by phrase.
type Builder struct {
	buf strings.Builder
}

// New starts a builder with an initial phrase, e.g. "CREATE TABLE".
func New(phrase string) *Builder {
	b := &Builder{}
	return b.P(phrase)
}

// P writes one or more space-separated phrases, each followed by a
// single trailing space (collapsed against a preceding '(' or space).
func (b *Builder) P(phrases ...string) *Builder {
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if b.buf.Len() > 0 {
			if last := b.lastByte(); last != ' ' && last != '(' {
				b.buf.WriteByte(' ')
			}
		}
		b.buf.WriteString(p)
		if p[len(p)-1] != ' ' {
			b.buf.WriteByte(' ')
		}
	}
	return b
}

// Ident writes s double-quoted as a PostgreSQL identifier.
func (b *Builder) Ident(s string) *Builder {
	if b.buf.Len() > 0 && b.lastByte() != ' ' && b.lastByte() != '(' {
		b.buf.WriteByte(' ')
	}
	b.buf.WriteByte('"')
	b.buf.WriteString(s)
	b.buf.WriteByte('"')
	b.buf.WriteByte(' ')
	return b
}

// Raw writes s verbatim, with no surrounding space logic.
func (b *Builder) Raw(s string) *Builder {
	b.buf.WriteString(s)
	return b
}

// Comma turns the trailing space left by the previous token into a
// comma; the following P/Ident call supplies the space after it.
func (b *Builder) Comma() *Builder {
	b.rewriteLastByte(',')
	return b
}

// Wrap appends "(" before f runs and ")" after, preserving whatever
// spacing already precedes the opening paren.
func (b *Builder) Wrap(f func(b *Builder)) *Builder {
	b.buf.WriteByte('(')
	f(b)
	b.rewriteTrailingSpace()
	b.buf.WriteByte(')')
	b.buf.WriteByte(' ')
	return b
}

// MapComma calls f once per element of n, separating calls with ", ".
func (b *Builder) MapComma(n int, f func(i int, b *Builder)) *Builder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.Comma()
		}
		f(i, b)
	}
	return b
}

func (b *Builder) lastByte() byte {
	s := b.buf.String()
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func (b *Builder) rewriteLastByte(c byte) {
	s := b.buf.String()
	if len(s) == 0 {
		return
	}
	b.buf.Reset()
	b.buf.WriteString(s[:len(s)-1])
	b.buf.WriteByte(c)
}

func (b *Builder) rewriteTrailingSpace() {
	s := b.buf.String()
	if len(s) > 0 && s[len(s)-1] == ' ' {
		b.buf.Reset()
		b.buf.WriteString(s[:len(s)-1])
	}
}

// String returns the built statement with its trailing space trimmed.
func (b *Builder) String() string {
	return strings.TrimRight(b.buf.String(), " ")
}
