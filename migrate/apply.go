package migrate

import (
	"context"
	"fmt"
	"io"
)

// Script is an ordered edit script produced by Diff, ready to be
// written out or applied (spec §4.F "Destructive handling").
type Script struct {
	Ops []SchemaOp
}

// Execer is the minimal surface Apply needs to run a statement; a real
// *sql.DB or *sql.Tx satisfies it. A PostgreSQL driver wiring is out of
// scope here, so Apply takes this interface rather than importing one.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (any, error)
}

// Statements renders the script to its final statement list in spec
// §4.F point 4's order: every op's Pre fragments, then every op's main
// Stmt, then every op's Post fragments. If allowDestructive is false
// and any op is destructive, Statements fails before rendering
// anything.
func (s Script) Statements(allowDestructive bool) ([]string, error) {
	if !allowDestructive {
		if op, ok := s.firstDestructive(); ok {
			return nil, fmt.Errorf("migrate: refusing destructive op %T without allowDestructive", op)
		}
	}

	var pre, main, post []string
	for _, op := range s.Ops {
		st := op.ToSQL()
		pre = append(pre, st.Pre...)
		main = append(main, st.Stmt)
		post = append(post, st.Post...)
	}

	out := make([]string, 0, len(pre)+len(main)+len(post))
	out = append(out, pre...)
	out = append(out, main...)
	out = append(out, post...)
	return out, nil
}

func (s Script) firstDestructive() (SchemaOp, bool) {
	for _, op := range s.Ops {
		if op.Destructive() {
			return op, true
		}
	}
	return nil, false
}

// Write renders the script as a readable SQL file. Unlike Statements,
// Write never fails on a destructive op: when allowDestructive is
// false, destructive statements are commented out with a leading
// "-- " instead, so the file still documents the full diff. Statements
// appear in the same order Statements uses: all Pre, all Stmt, all Post.
func (s Script) Write(w io.Writer, allowDestructive bool) error {
	var pre, main, post []string
	var commentOut []bool
	for _, op := range s.Ops {
		st := op.ToSQL()
		pre = append(pre, st.Pre...)
		main = append(main, st.Stmt)
		commentOut = append(commentOut, op.Destructive() && !allowDestructive)
		post = append(post, st.Post...)
	}
	for i, stmt := range append(append(pre, main...), post...) {
		out := i >= len(pre) && i < len(pre)+len(main) && commentOut[i-len(pre)]
		if err := writeStatement(w, stmt, out); err != nil {
			return err
		}
	}
	return nil
}

func writeStatement(w io.Writer, stmt string, commentOut bool) error {
	prefix := ""
	if commentOut {
		prefix = "-- "
	}
	_, err := fmt.Fprintf(w, "%s%s\n\n", prefix, stmt)
	return err
}

// Apply executes the script against execer in order. It fails before
// running anything if a destructive op is present and allowDestructive
// is false.
func Apply(ctx context.Context, execer Execer, s Script, allowDestructive bool) error {
	stmts, err := s.Statements(allowDestructive)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := execer.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: exec %q: %w", stmt, err)
		}
	}
	return nil
}
