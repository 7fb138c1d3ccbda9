// Command exoc is a thin front-end composing the compiler pipeline
// (typecheck -> model -> access) and the schema differ, the way the
// teacher's own cmd/atlas composes its sql/* packages. It carries no
// parser, no annotation-plugin loader, and no JS/TS runtime: those
// collaborators stay genuinely out of scope (spec §6), so `build`
// reads its AST from a JSON file rather than source text.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/exoql/exocore/access"
	"github.com/exoql/exocore/lang/ast"
	"github.com/exoql/exocore/lang/typecheck"
	"github.com/exoql/exocore/migrate"
	"github.com/exoql/exocore/model"
	"github.com/spf13/cobra"
)

func main() {
	if err := root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func root() *cobra.Command {
	cmd := &cobra.Command{Use: "exoc", Short: "exocore compiler front-end"}
	cmd.AddCommand(buildCmd(), migrateCmd())
	return cmd
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build <system.json>",
		Short: "typecheck a system, build its physical model, and compile access rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := readSystem(args[0])
			if err != nil {
				return err
			}
			tc, diags := typecheck.Build([]typecheck.Plugin{typecheck.PostgresPlugin}, sys)
			if diags.HasErrors() {
				return fmt.Errorf("typecheck failed:\n%s", diags)
			}
			res, err := model.Build(tc)
			if err != nil {
				return fmt.Errorf("model build failed: %w", err)
			}
			if _, err := access.CompileModelAccess(tc, res.Entities); err != nil {
				return fmt.Errorf("access compile failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %d table(s)\n", len(res.DB.Tables))
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	parent := &cobra.Command{Use: "migrate", Short: "schema diff and migration"}
	parent.AddCommand(migrateDiffCmd())
	return parent
}

func migrateDiffCmd() *cobra.Command {
	var allowDestructive bool
	cmd := &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "print the SQL edit script between two schema snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldDB, err := readDatabase(args[0])
			if err != nil {
				return err
			}
			newDB, err := readDatabase(args[1])
			if err != nil {
				return err
			}
			script := migrate.Script{Ops: migrate.Diff(oldDB, newDB)}
			return script.Write(cmd.OutOrStdout(), allowDestructive)
		},
	}
	cmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "do not comment out destructive statements")
	return cmd
}

func readSystem(path string) (*ast.System, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var sys ast.System
	if err := json.Unmarshal(b, &sys); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &sys, nil
}

func readDatabase(path string) (*model.Database, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var db model.Database
	if err := json.Unmarshal(b, &db); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &db, nil
}
