package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aevon-lab/nqlflow/internal/core/nql"
	"github.com/aevon-lab/nqlflow/internal/queries"
)

type checkOptions struct {
	*rootOptions
	Dir string
}

func newCheckCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &checkOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [query...]",
		Short: "Compile queries and print their canonical form",
		Long: `Compile each query argument, or every definition in --dir, and print the
canonical form. Exits non-zero when any query fails to compile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.Dir == "" {
				return fmt.Errorf("nothing to check: pass queries or --dir")
			}
			var defs []queries.Definition
			if opts.Dir != "" {
				repo, err := queries.LoadDir(opts.Dir)
				if err != nil {
					return err
				}
				list, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}
				defs = append(defs, list...)
			}
			if len(args) > 0 {
				repo, err := queries.FromTexts(args)
				if err != nil {
					return err
				}
				list, err := repo.List(cmd.Context())
				if err != nil {
					return err
				}
				defs = append(defs, list...)
			}
			return runCheck(cmd.OutOrStdout(), defs)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "check every query definition in this directory")
	return cmd
}

// errCheckFailed is returned when at least one query did not compile.
var errCheckFailed = errors.New("one or more queries failed to compile")

func runCheck(w io.Writer, defs []queries.Definition) error {
	failed := 0
	for _, d := range defs {
		if d.CompileErr != nil {
			failed++
			fmt.Fprintf(w, "FAIL %s: %v\n", d.Name, d.CompileErr)
			var ce *nql.CompileError
			if errors.As(d.CompileErr, &ce) {
				fmt.Fprintf(w, "    %s\n    %s^\n", ce.Query, strings.Repeat(" ", caretColumn(ce.Query, ce.Offset)))
			}
			continue
		}
		fmt.Fprintf(w, "ok   %s [%s]: %s\n", d.Name, nql.KindOf(d.Compiled), d.Compiled)
	}
	if failed > 0 {
		return errCheckFailed
	}
	return nil
}

// caretColumn converts a byte offset into a rune column for display.
func caretColumn(query string, offset int) int {
	if offset > len(query) {
		offset = len(query)
	}
	if offset < 0 {
		offset = 0
	}
	return len([]rune(query[:offset]))
}
