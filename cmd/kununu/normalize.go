package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"kununu/internal/columns"
	"kununu/internal/normalize"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

func newNormalizeCmd(a *app) *cobra.Command {
	var (
		file    string
		flatten bool
		prefix  string
		project bool
		dump    bool
		pretty  bool
	)

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a JSON document: snake_case keys, optionally flattened or projected",
		Long: `Reads one JSON document from stdin (or --file), rewrites every object key to
snake_case and prints the result. --flatten joins nested keys with "_";
--columns flattens and then keeps only the known output columns, warning about
missing required fields.`,
		Args: argsUsage(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = a.stdin
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return usageError{fmt.Errorf("open input: %w", err)}
				}
				defer f.Close()
				r = f
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			v, err := normalize.NormalizeNulls(string(raw))
			if err != nil {
				return err
			}
			v = normalize.NormalizeKeys(v)

			if flatten || project {
				obj, err := normalize.Flatten(v, prefix)
				if err != nil {
					return err
				}
				if project {
					if missing := columns.MissingRequired(obj); len(missing) > 0 {
						a.log.WithField("missing", missing).Warn("record is missing required fields")
					}
					obj = columns.Project(obj)
				}
				v = obj
			}

			if dump {
				cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
				cfg.Fdump(a.stdout, v)
				return nil
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetEscapeHTML(false)
			if pretty {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("encode json: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&file, "file", "", `read the document from a file instead of stdin ("-" is stdin)`)
	f.BoolVar(&flatten, "flatten", false, "flatten nested objects into one level")
	f.StringVar(&prefix, "prefix", "", "prefix for flattened top-level keys")
	f.BoolVar(&project, "columns", false, "flatten and project onto the output columns")
	f.BoolVar(&dump, "dump", false, "print a Go value dump instead of JSON")
	f.BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}
