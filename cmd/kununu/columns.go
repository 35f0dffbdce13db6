package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"kununu/internal/columns"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newColumnsCmd(a *app) *cobra.Command {
	var (
		required bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "columns [source-field...]",
		Short: "Print the column table, or look up the columns of given fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			if required {
				for _, k := range columns.RequiredKeys() {
					fmt.Fprintln(a.stdout, k)
				}
				return nil
			}

			cols := columns.Mapping()
			if len(args) > 0 {
				cols = cols[:0]
				var unknown []string
				for _, src := range args {
					dest, ok := columns.Lookup(src)
					if !ok {
						unknown = append(unknown, src)
						continue
					}
					cols = append(cols, columns.Column{Source: src, Dest: dest})
				}
				if len(unknown) > 0 {
					a.log.WithField("fields", unknown).Warn("no column for fields")
				}
				if len(cols) == 0 {
					return fmt.Errorf("no column for %s", strings.Join(unknown, ", "))
				}
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(cols)
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.stdout)
			t.AppendHeader(table.Row{"Source", "Column"})
			for _, c := range cols {
				t.AppendRow(table.Row{c.Source, c.Dest})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&required, "required", false, "list the fields a complete record must carry")
	f.BoolVar(&asJSON, "json", false, "print the table as JSON")
	return cmd
}
