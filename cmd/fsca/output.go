package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/whitekid/goxp/fx"

	"fsca/certmanager"
	"fsca/pkg/helper"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func addOutputFlag(cmd *cobra.Command, def string) {
	cmd.Flags().StringP("output", "o", def, "output format: "+strings.Join([]string{formatTable, formatJSON, formatYAML}, ", "))
}

// writeOutput write data as json or yaml; table is rendered by table
func writeOutput(cmd *cobra.Command, data any, table func(w io.Writer)) error {
	format, _ := cmd.Flags().GetString("output")

	switch format {
	case formatJSON:
		return helper.WriteJSON(os.Stdout, data)
	case formatYAML:
		return helper.WriteYAML(os.Stdout, data)
	case formatTable:
		if table == nil {
			return errors.Errorf("table output is not supported")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		table(w)
		return w.Flush()
	}

	return errors.Errorf("unknown output format: %s", format)
}

func formatTime(t time.Time) string { return t.Local().Format("2006-01-02 15:04") }

func recordTable(records []*certmanager.Record) func(w io.Writer) {
	return func(w io.Writer) {
		fmt.Fprintln(w, "SERIAL\tNAME\tTYPE\tSTATUS\tNOT AFTER\tREVOKED AT")
		fx.ForEach(records, func(_ int, r *certmanager.Record) {
			revokedAt := ""
			if r.RevokedAt != nil {
				revokedAt = formatTime(*r.RevokedAt)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Serial, r.Name, r.Type, r.Status, formatTime(r.NotAfter), revokedAt)
		})
	}
}
