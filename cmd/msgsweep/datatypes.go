package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/danmuck/msgbuf/internal/datatype"
	"github.com/spf13/cobra"
)

type datatypeRow struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

func newDatatypesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datatypes",
		Short: "List registered element types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([]datatypeRow, 0, len(datatype.All()))
			for _, dt := range datatype.All() {
				rows = append(rows, datatypeRow{Code: dt.Code(), Name: dt.Name(), Size: dt.Size()})
			}
			if done, err := writeStructured(cmd.OutOrStdout(), root.output, rows); done {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tSIZE")
			for _, row := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\n", row.Code, row.Name, row.Size)
			}
			return w.Flush()
		},
	}
}
