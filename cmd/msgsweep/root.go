package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "0.1.0"

var (
	okFmt   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failFmt = color.New(color.FgRed, color.Bold).SprintFunc()
	infoFmt = color.New(color.FgYellow).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
)

type rootOptions struct {
	output  string
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "msgsweep",
		Short: "Descriptor conformance sweeps",
		Long: `msgsweep exercises message descriptor resolution end to end.

Each sweep sends windows of [0, 1, ..., n-1] through a self-connected
endpoint and checks that exactly the described window arrives.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			return checkOutputFormat(opts.output)
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "output format: table, json, yaml")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newPlanCmd())
	root.AddCommand(newDatatypesCmd(opts))
	return root
}

func checkOutputFormat(format string) error {
	switch format {
	case "table", "json", "yaml", "":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// writeStructured renders v as json or yaml. It reports false for table output.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", format)
	}
}
