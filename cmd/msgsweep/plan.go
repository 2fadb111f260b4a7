package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danmuck/msgbuf/internal/config"
	"github.com/spf13/cobra"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create and check sweep plan files",
	}
	cmd.AddCommand(newPlanInitCmd(), newPlanValidateCmd())
	return cmd
}

func newPlanInitCmd() *cobra.Command {
	var (
		format string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a sweep plan template",
		Long: `Write a sweep plan template covering every suite.

Examples:
  msgsweep plan init sweep.toml
  msgsweep plan init sweep.yaml --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			kind := format
			if kind == "" {
				kind = strings.TrimPrefix(filepath.Ext(path), ".")
			}
			if err := config.WriteTemplate(path, kind, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s plan to %s\n", okFmt("ok"), kind, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "plan format: toml or yaml (default from extension)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newPlanValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a sweep plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.LoadSweepPlan(args[0])
			if err != nil {
				return err
			}
			opts, err := plan.Options()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s plan %q: codes=%s len=%d..%d suites=%d\n",
				okFmt("ok"), plan.Name, opts.Codes, opts.MinLen, opts.MaxLen, len(opts.Suites))
			return nil
		},
	}
}
