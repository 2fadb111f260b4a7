package main

import (
	"errors"
	"fmt"

	"github.com/danmuck/msgbuf/internal/config"
	"github.com/danmuck/msgbuf/internal/p2p"
	"github.com/danmuck/msgbuf/internal/sweep"
	"github.com/spf13/cobra"
)

var errSweepFailed = errors.New("sweep failed")

type runOptions struct {
	plan   string
	codes  string
	minLen int
	maxLen int
	suites []string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run conformance sweeps",
		Long: `Run conformance sweeps over a self-connected endpoint.

Flags override values from --plan.

Examples:
  msgsweep run
  msgsweep run --codes if --max-len 4
  msgsweep run --plan sweep.toml --suite window --suite full -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sweepOpts, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			comm := p2p.Self()
			defer comm.Close()

			report, err := sweep.Run(cmd.Context(), comm, sweepOpts)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd.OutOrStdout(), root.output, report); done {
				if err != nil {
					return err
				}
			} else {
				printReport(cmd, report)
			}
			if !report.OK() {
				return fmt.Errorf("%w: %d of %d cases", errSweepFailed, report.Failed, report.Cases)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.plan, "plan", "", "sweep plan file (.toml, .yaml, .yml)")
	cmd.Flags().StringVar(&opts.codes, "codes", sweep.DefaultCodes, "type codes to sweep")
	cmd.Flags().IntVar(&opts.minLen, "min-len", 1, "smallest buffer length")
	cmd.Flags().IntVar(&opts.maxLen, "max-len", 9, "largest buffer length")
	cmd.Flags().StringSliceVar(&opts.suites, "suite", nil, "suites to run (repeatable, default all)")
	return cmd
}

// resolve merges the plan file, if any, with explicitly set flags.
func (o *runOptions) resolve(cmd *cobra.Command) (sweep.Options, error) {
	plan := config.DefaultSweepPlan()
	if o.plan != "" {
		loaded, err := config.LoadSweepPlan(o.plan)
		if err != nil {
			return sweep.Options{}, err
		}
		plan = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("codes") {
		plan.Codes = o.codes
	}
	if flags.Changed("min-len") {
		plan.MinLen = &o.minLen
	}
	if flags.Changed("max-len") {
		plan.MaxLen = &o.maxLen
	}
	if flags.Changed("suite") {
		plan.Suites = o.suites
	}
	if err := config.ValidateSweepPlan(plan); err != nil {
		return sweep.Options{}, err
	}
	return plan.Options()
}

func printReport(cmd *cobra.Command, report sweep.Report) {
	out := cmd.OutOrStdout()
	for _, res := range report.Results {
		status := okFmt("PASS")
		if len(res.Failures) > 0 {
			status = failFmt("FAIL")
		}
		fmt.Fprintf(out, "%s %-13s %s\n", status, res.Suite, dimFmt(fmt.Sprintf("%d cases", res.Cases)))
		for _, f := range res.Failures {
			fmt.Fprintf(out, "    %s\n", infoFmt(f.String()))
		}
	}
	summary := okFmt(fmt.Sprintf("%d cases passed", report.Cases))
	if !report.OK() {
		summary = failFmt(fmt.Sprintf("%d of %d cases failed", report.Failed, report.Cases))
	}
	fmt.Fprintln(out, summary)
}
