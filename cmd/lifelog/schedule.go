package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/lifelog/internal/adherence"
	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/config"
	"github.com/Veraticus/lifelog/internal/schedule"
)

func scheduleCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Recompute configured adherence reports on a schedule",
		Long: `Run the reports listed under schedule.reports in the config file every
time schedule.cron fires, printing each report's alerts. Runs until
interrupted unless --once is given.`,
		Example: `  # config.yaml
  schedule:
    cron: "0 8 * * *"
    reports:
      - user: alice
        subject: aspirin
        days: 7

  lifelog schedule
  lifelog schedule --once`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, err := config.LoadSchedule(viper.GetViper())
			if err != nil {
				return err
			}
			if len(sched.Reports) == 0 {
				return fmt.Errorf("%w: no reports under %s", common.ErrMissingConfig, config.KeyScheduleReports)
			}

			out := cmd.OutOrStdout()
			handler := cli.NewInterruptHandler(out, "Scheduler", "")
			ctx, stop := handler.HandleInterrupts(cmd.Context())
			defer stop()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runner := schedule.NewRunner(adherence.New(store), sched.Reports, clock, func(res schedule.Result) {
				printScheduled(out, res)
			})

			if once {
				if failed := runner.RunOnce(ctx); failed > 0 {
					return fmt.Errorf("%d scheduled reports failed", failed)
				}
				return nil
			}

			next, err := schedule.Next(sched.Cron, clock())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Next run at %s", next.Format("2006-01-02 15:04"))))
			return runner.Run(ctx, sched.Cron)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run every report once and exit")
	return cmd
}

func printScheduled(out io.Writer, res schedule.Result) {
	label := fmt.Sprintf("%s/%s (%d days)", res.Job.User, res.Job.Subject, res.Job.Days)
	if res.Err != nil {
		fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", label, res.Err)))
		return
	}

	fmt.Fprintf(out, "%s %d%%\n", cli.BoldStyle.Render(label), res.Report.AdherencePercentage)
	if len(res.Alerts) > 0 {
		fmt.Fprintln(out, cli.RenderAlerts(res.Alerts))
	}
}
