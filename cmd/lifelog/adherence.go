package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lifelog/internal/adherence"
	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/model"
)

func adherenceCmd() *cobra.Command {
	var (
		days     int
		category string
		format   string
		detailed bool
		verify   int
	)

	cmd := &cobra.Command{
		Use:   "adherence <subject>",
		Short: "Report how consistently a subject was logged",
		Long: `Count the calendar days in the trailing window on which the subject was
logged, list the gaps, and show the current streak. Every report carries a
checksum over its inputs so two runs can be compared.`,
		Example: `  lifelog adherence aspirin
  lifelog adherence aspirin --days 30 --format yaml
  lifelog adherence aspirin --detailed
  lifelog adherence aspirin --verify 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var opts []adherence.Option
			if category != "" {
				opts = append(opts, adherence.WithCategory(model.Category(category)))
			}
			calc := adherence.New(store, opts...)

			subject, user, now := args[0], currentUser(), clock()
			out := cmd.OutOrStdout()

			switch {
			case verify > 0:
				check, err := calc.VerifyDeterminism(ctx, user, subject, days, verify, now)
				if err != nil {
					return err
				}
				if outFormat.Structured() {
					return cli.WriteStructured(out, outFormat, check)
				}
				fmt.Fprintln(out, cli.RenderDeterminism(check))
				if !check.Deterministic {
					return fmt.Errorf("adherence report is not deterministic")
				}
				return nil

			case detailed:
				report, err := calc.Detailed(ctx, user, subject, now)
				if err != nil {
					return err
				}
				if outFormat.Structured() {
					return cli.WriteStructured(out, outFormat, report)
				}
				fmt.Fprint(out, cli.RenderDetailed(report))
				return nil

			default:
				report, err := calc.Calculate(ctx, user, subject, days, now)
				if err != nil {
					return err
				}
				alerts := adherence.Alerts(report)
				if outFormat.Structured() {
					return cli.WriteStructured(out, outFormat, struct {
						model.AdherenceReport `yaml:",inline"`
						Alerts                []model.Alert `json:"alerts" yaml:"alerts"`
					}{*report, alerts})
				}
				fmt.Fprint(out, cli.RenderReport(report, alerts))
				return nil
			}
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", adherence.WeeklyWindow, "window length in calendar days")
	cmd.Flags().StringVar(&category, "category", "", "only count events of this category (medication, finance, activity, general)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show 7 and 30 day windows with all-time totals")
	cmd.Flags().IntVar(&verify, "verify", 0, "recompute the report this many times and compare checksums")
	return cmd
}

func engagementCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "engagement [subject]",
		Short: "Score how actively you have been logging",
		Long: `Combine recency, 7-day frequency, logging streak and 30-day growth into a
0-100 engagement score with a trend and churn risk. Without a subject every
event counts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			subject := ""
			if len(args) == 1 {
				subject = args[0]
			}

			engagement, err := adherence.New(store).Engagement(ctx, currentUser(), subject, clock())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outFormat.Structured() {
				return cli.WriteStructured(out, outFormat, engagement)
			}
			fmt.Fprint(out, cli.RenderEngagement(subject, engagement))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}
