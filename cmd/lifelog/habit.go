package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/pipeline"
	"github.com/Veraticus/lifelog/internal/storage"
)

func habitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Track recurring habits and their streaks",
		Long: `Create habits, mark days as done or missed, and see current and longest
streaks. Streaks are recomputed from the completion history after every change.`,
		Example: `  lifelog habit add meditate --frequency daily
  lifelog habit complete meditate
  lifelog habit miss meditate --date yesterday
  lifelog habit frequency meditate weekly
  lifelog habit list`,
	}

	cmd.AddCommand(habitAddCmd())
	cmd.AddCommand(habitMarkCmd("complete", "Mark a habit as done for a day", true))
	cmd.AddCommand(habitMarkCmd("miss", "Mark a habit as missed for a day", false))
	cmd.AddCommand(habitFrequencyCmd())
	cmd.AddCommand(habitShowCmd())
	cmd.AddCommand(habitListCmd())

	return cmd
}

// withHabits opens storage and a pipeline for a habit subcommand.
func withHabits(ctx context.Context, fn func(store *storage.SQLiteStorage, p *pipeline.Pipeline) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, err := initPipeline(store)
	if err != nil {
		return err
	}
	return fn(store, p)
}

func habitAddCmd() *cobra.Command {
	var frequency string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a habit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := model.ParseFrequencyUnit(frequency)
			if err != nil {
				return err
			}

			return withHabits(cmd.Context(), func(_ *storage.SQLiteStorage, p *pipeline.Pipeline) error {
				habit, err := p.CreateHabit(cmd.Context(), currentUser(), strings.Join(args, " "), unit, clock())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s habit %q", habit.FrequencyUnit, habit.Name)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&frequency, "frequency", "daily", "how often the habit is due (daily, weekly, monthly)")
	return cmd
}

func habitMarkCmd(use, short string, completed bool) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   use + " <name>",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			now := clock()
			day, err := parseDate(date, now)
			if err != nil {
				return err
			}

			return withHabits(ctx, func(store *storage.SQLiteStorage, p *pipeline.Pipeline) error {
				habit, err := store.FindHabitByName(ctx, currentUser(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				habit, err = p.CompleteHabit(ctx, habit.ID, day, completed, now)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderHabit(habit))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "today", "day to mark (YYYY-MM-DD, today, yesterday)")
	return cmd
}

func habitFrequencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frequency <name> <daily|weekly|monthly>",
		Short: "Change how often a habit is due",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := model.ParseFrequencyUnit(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withHabits(ctx, func(store *storage.SQLiteStorage, p *pipeline.Pipeline) error {
				habit, err := store.FindHabitByName(ctx, currentUser(), args[0])
				if err != nil {
					return err
				}
				habit, err = p.ChangeFrequency(ctx, habit.ID, unit, clock())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderHabit(habit))
				return nil
			})
		},
	}
}

func habitShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a habit's streak, recomputed for today",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withHabits(ctx, func(store *storage.SQLiteStorage, p *pipeline.Pipeline) error {
				habit, err := store.FindHabitByName(ctx, currentUser(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				habit, err = p.RefreshStreak(ctx, habit.ID, clock())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if outFormat.Structured() {
					return cli.WriteStructured(out, outFormat, habit)
				}
				fmt.Fprintln(out, cli.RenderHabit(habit))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}

func habitListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List habits with their streaks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return withHabits(ctx, func(store *storage.SQLiteStorage, p *pipeline.Pipeline) error {
				habits, err := store.ListHabits(ctx, currentUser())
				if err != nil {
					return err
				}

				now := clock()
				for i := range habits {
					refreshed, err := p.RefreshStreak(ctx, habits[i].ID, now)
					if err != nil {
						return err
					}
					habits[i] = *refreshed
				}

				out := cmd.OutOrStdout()
				if outFormat.Structured() {
					return cli.WriteStructured(out, outFormat, habits)
				}
				fmt.Fprint(out, cli.RenderHabits(habits))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}
