package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/pipeline"
)

func logCmd() *cobra.Command {
	var (
		at     string
		amount float64
		format string
	)

	cmd := &cobra.Command{
		Use:   "log <statement>",
		Short: "Record a statement",
		Long: `Classify a statement and record it. Medication and spending are checked
for duplicates and backdating before anything is written.`,
		Example: `  lifelog log "took aspirin"
  lifelog log "took my vitamin d" --at 08:15
  lifelog log "groceries" --amount 54.20 --at "2h ago"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			now := clock()
			observedAt, err := parseWhen(at, now)
			if err != nil {
				return err
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			p, err := initPipeline(store)
			if err != nil {
				return err
			}

			sub := pipeline.Submission{
				UserID: currentUser(),
				Statement: model.RawStatement{
					Text:        strings.Join(args, " "),
					ObservedAt:  observedAt,
					SubmittedAt: now,
				},
			}
			if cmd.Flags().Changed("amount") {
				sub.Amount = &amount
			}

			result, err := p.Submit(ctx, sub, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outFormat.Structured() {
				if err := cli.WriteStructured(out, outFormat, submissionView(result)); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, cli.RenderSubmission(result))
			}

			if !result.Accepted() {
				return fmt.Errorf("statement rejected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", `when it happened: RFC 3339, "2006-01-02 15:04", "15:04" or a duration ago (default: now)`)
	cmd.Flags().Float64Var(&amount, "amount", 0, "record as an expense of this amount")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}

// submissionView is the structured form of a pipeline result.
func submissionView(result *pipeline.Result) map[string]any {
	view := map[string]any{
		"accepted": result.Accepted(),
		"intent":   result.Extraction.Intent(),
		"signals":  result.Extraction.Signals(),
	}
	if result.Outcome != nil {
		view["validation"] = result.Outcome
	}
	if result.Event != nil {
		view["event"] = result.Event
	}
	return view
}
