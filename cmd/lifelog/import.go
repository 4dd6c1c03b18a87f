package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/pipeline"
)

// importStats tallies a batch import.
type importStats struct {
	Accepted int
	Rejected int
	Failed   int
}

func importCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Record statements from a file, one per line",
		Long: `Submit every non-empty line of a file as a statement. Lines starting with
# are skipped. Each line goes through the same checks as 'lifelog log', so
re-running an import does not record the same medication or expense twice.`,
		Example: `  lifelog import journal.txt
  cat notes.txt | lifelog import - --at 2024-06-15T08:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer func() { _ = f.Close() }()
				input = f
			}

			out := cmd.OutOrStdout()
			handler := cli.NewInterruptHandler(out, "Import",
				"Re-run the import to continue; statements already recorded will be rejected as duplicates.")
			ctx, stop := handler.HandleInterrupts(cmd.Context())
			defer stop()

			statements, err := cli.NewLineReader(input).Statements(ctx)
			if err != nil {
				return err
			}
			if len(statements) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("Nothing to import"))
				return nil
			}

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

			bar := progressbar.NewOptions(len(statements),
				progressbar.OptionSetWriter(out),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Recording statements...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(out)
				}),
			)

			stats, rejections := importStatements(ctx, p, statements, observedAt, now, func() {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			})

			for _, line := range rejections {
				fmt.Fprintln(out, line)
			}
			summary := fmt.Sprintf("  • Recorded: %d\n  • Rejected: %d\n  • Failed: %d",
				stats.Accepted, stats.Rejected, stats.Failed)
			fmt.Fprintln(out, cli.RenderBox("Import Complete", summary))

			if handler.WasInterrupted() {
				return ctx.Err()
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d statements could not be recorded", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "when the statements happened (default: now)")
	return cmd
}

// importStatements submits statements in order and stops early if ctx is canceled.
func importStatements(ctx context.Context, p *pipeline.Pipeline, statements []string, observedAt, now time.Time, progress func()) (importStats, []string) {
	var (
		stats      importStats
		rejections []string
	)

	for _, text := range statements {
		if ctx.Err() != nil {
			break
		}

		result, err := p.Submit(ctx, pipeline.Submission{
			UserID: currentUser(),
			Statement: model.RawStatement{
				Text:        text,
				ObservedAt:  observedAt,
				SubmittedAt: now,
			},
		}, now)
		progress()

		switch {
		case err != nil:
			stats.Failed++
			if ctx.Err() == nil {
				rejections = append(rejections, cli.FormatError(fmt.Sprintf("%q: %v", text, err)))
			}
		case result.Accepted():
			stats.Accepted++
		default:
			stats.Rejected++
			rejections = append(rejections, fmt.Sprintf("%s %s", cli.SubtleStyle.Render(fmt.Sprintf("%q:", text)), cli.RenderSubmission(result)))
		}
	}

	return stats, rejections
}
