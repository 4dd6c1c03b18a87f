package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/config"
	"github.com/Veraticus/lifelog/internal/export"
)

const formatCSV = "csv"

func exportCmd() *cobra.Command {
	var (
		domainName string
		format     string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded events, newest first",
		Long: `Write the current user's recorded events for one domain (medication,
finance) or for all of them. Checksums are included so exported records can
be matched against the journal later.`,
		Example: `  # All medication records as CSV
  lifelog export --domain medication --format csv --output meds.csv

  # Everything as JSON on stdout
  lifelog export --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			domain, err := export.ParseDomain(domainName)
			if err != nil {
				return err
			}

			csvOutput := strings.EqualFold(strings.TrimSpace(format), formatCSV)
			var outFormat cli.Format
			if !csvOutput {
				if outFormat, err = cli.ParseFormat(format); err != nil {
					return fmt.Errorf("%w: unknown export format %q (want table, json, yaml or csv)", common.ErrInvalidInput, format)
				}
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			events, err := export.New(store).Events(ctx, currentUser(), domain)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(config.ExpandPath(output))
				if err != nil {
					return fmt.Errorf("failed to create export file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			switch {
			case csvOutput:
				err = export.WriteCSV(out, events)
			case outFormat.Structured():
				err = cli.WriteStructured(out, outFormat, events)
			default:
				_, err = fmt.Fprint(out, cli.RenderEvents(events))
			}
			if err != nil {
				return err
			}

			if output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
					fmt.Sprintf("Exported %d %s events to %s", len(events), domain, output)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&domainName, "domain", "d", "all", "records to export (medication, finance, all)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}
