package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lifelog/internal/cli"
	"github.com/Veraticus/lifelog/internal/extract"
)

func extractCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "extract <statement>",
		Short: "Show how a statement would be classified",
		Long: `Run the deterministic extractor over a statement without recording it.
Nothing is written to the database.`,
		Example: `  lifelog extract "took 2 ibuprofen with breakfast"
  lifelog extract "spent $12.50 on lunch" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return err
			}

			result := extract.New().Extract(strings.Join(args, " "), clock())

			out := cmd.OutOrStdout()
			if outFormat.Structured() {
				return cli.WriteStructured(out, outFormat, map[string]any{
					"intent":     result.Intent(),
					"method":     result.Method,
					"confidence": result.Confidence,
					"signals":    result.Signals(),
				})
			}
			_, err = fmt.Fprint(out, cli.RenderExtraction(result))
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json, yaml)")
	return cmd
}
