package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ragcore/internal/assembler"
)

var (
	strategyLine = color.New(color.FgCyan, color.Bold).SprintfFunc()
	sourcesLine  = color.New(color.FgGreen).SprintFunc()
	emptyLine    = color.New(color.FgYellow).SprintFunc()
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve the grounding context for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine(currentConfig, nil)
		if err != nil {
			return err
		}
		defer engine.Shutdown(cmd.Context())
		if err := engine.Initialize(cmd.Context()); err != nil {
			return err
		}

		res := engine.Retrieve(cmd.Context(), strings.Join(args, " "))
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strategyLine("strategy: %s  request: %s  elapsed: %s", res.Retrieval.Strategy, res.RequestID, res.Elapsed))
		if res.Context.Empty() {
			fmt.Fprintln(out, emptyLine("no grounding available"))
			return nil
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, res.Context.Text)
		fmt.Fprintln(out)
		fmt.Fprintln(out, sourcesLine(assembler.AttributionText(res.Context.Attributions)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
