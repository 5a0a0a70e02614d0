package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/context"
	"github.com/mnthe/agentcore/internal/model"
)

var (
	contextExpected []string

	explorerID      string
	explorerHint    string
	explorerFile    string
	explorerSummary string
	explorerKeys    []string
	explorerPattern []string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Exploration index for a session",
}

var contextInitCmd = &cobra.Command{
	Use:   "init <session-id>",
	Short: "Set the expected explorer set for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextInit,
}

var contextAddExplorerCmd = &cobra.Command{
	Use:   "add-explorer <session-id>",
	Short: "Record one explorer's summary, merging key files and patterns",
	Args:  cobra.ExactArgs(1),
	RunE:  runContextAddExplorer,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.AddCommand(contextInitCmd, contextAddExplorerCmd)

	contextInitCmd.Flags().StringSliceVar(&contextExpected, "expected", nil, "ordered set of expected explorer ids")

	contextAddExplorerCmd.Flags().StringVar(&explorerID, "id", "", "explorer id (required)")
	contextAddExplorerCmd.Flags().StringVar(&explorerHint, "hint", "", "explorer hint")
	contextAddExplorerCmd.Flags().StringVar(&explorerFile, "file", "", "explorer output file")
	contextAddExplorerCmd.Flags().StringVar(&explorerSummary, "summary", "", "explorer summary text")
	contextAddExplorerCmd.Flags().StringSliceVar(&explorerKeys, "key-files", nil, "key files this explorer identified")
	contextAddExplorerCmd.Flags().StringSliceVar(&explorerPattern, "patterns", nil, "patterns this explorer identified")
	_ = contextAddExplorerCmd.MarkFlagRequired("id")
}

func contextIndex() *context.Index {
	return context.New(Resolver(), KernelStore())
}

func runContextInit(cmd *cobra.Command, args []string) error {
	id := args[0]
	if GetDryRun() {
		printOK("would set expected explorers for session %s", id)
		return nil
	}
	ctx, err := contextIndex().InitContext(id, contextExpected)
	if err != nil {
		return err
	}
	return renderContext(ctx, fmt.Sprintf("context initialized for session %s", id))
}

func runContextAddExplorer(cmd *cobra.Command, args []string) error {
	id := args[0]
	entry := model.Explorer{ID: explorerID, Hint: explorerHint, File: explorerFile, Summary: explorerSummary}

	if GetDryRun() {
		printOK("would record explorer %s for session %s", explorerID, id)
		return nil
	}

	ctx, err := contextIndex().AddExplorer(id, entry, explorerKeys, explorerPattern)
	if err != nil {
		return err
	}
	return renderContext(ctx, fmt.Sprintf("explorer %s recorded for session %s", explorerID, id))
}

func renderContext(ctx *model.Context, okMessage string) error {
	return render(
		func() error { return renderJSON(ctx) },
		func() {
			if okMessage != "" {
				printOK(okMessage)
			}
			w := newTable()
			fmt.Fprintln(w, "EXPECTED\tREPORTED\tCOMPLETE")
			fmt.Fprintf(w, "%d\t%d\t%t\n", len(ctx.ExpectedExplorers), len(ctx.Explorers), ctx.ExplorationComplete)
			_ = w.Flush()
		},
	)
}
