package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/cleanup"
)

var (
	cleanupOlderThan int
	cleanupCompleted bool
	cleanupAll       bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune terminal or aged sessions",
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntVar(&cleanupOlderThan, "older-than", 7, "delete terminal sessions older than this many days")
	cleanupCmd.Flags().BoolVar(&cleanupCompleted, "completed", false, "delete every terminal-state session")
	cleanupCmd.Flags().BoolVar(&cleanupAll, "all", false, "delete every session, active or not")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	mode := cleanup.Mode{OlderThanDays: cleanupOlderThan, Completed: cleanupCompleted, All: cleanupAll}

	if GetDryRun() {
		printOK("would scan sessions under mode older_than=%d completed=%t all=%t", cleanupOlderThan, cleanupCompleted, cleanupAll)
		return nil
	}

	manager := cleanup.New(Resolver(), KernelStore())
	result, err := manager.Run(mode, time.Now().UTC())
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(result) },
		func() {
			w := newTable()
			fmt.Fprintln(w, "SESSION_ID\tGOAL\tPHASE\tAGE_DAYS")
			for _, d := range result.DeletedSessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.SessionID, d.Goal, d.Phase, d.AgeDays)
			}
			_ = w.Flush()
			printOK("%d deleted, %d preserved", result.DeletedCount, result.PreservedCount)
		},
	)
}
