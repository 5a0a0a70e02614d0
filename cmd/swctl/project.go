package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/project"
	"github.com/mnthe/agentcore/internal/task"
)

var projectField string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Derived status over a project's task set",
}

var projectStatusCmd = &cobra.Command{
	Use:   "status <project> <team>",
	Short: "Print a project's stats and blocked-task list",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectStatus,
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectStatusCmd)

	projectStatusCmd.Flags().StringVar(&projectField, "field", "", "extract one dotted field path (e.g. stats.open) instead of the full status")
}

func projectView() *project.View {
	return project.New(Resolver(), KernelStore(), task.New(Resolver(), KernelStore()))
}

func runProjectStatus(cmd *cobra.Command, args []string) error {
	proj, team := args[0], args[1]
	status, err := projectView().Status(proj, team, GetVerbose())
	if err != nil {
		return err
	}

	if status.SkippedFiles > 0 {
		VerbosePrintf("skipped %d unreadable task file(s)\n", status.SkippedFiles)
	}

	if projectField != "" {
		value, ferr := project.ExtractField(status, projectField)
		if ferr != nil {
			return ferr
		}
		return render(
			func() error { return renderJSON(value) },
			func() { fmt.Println(value) },
		)
	}

	return render(
		func() error { return renderJSON(status) },
		func() {
			w := newTable()
			fmt.Fprintln(w, "PROJECT\tTEAM\tPHASE\tTOTAL\tOPEN\tIN_PROGRESS\tRESOLVED\tBLOCKED")
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				status.Project, status.Team, status.Phase,
				status.Stats.Total, status.Stats.Open, status.Stats.InProgress, status.Stats.Resolved,
				len(status.BlockedTasks))
			_ = w.Flush()
		},
	)
}
