package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/task"
)

var (
	taskSubject     string
	taskDescription string
	taskRole        string
	taskDomain      string
	taskComplexity  string
	taskBlockedBy   []string
	taskCriteria    []string

	taskListStatus    string
	taskListRole      string
	taskListAvailable bool

	taskClaimOwner      string
	taskClaimRole       string
	taskClaimStrictRole bool

	taskUpdateStatus string
	taskUpdateWave   int

	taskEvidenceText string
	taskDeleteForce  bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, claim, and resolve units of work within a project",
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <project> <team> <task-id>",
	Short: "Create a new task",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskCreate,
}

var taskGetCmd = &cobra.Command{
	Use:   "get <project> <team> <task-id>",
	Short: "Print a task document",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskGet,
}

var taskListCmd = &cobra.Command{
	Use:   "list <project> <team>",
	Short: "List a project/team's tasks",
	Args:  cobra.ExactArgs(2),
	RunE:  runTaskList,
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <project> <team> <task-id>",
	Short: "Claim a task for an owner",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskClaim,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <project> <team> <task-id>",
	Short: "Patch a task's status, subject, description, or wave",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskUpdate,
}

var taskReleaseCmd = &cobra.Command{
	Use:   "release <project> <team> <task-id>",
	Short: "Release a task's claim",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskRelease,
}

var taskEvidenceCmd = &cobra.Command{
	Use:   "evidence <project> <team> <task-id>",
	Short: "Append an evidence string to a task",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskEvidence,
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <project> <team> <task-id>",
	Short: "Delete an open task",
	Args:  cobra.ExactArgs(3),
	RunE:  runTaskDelete,
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskCreateCmd, taskGetCmd, taskListCmd, taskClaimCmd, taskUpdateCmd, taskReleaseCmd, taskEvidenceCmd, taskDeleteCmd)

	taskCreateCmd.Flags().StringVar(&taskSubject, "subject", "", "one-line task subject")
	taskCreateCmd.Flags().StringVar(&taskDescription, "description", "", "task description")
	taskCreateCmd.Flags().StringVar(&taskRole, "role", "", "role this task is scoped to")
	taskCreateCmd.Flags().StringVar(&taskDomain, "domain", "", "domain tag")
	taskCreateCmd.Flags().StringVar(&taskComplexity, "complexity", "", "estimated complexity: simple, standard, complex")
	taskCreateCmd.Flags().StringSliceVar(&taskBlockedBy, "blocked-by", nil, "task ids this task depends on")
	taskCreateCmd.Flags().StringSliceVar(&taskCriteria, "criteria", nil, "acceptance criteria")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "filter by status")
	taskListCmd.Flags().StringVar(&taskListRole, "role", "", "filter by role")
	taskListCmd.Flags().BoolVar(&taskListAvailable, "available", false, "restrict to open, unclaimed tasks")

	taskClaimCmd.Flags().StringVar(&taskClaimOwner, "owner", "", "claiming owner id (required)")
	taskClaimCmd.Flags().StringVar(&taskClaimRole, "role", "", "claimer's role, checked against the task's role")
	taskClaimCmd.Flags().BoolVar(&taskClaimStrictRole, "strict-role", false, "refuse the claim on a role mismatch")
	_ = taskClaimCmd.MarkFlagRequired("owner")

	taskUpdateCmd.Flags().StringVar(&taskUpdateStatus, "status", "", "target status")
	taskUpdateCmd.Flags().StringVar(&taskSubject, "subject", "", "new subject")
	taskUpdateCmd.Flags().StringVar(&taskDescription, "description", "", "new description")
	taskUpdateCmd.Flags().IntVar(&taskUpdateWave, "wave", 0, "assign this task to a wave id")

	taskEvidenceCmd.Flags().StringVar(&taskEvidenceText, "text", "", "evidence text (required)")
	_ = taskEvidenceCmd.MarkFlagRequired("text")

	taskDeleteCmd.Flags().BoolVar(&taskDeleteForce, "force", false, "delete even if other tasks depend on this one")
}

func taskStore() *task.Store {
	return task.New(Resolver(), KernelStore())
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	project, team, id := args[0], args[1], args[2]
	fields := task.Fields{
		Subject:     taskSubject,
		Description: taskDescription,
		Role:        taskRole,
		Domain:      taskDomain,
		Complexity:  model.Complexity(taskComplexity),
		BlockedBy:   taskBlockedBy,
		Criteria:    taskCriteria,
	}

	if GetDryRun() {
		printOK("would create task %s/%s/%s", project, team, id)
		return nil
	}

	t, err := taskStore().Create(project, team, id, fields)
	if err != nil {
		return err
	}
	return renderTask(t, fmt.Sprintf("task %s created", id))
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	t, err := taskStore().Get(args[0], args[1], args[2])
	if err != nil {
		return err
	}
	return renderTask(t, "")
}

func runTaskList(cmd *cobra.Command, args []string) error {
	project, team := args[0], args[1]
	filter := task.Filter{
		Status:    model.TaskStatus(taskListStatus),
		Role:      taskListRole,
		Available: taskListAvailable,
	}
	tasks, skipped, err := taskStore().List(project, team, filter)
	if err != nil {
		return err
	}
	if skipped > 0 {
		VerbosePrintf("skipped %d unreadable task file(s)\n", skipped)
	}
	return render(
		func() error {
			return renderJSON(struct {
				Tasks   []*model.Task `json:"tasks"`
				Skipped int           `json:"skipped,omitempty"`
			}{tasks, skipped})
		},
		func() {
			w := newTable()
			fmt.Fprintln(w, "ID\tSTATUS\tROLE\tCLAIMED_BY\tWAVE\tSUBJECT")
			for _, t := range tasks {
				wave := ""
				if t.Wave != nil {
					wave = fmt.Sprintf("%d", *t.Wave)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Role, t.ClaimedBy, wave, t.Subject)
			}
			_ = w.Flush()
			fmt.Printf("%d task(s)\n", len(tasks))
		},
	)
}

func runTaskClaim(cmd *cobra.Command, args []string) error {
	project, team, id := args[0], args[1], args[2]
	if GetDryRun() {
		printOK("would claim task %s for %s", id, taskClaimOwner)
		return nil
	}
	t, err := taskStore().Claim(project, team, id, taskClaimOwner, taskClaimRole, taskClaimStrictRole)
	if err != nil {
		return err
	}
	return renderTask(t, fmt.Sprintf("task %s claimed by %s", id, taskClaimOwner))
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
	project, team, id := args[0], args[1], args[2]
	patch := task.UpdatePatch{}
	if taskUpdateStatus != "" {
		s := model.TaskStatus(taskUpdateStatus)
		patch.Status = &s
	}
	if cmd.Flags().Changed("subject") {
		patch.Subject = &taskSubject
	}
	if cmd.Flags().Changed("description") {
		patch.Description = &taskDescription
	}
	if cmd.Flags().Changed("wave") {
		patch.Wave = &taskUpdateWave
	}

	if GetDryRun() {
		printOK("would update task %s", id)
		return nil
	}

	t, err := taskStore().Update(project, team, id, patch)
	if err != nil {
		return err
	}
	return renderTask(t, fmt.Sprintf("task %s updated", id))
}

func runTaskRelease(cmd *cobra.Command, args []string) error {
	project, team, id := args[0], args[1], args[2]
	if GetDryRun() {
		printOK("would release task %s", id)
		return nil
	}
	t, err := taskStore().Release(project, team, id)
	if err != nil {
		return err
	}
	return renderTask(t, fmt.Sprintf("task %s released", id))
}

func runTaskEvidence(cmd *cobra.Command, args []string) error {
	project, team, id := args[0], args[1], args[2]
	if GetDryRun() {
		printOK("would append evidence to task %s", id)
		return nil
	}
	t, err := taskStore().AppendEvidence(project, team, id, taskEvidenceText)
	if err != nil {
		return err
	}
	return renderTask(t, fmt.Sprintf("evidence appended to task %s", id))
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	project, team, id := args[0], args[1], args[2]
	if GetDryRun() {
		printOK("would delete task %s", id)
		return nil
	}
	orphaned, err := taskStore().Delete(project, team, id, taskDeleteForce)
	if err != nil {
		return err
	}
	if len(orphaned) > 0 {
		printOK("task %s deleted (orphaned dependents: %s)", id, strings.Join(orphaned, ", "))
		return nil
	}
	printOK("task %s deleted", id)
	return nil
}

func renderTask(t *model.Task, okMessage string) error {
	return render(
		func() error { return renderJSON(t) },
		func() {
			if okMessage != "" {
				printOK(okMessage)
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tSTATUS\tROLE\tCLAIMED_BY\tVERSION\tSUBJECT")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", t.ID, t.Status, t.Role, t.ClaimedBy, t.Version, t.Subject)
			_ = w.Flush()
		},
	)
}
