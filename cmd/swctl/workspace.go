package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/workspace"
)

var (
	workspaceMainline string
	workspaceWorkers  []string
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Isolated git working copies for swarm workers",
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create <project> <team> <worker-id> <source-dir>",
	Short: "Provision an isolated worktree for a worker",
	Args:  cobra.ExactArgs(4),
	RunE:  runWorkspaceCreate,
}

var workspaceRemoveCmd = &cobra.Command{
	Use:   "remove <project> <team> <worker-id> <source-dir>",
	Short: "Tear down a worker's worktree and branch",
	Args:  cobra.ExactArgs(4),
	RunE:  runWorkspaceRemove,
}

var workspaceSyncCmd = &cobra.Command{
	Use:   "sync <project> <team> <worker-id> <source-dir>",
	Short: "Rebase a worker's branch onto the mainline branch",
	Args:  cobra.ExactArgs(4),
	RunE:  runWorkspaceSync,
}

var workspaceMergeCmd = &cobra.Command{
	Use:   "merge <project> <team> <source-dir>",
	Short: "Merge worker branches into the mainline, in id order",
	Args:  cobra.ExactArgs(3),
	RunE:  runWorkspaceMerge,
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceCreateCmd, workspaceRemoveCmd, workspaceSyncCmd, workspaceMergeCmd)

	workspaceSyncCmd.Flags().StringVar(&workspaceMainline, "mainline", "main", "mainline branch to rebase onto")
	workspaceMergeCmd.Flags().StringSliceVar(&workspaceWorkers, "worker-ids", nil, "worker ids to merge, in order (required)")
	_ = workspaceMergeCmd.MarkFlagRequired("worker-ids")
}

func workspaceManager() *workspace.Manager {
	return workspace.New(Resolver())
}

func runWorkspaceCreate(cmd *cobra.Command, args []string) error {
	project, team, workerID, sourceDir := args[0], args[1], args[2], args[3]
	if GetDryRun() {
		printOK("would create worktree for worker %s", workerID)
		return nil
	}
	target, err := workspaceManager().CreateIsolated(context.Background(), project, team, workerID, sourceDir)
	if err != nil {
		return err
	}
	type created struct {
		Worktree string `json:"worktree"`
	}
	return render(
		func() error { return renderJSON(created{target}) },
		func() { printOK("worktree created at %s", target) },
	)
}

func runWorkspaceRemove(cmd *cobra.Command, args []string) error {
	project, team, workerID, sourceDir := args[0], args[1], args[2], args[3]
	if GetDryRun() {
		printOK("would remove worktree for worker %s", workerID)
		return nil
	}
	if err := workspaceManager().Remove(context.Background(), project, team, workerID, sourceDir); err != nil {
		return err
	}
	printOK("worktree for worker %s removed", workerID)
	return nil
}

func runWorkspaceSync(cmd *cobra.Command, args []string) error {
	project, team, workerID, sourceDir := args[0], args[1], args[2], args[3]
	if GetDryRun() {
		printOK("would sync worker %s onto %s", workerID, workspaceMainline)
		return nil
	}
	result, err := workspaceManager().Sync(context.Background(), project, team, workerID, sourceDir, workspaceMainline)
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(result) },
		func() { printOK("sync for worker %s: %s", workerID, result.Status) },
	)
}

func runWorkspaceMerge(cmd *cobra.Command, args []string) error {
	project, team, sourceDir := args[0], args[1], args[2]
	if GetDryRun() {
		printOK("would merge workers %v into %s", workspaceWorkers, sourceDir)
		return nil
	}
	result, err := workspaceManager().Merge(context.Background(), project, team, workspaceWorkers, sourceDir)
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(result) },
		func() { printOK("merge: %s", result.Status) },
	)
}
