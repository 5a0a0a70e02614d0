package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/mailbox"
	"github.com/mnthe/agentcore/internal/panehost"
	"github.com/mnthe/agentcore/internal/swarm"
	"github.com/mnthe/agentcore/internal/task"
	"github.com/mnthe/agentcore/internal/workspace"
)

var (
	swarmWorkerIDs   []string
	swarmRoles       []string
	swarmUseWorktree bool

	swarmStopWorkerID string
	swarmStopAll      bool
)

var swarmCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Spawn, status, and stop worker panes",
}

var swarmSpawnCmd = &cobra.Command{
	Use:   "spawn <project> <team> <session-name> <source-dir>",
	Short: "Create the pane-host session and one pane per worker",
	Args:  cobra.ExactArgs(4),
	RunE:  runSwarmSpawn,
}

var swarmStatusCmd = &cobra.Command{
	Use:   "status <project> <team>",
	Short: "List a swarm's workers, decorated with liveness",
	Args:  cobra.ExactArgs(2),
	RunE:  runSwarmStatus,
}

var swarmStopCmd = &cobra.Command{
	Use:   "stop <project> <team>",
	Short: "Stop one worker's pane, or the whole session with --all",
	Args:  cobra.ExactArgs(2),
	RunE:  runSwarmStop,
}

var swarmResumeCmd = &cobra.Command{
	Use:   "resume <project> <team>",
	Short: "Clear a swarm plan's paused flag after resolving a merge conflict",
	Args:  cobra.ExactArgs(2),
	RunE:  runSwarmResume,
}

func init() {
	rootCmd.AddCommand(swarmCmd)
	swarmCmd.AddCommand(swarmSpawnCmd, swarmStatusCmd, swarmStopCmd, swarmResumeCmd)

	swarmSpawnCmd.Flags().StringSliceVar(&swarmWorkerIDs, "worker-ids", nil, "worker ids to spawn (required)")
	swarmSpawnCmd.Flags().StringSliceVar(&swarmRoles, "roles", nil, "worker-id=role pairs")
	swarmSpawnCmd.Flags().BoolVar(&swarmUseWorktree, "use-worktree", false, "provision an isolated worktree per worker")
	_ = swarmSpawnCmd.MarkFlagRequired("worker-ids")

	swarmStopCmd.Flags().StringVar(&swarmStopWorkerID, "worker-id", "", "worker to stop")
	swarmStopCmd.Flags().BoolVar(&swarmStopAll, "all", false, "stop the whole swarm session")
}

func swarmController() *swarm.Controller {
	p := Resolver()
	s := KernelStore()
	host := &panehost.Tmux{Command: Cfg().Swarm.PaneCommand}
	return swarm.New(p, s, task.New(p, s), mailbox.New(p, s), workspace.New(p), host, nil)
}

func parseRoles(pairs []string) map[string]string {
	roles := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				roles[pair[:i]] = pair[i+1:]
				break
			}
		}
	}
	return roles
}

func runSwarmSpawn(cmd *cobra.Command, args []string) error {
	project, team, sessionName, sourceDir := args[0], args[1], args[2], args[3]
	useWorktree := swarmUseWorktree || Cfg().Swarm.UseWorktree

	if GetDryRun() {
		printOK("would spawn session %s with workers %v", sessionName, swarmWorkerIDs)
		return nil
	}

	plan, err := swarmController().Spawn(context.Background(), swarm.SpawnRequest{
		Project:     project,
		Team:        team,
		WorkerIDs:   swarmWorkerIDs,
		Roles:       parseRoles(swarmRoles),
		SourceDir:   sourceDir,
		UseWorktree: useWorktree,
		SessionName: sessionName,
	})
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(plan) },
		func() { printOK("swarm %s spawned with %d worker(s)", plan.Session, len(plan.Workers)) },
	)
}

func runSwarmStatus(cmd *cobra.Command, args []string) error {
	project, team := args[0], args[1]
	views, err := swarmController().Status(context.Background(), project, team)
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(views) },
		func() {
			w := newTable()
			fmt.Fprintln(w, "WORKER_ID\tROLE\tSTATUS\tALIVE\tCURRENT_TASK")
			for _, v := range views {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", v.ID, v.Role, v.Status, v.Alive, v.CurrentTask)
			}
			_ = w.Flush()
			fmt.Printf("%d worker(s)\n", len(views))
		},
	)
}

func runSwarmStop(cmd *cobra.Command, args []string) error {
	project, team := args[0], args[1]
	if GetDryRun() {
		printOK("would stop worker=%q all=%t in %s/%s", swarmStopWorkerID, swarmStopAll, project, team)
		return nil
	}
	if err := swarmController().Stop(context.Background(), project, team, swarmStopWorkerID, swarmStopAll); err != nil {
		return err
	}
	if swarmStopAll {
		printOK("swarm session stopped")
		return nil
	}
	printOK("worker %s stopped", swarmStopWorkerID)
	return nil
}

func runSwarmResume(cmd *cobra.Command, args []string) error {
	project, team := args[0], args[1]
	if GetDryRun() {
		printOK("would resume swarm %s/%s", project, team)
		return nil
	}
	plan, err := swarmController().Resume(context.Background(), project, team)
	if err != nil {
		return err
	}
	return render(
		func() error { return renderJSON(plan) },
		func() { printOK("swarm %s/%s resumed", project, team) },
	)
}
