package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/task"
	"github.com/mnthe/agentcore/internal/wave"
)

var waveCmd = &cobra.Command{
	Use:   "wave",
	Short: "Topological layering of a project's task graph",
}

var waveCalculateCmd = &cobra.Command{
	Use:   "calculate <project> <team>",
	Short: "Recompute and persist the wave plan over a project's tasks",
	Args:  cobra.ExactArgs(2),
	RunE:  runWaveCalculate,
}

var waveStatusCmd = &cobra.Command{
	Use:   "status <project> <team>",
	Short: "Print the persisted wave plan",
	Args:  cobra.ExactArgs(2),
	RunE:  runWaveStatus,
}

func init() {
	rootCmd.AddCommand(waveCmd)
	waveCmd.AddCommand(waveCalculateCmd, waveStatusCmd)
}

func waveStore() *wave.Store {
	return wave.New(Resolver(), KernelStore())
}

func runWaveCalculate(cmd *cobra.Command, args []string) error {
	project, team := args[0], args[1]

	tasks, skipped, err := task.New(Resolver(), KernelStore()).List(project, team, task.Filter{})
	if err != nil {
		return err
	}
	if skipped > 0 {
		VerbosePrintf("skipped %d unreadable task file(s)\n", skipped)
	}

	if GetDryRun() {
		plan, cerr := wave.Calculate(tasks)
		if cerr != nil {
			return cerr
		}
		printOK("would persist %d wave(s)", plan.TotalWaves)
		return nil
	}

	plan, err := waveStore().RecalculateAndSave(project, team, tasks)
	if err != nil {
		return err
	}
	return renderWavePlan(plan, fmt.Sprintf("%d wave(s) calculated for %s/%s", plan.TotalWaves, project, team))
}

func runWaveStatus(cmd *cobra.Command, args []string) error {
	plan, err := waveStore().Get(args[0], args[1])
	if err != nil {
		return err
	}
	return renderWavePlan(plan, "")
}

func renderWavePlan(plan *model.WavePlan, okMessage string) error {
	return render(
		func() error { return renderJSON(plan) },
		func() {
			if okMessage != "" {
				printOK(okMessage)
			}
			w := newTable()
			fmt.Fprintln(w, "WAVE\tSTATUS\tTASKS")
			for _, wv := range plan.Waves {
				fmt.Fprintf(w, "%d\t%s\t%s\n", wv.ID, wv.Status, strings.Join(wv.Tasks, ","))
			}
			_ = w.Flush()
			fmt.Printf("current wave: %d of %d\n", plan.CurrentWave, plan.TotalWaves)
		},
	)
}
