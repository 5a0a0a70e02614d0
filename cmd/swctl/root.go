package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/config"
	"github.com/mnthe/agentcore/internal/kernelerr"
	"github.com/mnthe/agentcore/internal/paths"
	"github.com/mnthe/agentcore/internal/store"
)

var (
	flagRoot    string
	flagFormat  string
	flagVerbose bool
	flagDryRun  bool
	flagConfig  string

	activeConfig   *config.Config
	activeResolver *paths.Resolver
	activeStore    *store.Store
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "swctl",
	Short: "Coordination kernel for plan/execute/verify sessions and task swarms",
	Long: `swctl drives the coordination kernel: session lifecycle, project task
graphs, wave scheduling, worker swarms, and the mailbox they use to talk
to each other.

Core Commands:
  session    Plan/execute/verify pipeline for a single track
  task       Create, claim, and resolve units of work
  project    Derived status over a project's task set
  context    Exploration index for a session
  wave       Topological layering of a task graph
  mailbox    Per-recipient inboxes (aliases: inbox, mail)
  workspace  Isolated git working copies for swarm workers
  swarm      Spawn, status, and stop worker panes
  cleanup    Prune terminal/aged sessions`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindRuntime()
	},
}

// Execute runs the root command, mapping a returned error to the
// documented diagnostic prefix and exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(kernelerr.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "override the store root")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "", "output format: table or json (default table)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose diagnostics")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "show what would change without writing")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "project config file path (default: .agentcore/config.yaml)")
}

// bindRuntime resolves configuration and the path resolver once per
// invocation, after flags are parsed but before any subcommand runs.
func bindRuntime() error {
	if path := strings.TrimSpace(flagConfig); path != "" {
		_ = os.Setenv("AGENTCORE_CONFIG", path)
	}

	cfg, err := config.Load(&config.Config{
		Root:    flagRoot,
		Output:  flagFormat,
		Verbose: flagVerbose,
	})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	activeConfig = cfg

	var resolver *paths.Resolver
	switch {
	case flagRoot != "":
		resolver, err = paths.NewResolverAt(flagRoot)
	case cfg.Root != "":
		resolver, err = paths.NewResolverAt(cfg.Root)
	default:
		resolver, err = paths.NewResolver()
	}
	if err != nil {
		return fmt.Errorf("resolve store root: %w", err)
	}
	activeResolver = resolver
	activeStore = store.New()
	if cfg.Lock.TimeoutSeconds > 0 {
		activeStore.LockTimeout = time.Duration(cfg.Lock.TimeoutSeconds) * time.Second
	}

	if flagVerbose {
		rc := config.Resolve(flagFormat, flagRoot, flagVerbose)
		VerbosePrintf("config: root=%v (%s) output=%v (%s) swarm.max_workers=%v (%s) swarm.pane_command=%v (%s)\n",
			rc.Root.Value, rc.Root.Source,
			rc.Output.Value, rc.Output.Source,
			rc.SwarmMaxWorkers.Value, rc.SwarmMaxWorkers.Source,
			rc.SwarmPaneCommand.Value, rc.SwarmPaneCommand.Source)
	}

	return nil
}

// GetFormat returns the resolved output format ("table" or "json").
func GetFormat() string {
	if flagFormat != "" {
		return flagFormat
	}
	if activeConfig != nil && activeConfig.Output != "" {
		return activeConfig.Output
	}
	return "table"
}

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool {
	return flagVerbose
}

// GetDryRun returns the dry-run flag value for use by subcommands.
func GetDryRun() bool {
	return flagDryRun
}

// Resolver returns the path resolver bound for this invocation.
func Resolver() *paths.Resolver {
	return activeResolver
}

// KernelStore returns the atomic store bound for this invocation.
func KernelStore() *store.Store {
	return activeStore
}

// Cfg returns the resolved configuration for this invocation.
func Cfg() *config.Config {
	return activeConfig
}

// VerbosePrintf prints only when verbose mode is enabled.
func VerbosePrintf(format string, args ...interface{}) {
	if flagVerbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printOK writes a success diagnostic with the stable OK: prefix.
func printOK(format string, args ...interface{}) {
	fmt.Printf("OK: "+format+"\n", args...)
}
