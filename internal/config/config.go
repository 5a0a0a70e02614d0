// Package config resolves run-time configuration for the kernel and its
// CLI. Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (AGENTCORE_*)
// 3. Project config (.agentcore/config.yaml in cwd)
// 4. Home config (~/.agentcore/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mnthe/agentcore/internal/paths"
)

// Config holds all kernel configuration.
type Config struct {
	// Root overrides the store root (default: ~/.claude/agentcore).
	Root string `yaml:"root" json:"root"`

	// Output controls the default output format (table, json).
	Output string `yaml:"output" json:"output"`

	// Verbose enables verbose diagnostic output.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// Swarm settings
	Swarm SwarmConfig `yaml:"swarm" json:"swarm"`

	// Lock settings
	Lock LockConfig `yaml:"lock" json:"lock"`
}

// SwarmConfig holds swarm-specific settings.
type SwarmConfig struct {
	// MaxWorkers is the configured worker-count limit. Default: 4. It is
	// loaded, merged and reported; Spawn does not read it and provisions
	// every requested worker.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// UseWorktree controls whether Spawn provisions an isolated git
	// worktree per worker. Default: true.
	UseWorktree bool `yaml:"use_worktree" json:"use_worktree"`

	// UseWorktreeSet tracks whether UseWorktree was explicitly configured,
	// distinguishing "not set" from "explicitly set to false".
	UseWorktreeSet bool `yaml:"-" json:"-"`

	// PaneCommand is the CLI command used to host worker panes.
	// Default: "tmux".
	PaneCommand string `yaml:"pane_command" json:"pane_command"`

	// MainlineBranch names the mainline branch. Default: "main". It is
	// loaded and merged; the Swarm Controller's post-merge sync rebases
	// onto "main" and does not read this setting.
	MainlineBranch string `yaml:"mainline_branch" json:"mainline_branch"`
}

// LockConfig holds advisory-lock settings.
type LockConfig struct {
	// TimeoutSeconds bounds how long Store.WithLock retries before giving
	// up with kernelerr.ErrLockTimeout. Default: 5.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput         = "table"
	defaultMaxWorkers     = 4
	defaultPaneCommand    = "tmux"
	defaultMainlineBranch = "main"
	defaultLockTimeout    = 5
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		Verbose: false,
		Swarm: SwarmConfig{
			MaxWorkers:     defaultMaxWorkers,
			UseWorktree:    true,
			PaneCommand:    defaultPaneCommand,
			MainlineBranch: defaultMainlineBranch,
		},
		Lock: LockConfig{
			TimeoutSeconds: defaultLockTimeout,
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults.
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	if homeConfig, _ := loadFromPath(homeConfigPath()); homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	if projectConfig, _ := loadFromPath(projectConfigPath()); projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

// homeConfigPath returns the home config path.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentcore", "config.yaml")
}

// projectConfigPath returns the project config path.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("AGENTCORE_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".agentcore", "config.yaml")
}

// loadFromPath loads config from a YAML file.
func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	var explicit struct {
		Swarm struct {
			UseWorktree *bool `yaml:"use_worktree"`
		} `yaml:"swarm"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.Swarm.UseWorktree != nil {
		cfg.Swarm.UseWorktreeSet = true
	}
	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv(paths.EnvRoot); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("AGENTCORE_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("AGENTCORE_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("AGENTCORE_SWARM_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Swarm.MaxWorkers = n
		}
	}
	if v := os.Getenv("AGENTCORE_SWARM_USE_WORKTREE"); v != "" {
		cfg.Swarm.UseWorktree = v == "true" || v == "1"
		cfg.Swarm.UseWorktreeSet = true
	}
	if v := os.Getenv("AGENTCORE_SWARM_PANE_COMMAND"); v != "" {
		cfg.Swarm.PaneCommand = v
	}
	if v := os.Getenv("AGENTCORE_SWARM_MAINLINE_BRANCH"); v != "" {
		cfg.Swarm.MainlineBranch = v
	}
	if v := os.Getenv("AGENTCORE_LOCK_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Lock.TimeoutSeconds = n
		}
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence.
func merge(dst, src *Config) *Config {
	if src.Root != "" {
		dst.Root = src.Root
	}
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.Swarm.MaxWorkers != 0 {
		dst.Swarm.MaxWorkers = src.Swarm.MaxWorkers
	}
	if src.Swarm.UseWorktreeSet {
		dst.Swarm.UseWorktree = src.Swarm.UseWorktree
		dst.Swarm.UseWorktreeSet = true
	}
	if src.Swarm.PaneCommand != "" {
		dst.Swarm.PaneCommand = src.Swarm.PaneCommand
	}
	if src.Swarm.MainlineBranch != "" {
		dst.Swarm.MainlineBranch = src.Swarm.MainlineBranch
	}
	if src.Lock.TimeoutSeconds != 0 {
		dst.Lock.TimeoutSeconds = src.Lock.TimeoutSeconds
	}
	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.agentcore/config.yaml"
	SourceProject Source = ".agentcore/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

// getEnvString returns the value and whether the env var was set.
func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// getEnvBool returns the boolean value and whether it was truthy.
func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "true" || v == "1" {
		return true, true
	}
	return false, false
}

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// resolveIntField resolves an int through the precedence chain; zero means
// "not set" at every layer except the default.
func resolveIntField(home, project, env, flag, def int) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != 0 {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != 0 {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != 0 {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != 0 {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// ResolvedConfig shows config values with their sources.
type ResolvedConfig struct {
	Root               resolved `json:"root"`
	Output             resolved `json:"output"`
	Verbose            resolved `json:"verbose"`
	SwarmMaxWorkers    resolved `json:"swarm_max_workers"`
	SwarmUseWorktree   resolved `json:"swarm_use_worktree"`
	SwarmPaneCommand   resolved `json:"swarm_pane_command"`
	LockTimeoutSeconds resolved `json:"lock_timeout_seconds"`
}

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// Resolve returns configuration with source tracking.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagOutput, flagRoot string, flagVerbose bool) *ResolvedConfig {
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var homeOutput, homeRoot, homePane string
	var homeVerbose bool
	var homeMaxWorkers, homeLockTimeout int
	if homeConfig != nil {
		homeOutput = homeConfig.Output
		homeRoot = homeConfig.Root
		homeVerbose = homeConfig.Verbose
		homeMaxWorkers = homeConfig.Swarm.MaxWorkers
		homePane = homeConfig.Swarm.PaneCommand
		homeLockTimeout = homeConfig.Lock.TimeoutSeconds
	}

	var projectOutput, projectRoot, projectPane string
	var projectVerbose bool
	var projectMaxWorkers, projectLockTimeout int
	if projectConfig != nil {
		projectOutput = projectConfig.Output
		projectRoot = projectConfig.Root
		projectVerbose = projectConfig.Verbose
		projectMaxWorkers = projectConfig.Swarm.MaxWorkers
		projectPane = projectConfig.Swarm.PaneCommand
		projectLockTimeout = projectConfig.Lock.TimeoutSeconds
	}

	envOutput, _ := getEnvString("AGENTCORE_OUTPUT")
	envRoot, _ := getEnvString(paths.EnvRoot)
	envVerbose, envVerboseSet := getEnvBool("AGENTCORE_VERBOSE")
	envPane, _ := getEnvString("AGENTCORE_SWARM_PANE_COMMAND")
	envMaxWorkers, _ := strconv.Atoi(os.Getenv("AGENTCORE_SWARM_MAX_WORKERS"))
	envLockTimeout, _ := strconv.Atoi(os.Getenv("AGENTCORE_LOCK_TIMEOUT_SECONDS"))

	rc := &ResolvedConfig{
		Root:               resolveStringField(homeRoot, projectRoot, envRoot, flagRoot, ""),
		Output:             resolveStringField(homeOutput, projectOutput, envOutput, flagOutput, defaultOutput),
		Verbose:            resolved{Value: false, Source: SourceDefault},
		SwarmMaxWorkers:    resolveIntField(homeMaxWorkers, projectMaxWorkers, envMaxWorkers, 0, defaultMaxWorkers),
		SwarmUseWorktree:   resolved{Value: true, Source: SourceDefault},
		SwarmPaneCommand:   resolveStringField(homePane, projectPane, envPane, "", defaultPaneCommand),
		LockTimeoutSeconds: resolveIntField(homeLockTimeout, projectLockTimeout, envLockTimeout, 0, defaultLockTimeout),
	}

	if homeVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if projectVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if envVerboseSet && envVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceEnv}
	}
	if flagVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	return rc
}
