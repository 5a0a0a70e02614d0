// Package model defines the closed set of record types persisted by the
// coordination kernel: sessions, tasks, context indexes, wave plans,
// workers, swarm plans, and mailbox messages. Every field that the JSON
// store round-trips is named here explicitly; nothing downstream should
// reach for a raw map[string]any to read or write one of these documents.
package model

import "time"

// SchemaVersion tags the document shape so future migrations can detect
// and upgrade older documents on read.
const SchemaVersion = 1

// Phase is the lifecycle stage of a Session.
type Phase string

const (
	PhasePlanning     Phase = "PLANNING"
	PhaseExecution    Phase = "EXECUTION"
	PhaseVerification Phase = "VERIFICATION"
	PhaseComplete     Phase = "COMPLETE"
	PhaseCancelled    Phase = "CANCELLED"
	PhaseFailed       Phase = "FAILED"
)

// Terminal reports whether the phase accepts no further mutation other
// than cleanup.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseComplete, PhaseCancelled, PhaseFailed:
		return true
	default:
		return false
	}
}

// ExplorationStage tracks progress through the context-gathering pipeline.
type ExplorationStage string

const (
	StageNotStarted ExplorationStage = "not_started"
	StageOverview   ExplorationStage = "overview"
	StageAnalyzing  ExplorationStage = "analyzing"
	StageTargeted   ExplorationStage = "targeted"
	StageComplete   ExplorationStage = "complete"
)

var explorationOrder = map[ExplorationStage]int{
	StageNotStarted: 0,
	StageOverview:   1,
	StageAnalyzing:  2,
	StageTargeted:   3,
	StageComplete:   4,
}

// ValidExplorationStage reports whether s is one of the closed stage values.
func ValidExplorationStage(s ExplorationStage) bool {
	_, ok := explorationOrder[s]
	return ok
}

// EvidenceRecord is one append-only entry in a session's evidence log.
// Type and Timestamp are required; Detail carries whatever the producer
// (planner, executor, verifier) wants to record.
type EvidenceRecord struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    string         `json:"detail,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// SessionOptions mirrors the closed option set from the configuration
// discriminator: a single value threads from CLI flags through to the
// store without ever being re-derived mid-pipeline.
type SessionOptions struct {
	MaxWorkers    int  `json:"max_workers"`
	MaxIterations int  `json:"max_iterations"`
	SkipVerify    bool `json:"skip_verify"`
	PlanOnly      bool `json:"plan_only"`
	AutoMode      bool `json:"auto_mode"`
	Force         bool `json:"force,omitempty"`
	Resume        bool `json:"resume,omitempty"`
}

// DefaultSessionOptions returns the spec's documented defaults.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		MaxWorkers:    0,
		MaxIterations: 5,
	}
}

// Session is one invocation of the plan/execute/verify pipeline.
type Session struct {
	Version          int               `json:"version"`
	SessionID        string            `json:"session_id"`
	Goal             string            `json:"goal"`
	WorkingDir       string            `json:"working_dir"`
	Phase            Phase             `json:"phase"`
	ExplorationStage ExplorationStage  `json:"exploration_stage"`
	Iteration        int               `json:"iteration"`
	Options          SessionOptions    `json:"options"`
	EvidenceLog      []EvidenceRecord  `json:"evidence_log,omitempty"`
	PlanApprovedAt   *time.Time        `json:"plan_approved_at,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// TaskStatus is the closed status ladder for a Task. The steady-state
// ladder is open -> in_progress -> resolved; pending/failed belong to the
// retry loop (§9 open question: one ladder, named mapping for legacy
// documents that used pending/failed exclusively).
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskResolved   TaskStatus = "resolved"
	TaskFailed     TaskStatus = "failed"
	TaskPending    TaskStatus = "pending"
)

// Complexity is a closed enum describing estimated task effort.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
)

// ValidComplexity reports whether c is empty (unset) or one of the closed
// values.
func ValidComplexity(c Complexity) bool {
	switch c {
	case "", ComplexitySimple, ComplexityStandard, ComplexityComplex:
		return true
	default:
		return false
	}
}

// Task is one unit of work within a project or session.
type Task struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Description string     `json:"description,omitempty"`
	Role        string     `json:"role,omitempty"`
	Domain      string     `json:"domain,omitempty"`
	Complexity  Complexity `json:"complexity,omitempty"`
	Status      TaskStatus `json:"status"`
	BlockedBy   []string   `json:"blocked_by,omitempty"`
	Criteria    []string   `json:"criteria,omitempty"`
	Evidence    []string   `json:"evidence,omitempty"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	Wave        *int       `json:"wave,omitempty"`
	Version     int        `json:"version"`
	RetryCount  int        `json:"retry_count,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskStats is the derived/cached view over a project's task set.
type TaskStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
}

// Project is a stable, named container of tasks, distinct from the
// transient Session concept.
type Project struct {
	Project   string    `json:"project"`
	Team      string    `json:"team"`
	Goal      string    `json:"goal"`
	Phase     Phase     `json:"phase"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Stats     TaskStats `json:"stats"`
}

// Explorer is one reported exploration summary.
type Explorer struct {
	ID      string `json:"id"`
	Hint    string `json:"hint,omitempty"`
	File    string `json:"file,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Context is the exploration index for a session.
type Context struct {
	ExpectedExplorers   []string   `json:"expected_explorers,omitempty"`
	Explorers           []Explorer `json:"explorers,omitempty"`
	KeyFiles            []string   `json:"key_files,omitempty"`
	Patterns            []string   `json:"patterns,omitempty"`
	Constraints         []string   `json:"constraints,omitempty"`
	ExplorationComplete bool       `json:"exploration_complete"`
}

// WaveStatus is the closed status ladder for one wave of the plan.
type WaveStatus string

const (
	WavePlanning   WaveStatus = "planning"
	WaveInProgress WaveStatus = "in_progress"
	WaveCompleted  WaveStatus = "completed"
	WaveVerified   WaveStatus = "verified"
)

// Wave is one level of the topological layering of the task graph.
type Wave struct {
	ID          int        `json:"id"`
	Status      WaveStatus `json:"status"`
	Tasks       []string   `json:"tasks"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// WavePlan is the full topological layering over a project's task graph.
type WavePlan struct {
	TotalWaves  int    `json:"total_waves"`
	CurrentWave int    `json:"current_wave"`
	Waves       []Wave `json:"waves"`
}

// WorkerStatus is the closed status ladder for a swarm Worker.
type WorkerStatus string

const (
	WorkerIdle     WorkerStatus = "idle"
	WorkerWorking  WorkerStatus = "working"
	WorkerNotFound WorkerStatus = "not_found"
	WorkerUnknown  WorkerStatus = "unknown"
)

// Worker is one member of a swarm, pinned to a pane of the pane host.
type Worker struct {
	ID             string       `json:"id"`
	Role           string       `json:"role,omitempty"`
	Pane           int          `json:"pane"`
	Worktree       string       `json:"worktree,omitempty"`
	Branch         string       `json:"branch,omitempty"`
	SessionID      string       `json:"session_id,omitempty"`
	Status         WorkerStatus `json:"status"`
	CurrentTask    string       `json:"current_task,omitempty"`
	TasksCompleted []string     `json:"tasks_completed,omitempty"`
	LastHeartbeat  time.Time    `json:"last_heartbeat"`
	HeartbeatNote  string       `json:"heartbeat_note,omitempty"`
}

// SwarmStatus is the closed status ladder for a SwarmPlan.
type SwarmStatus string

const (
	SwarmRunning SwarmStatus = "running"
	SwarmStopped SwarmStatus = "stopped"
	SwarmPaused  SwarmStatus = "paused"
)

// SwarmPlan is the persisted state of a running swarm.
type SwarmPlan struct {
	Session      string      `json:"session"`
	Status       SwarmStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	Workers      []string    `json:"workers"`
	CurrentWave  int         `json:"current_wave"`
	Paused       bool        `json:"paused"`
	UseWorktree  bool        `json:"use_worktree"`
	SourceDir    string      `json:"source_dir"`
	ConflictAt   string      `json:"conflict_at,omitempty"`
}

// MessageType is the closed set of mailbox message kinds.
type MessageType string

const (
	MessageText             MessageType = "text"
	MessageIdleNotification MessageType = "idle_notification"
	MessageShutdownRequest  MessageType = "shutdown_request"
	MessageTaskAssignment   MessageType = "task_assignment"
	MessageStatusQuery      MessageType = "status_query"
	MessageStatusReply      MessageType = "status_reply"
)

// ValidMessageType reports whether t is one of the closed values.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageIdleNotification, MessageShutdownRequest,
		MessageTaskAssignment, MessageStatusQuery, MessageStatusReply:
		return true
	default:
		return false
	}
}

// Message is one mailbox entry.
type Message struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Read      bool        `json:"read"`
}

// LoopState marks an active continuous session per project/team/role.
type LoopState struct {
	Active    bool      `json:"active"`
	Project   string    `json:"project"`
	Team      string    `json:"team"`
	Role      string    `json:"role"`
	StartedAt time.Time `json:"started_at"`
	SessionID string    `json:"session_id"`
}
