package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnthe/agentcore/internal/model"
	"github.com/mnthe/agentcore/internal/session"
)

var (
	sessionGoal          string
	sessionWorkingDir    string
	sessionMaxWorkers    int
	sessionMaxIterations int
	sessionSkipVerify    bool
	sessionPlanOnly      bool
	sessionAutoMode      bool
	sessionForce         bool
	sessionResumeOpt     bool

	sessionPhase    string
	sessionStage    string
	sessionIter     int
	sessionApproved bool

	sessionEvidenceType   string
	sessionEvidenceDetail string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the plan/execute/verify session lifecycle",
}

var sessionInitCmd = &cobra.Command{
	Use:   "init <session-id>",
	Short: "Create a new session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionInit,
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Print a session document",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionGet,
}

var sessionUpdateCmd = &cobra.Command{
	Use:   "update <session-id>",
	Short: "Patch a session's phase, exploration stage, or iteration",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionUpdate,
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel <session-id>",
	Short: "Idempotently cancel a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionCancel,
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Clear a session's cancelled_at without changing phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionResume,
}

var sessionEvidenceCmd = &cobra.Command{
	Use:   "evidence <session-id>",
	Short: "Append an evidence record to a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionEvidence,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInitCmd, sessionGetCmd, sessionUpdateCmd, sessionCancelCmd, sessionResumeCmd, sessionEvidenceCmd)

	sessionInitCmd.Flags().StringVar(&sessionGoal, "goal", "", "goal statement for the session")
	sessionInitCmd.Flags().StringVar(&sessionWorkingDir, "working-dir", "", "working directory the session operates in")
	sessionInitCmd.Flags().IntVar(&sessionMaxWorkers, "max-workers", 0, "upper bound on concurrent workers (0 = unbounded)")
	sessionInitCmd.Flags().IntVar(&sessionMaxIterations, "max-iterations", 5, "upper bound on execute/verify retries")
	sessionInitCmd.Flags().BoolVar(&sessionSkipVerify, "skip-verify", false, "skip the verification phase")
	sessionInitCmd.Flags().BoolVar(&sessionPlanOnly, "plan-only", false, "stop after planning")
	sessionInitCmd.Flags().BoolVar(&sessionAutoMode, "auto-mode", false, "commit to default decisions without asking")
	sessionInitCmd.Flags().BoolVar(&sessionForce, "force", false, "override the active-session safety check")
	sessionInitCmd.Flags().BoolVar(&sessionResumeOpt, "resume", false, "mark this as a resumed session in its recorded options")

	sessionUpdateCmd.Flags().StringVar(&sessionPhase, "phase", "", "target phase (PLANNING, EXECUTION, VERIFICATION, COMPLETE, FAILED, CANCELLED)")
	sessionUpdateCmd.Flags().StringVar(&sessionStage, "exploration-stage", "", "target exploration stage")
	sessionUpdateCmd.Flags().IntVar(&sessionIter, "iteration", 0, "set the iteration counter (must be >= 1)")
	sessionUpdateCmd.Flags().BoolVar(&sessionApproved, "plan-approved", false, "stamp plan_approved_at with the current time")

	sessionEvidenceCmd.Flags().StringVar(&sessionEvidenceType, "type", "", "evidence record type (required)")
	sessionEvidenceCmd.Flags().StringVar(&sessionEvidenceDetail, "detail", "", "free-text evidence detail")
	_ = sessionEvidenceCmd.MarkFlagRequired("type")
}

func sessionStore() *session.Store {
	return session.New(Resolver(), KernelStore())
}

func runSessionInit(cmd *cobra.Command, args []string) error {
	id := args[0]
	opts := model.SessionOptions{
		MaxWorkers:    sessionMaxWorkers,
		MaxIterations: sessionMaxIterations,
		SkipVerify:    sessionSkipVerify,
		PlanOnly:      sessionPlanOnly,
		AutoMode:      sessionAutoMode,
		Force:         sessionForce,
		Resume:        sessionResumeOpt,
	}

	if GetDryRun() {
		printOK("would init session %s (goal=%q)", id, sessionGoal)
		return nil
	}

	sess, err := sessionStore().Init(id, sessionGoal, sessionWorkingDir, opts, sessionForce)
	if err != nil {
		return err
	}
	return renderSession(sess, fmt.Sprintf("session %s initialized", id))
}

func runSessionGet(cmd *cobra.Command, args []string) error {
	sess, err := sessionStore().Get(args[0])
	if err != nil {
		return err
	}
	return renderSession(sess, "")
}

func runSessionUpdate(cmd *cobra.Command, args []string) error {
	id := args[0]
	patch := session.Patch{PlanApproved: sessionApproved}
	if sessionPhase != "" {
		p := model.Phase(sessionPhase)
		patch.Phase = &p
	}
	if sessionStage != "" {
		s := model.ExplorationStage(sessionStage)
		patch.ExplorationStage = &s
	}
	if sessionIter != 0 {
		patch.Iteration = &sessionIter
	}

	if GetDryRun() {
		printOK("would update session %s", id)
		return nil
	}

	sess, err := sessionStore().Update(id, patch)
	if err != nil {
		return err
	}
	return renderSession(sess, fmt.Sprintf("session %s updated", id))
}

func runSessionCancel(cmd *cobra.Command, args []string) error {
	id := args[0]
	if GetDryRun() {
		printOK("would cancel session %s", id)
		return nil
	}
	sess, err := sessionStore().Cancel(id)
	if err != nil {
		return err
	}
	return renderSession(sess, fmt.Sprintf("session %s cancelled", id))
}

func runSessionResume(cmd *cobra.Command, args []string) error {
	id := args[0]
	if GetDryRun() {
		printOK("would resume session %s", id)
		return nil
	}
	sess, err := sessionStore().Resume(id)
	if err != nil {
		return err
	}
	return renderSession(sess, fmt.Sprintf("session %s resumed", id))
}

func runSessionEvidence(cmd *cobra.Command, args []string) error {
	id := args[0]
	record := model.EvidenceRecord{Type: sessionEvidenceType, Detail: sessionEvidenceDetail}

	if GetDryRun() {
		printOK("would append %s evidence to session %s", sessionEvidenceType, id)
		return nil
	}

	sess, err := sessionStore().AppendEvidence(id, record)
	if err != nil {
		return err
	}
	return renderSession(sess, fmt.Sprintf("evidence appended to session %s", id))
}

func renderSession(sess *model.Session, okMessage string) error {
	return render(
		func() error { return renderJSON(sess) },
		func() {
			if okMessage != "" {
				printOK(okMessage)
			}
			w := newTable()
			fmt.Fprintln(w, "SESSION_ID\tGOAL\tPHASE\tSTAGE\tITERATION\tUPDATED_AT")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				sess.SessionID, sess.Goal, sess.Phase, sess.ExplorationStage, sess.Iteration, sess.UpdatedAt.Format("2006-01-02T15:04:05Z"))
			_ = w.Flush()
		},
	)
}
