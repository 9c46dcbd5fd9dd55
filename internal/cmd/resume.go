package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/engine"
	"github.com/Iron-Ham/basecamp/internal/review"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume a run paused for review",
	Long: `Apply a review decision to a run in HUMAN_REVIEW.

  approved        synthesize the plan as it stands
  rejected        finish the run as rejected
  needs_revision  synthesize again with the feedback

By default the decision is applied in this process and the command waits
for the run to settle. With --signal the decision is written to the signal
directory instead, for a running 'basecamp serve' or 'basecamp watch' to
apply.

Examples:
  basecamp resume 4f1c... --status approved
  basecamp resume 4f1c... --status needs_revision --feedback "shorter days"
  basecamp resume 4f1c... --status rejected --signal`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var (
	resumeStatus   string
	resumeFeedback string
	resumeSignal   bool
	resumeJSON     bool
)

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().StringVarP(&resumeStatus, "status", "s", "", "Decision: approved, rejected or needs_revision")
	resumeCmd.Flags().StringVarP(&resumeFeedback, "feedback", "m", "", "Feedback for the synthesizer")
	resumeCmd.Flags().BoolVar(&resumeSignal, "signal", false, "Write a resume signal instead of resuming in-process")
	resumeCmd.Flags().BoolVar(&resumeJSON, "json", false, "Print the final plan state as JSON")
	_ = resumeCmd.MarkFlagRequired("status")
}

func runResume(cmd *cobra.Command, args []string) error {
	d, err := review.ParseDecision(resumeStatus, resumeFeedback)
	if err != nil {
		return err
	}
	if resumeSignal {
		return writeSignal(cmd, args[0], d)
	}
	return resumeInProcess(cmd, args[0], d, resumeJSON)
}

func writeSignal(cmd *cobra.Command, runID string, d review.Decision) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Store.ResolvedDir()
	if err := engine.WriteSignal(dir, runID, d); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signal written to %s\n", engine.SignalPath(dir, runID))
	return nil
}

func resumeInProcess(cmd *cobra.Command, runID string, d review.Decision, asJSON bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if err := a.engine.Resume(ctx, runID, d); err != nil {
		return err
	}
	snap, err := a.engine.Wait(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s did not settle: %w", runID, err)
	}
	return reportRun(cmd, snap, asJSON)
}
