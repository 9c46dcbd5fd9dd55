package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/state"
	reviewtui "github.com/Iron-Ham/basecamp/internal/tui/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review [run-id]",
	Short: "Review a paused run interactively",
	Long: `Open the review form for a run in HUMAN_REVIEW. Without a run id the
most recently updated paused run is reviewed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

var reviewSignal bool

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().BoolVar(&reviewSignal, "signal", false, "Write a resume signal instead of resuming in-process")
}

func runReview(cmd *cobra.Command, args []string) error {
	snap, err := pausedRun(cmd, args)
	if err != nil {
		return err
	}

	d, ok, err := reviewtui.Run(snap, tea.WithAltScreen())
	if err != nil {
		return fmt.Errorf("review form failed: %w", err)
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Review canceled; the run stays paused.")
		return nil
	}

	if reviewSignal {
		return writeSignal(cmd, snap.RunID, d)
	}
	return resumeInProcess(cmd, snap.RunID, d, false)
}

// pausedRun loads the run named in args, or the newest paused run.
func pausedRun(cmd *cobra.Command, args []string) (state.Snapshot, error) {
	st, err := openStore()
	if err != nil {
		return state.Snapshot{}, err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()
	if len(args) == 1 {
		snap, err := st.Load(ctx, args[0])
		if err != nil {
			return state.Snapshot{}, err
		}
		if snap.Phase != state.PhaseHumanReview {
			return state.Snapshot{}, fmt.Errorf("%w: %s is %s", errors.ErrRunNotPaused, snap.RunID, snap.Phase)
		}
		return snap, nil
	}

	runs, err := st.List(ctx)
	if err != nil {
		return state.Snapshot{}, err
	}
	for _, r := range runs {
		if r.Phase == state.PhaseHumanReview {
			return st.Load(ctx, r.RunID)
		}
	}
	return state.Snapshot{}, errors.New("no runs are awaiting review")
}
