package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/state"
)

var submitCmd = &cobra.Command{
	Use:   "submit <request>",
	Short: "Plan an adventure",
	Long: `Submit a free-text adventure request and wait until the run settles.

A run settles when it finishes or pauses for human review. A paused run is
saved and can be decided later with 'basecamp review' or 'basecamp resume'.

Examples:
  basecamp submit "three days of mountain biking around Sedona"
  basecamp submit "a beginner hike near Flagstaff" --pref skill_level=beginner
  basecamp submit "canyon weekend" --pref duration_days=2 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

var (
	submitPrefs map[string]string
	submitJSON  bool
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringToStringVarP(&submitPrefs, "pref", "p", nil, "Preference as key=value (duration_days, skill_level, activity_type, ...)")
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "Print the final plan state as JSON")
}

// parsePreferences decodes --pref pairs into Preferences.
func parsePreferences(pairs map[string]string) (state.Preferences, error) {
	raw := make(map[string]any, len(pairs))
	for k, v := range pairs {
		raw[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	prefs, err := state.DecodePreferences(raw)
	if err != nil {
		return state.Preferences{}, fmt.Errorf("invalid preferences: %w", err)
	}
	return prefs, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	prefs, err := parsePreferences(submitPrefs)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	id, err := a.engine.Submit(ctx, strings.Join(args, " "), prefs)
	if err != nil {
		return err
	}
	if !submitJSON {
		fmt.Fprintf(cmd.ErrOrStderr(), "Submitted run %s\n", id)
	}

	snap, err := a.engine.Wait(ctx, id)
	if err != nil {
		return fmt.Errorf("run %s did not settle: %w", id, err)
	}
	return reportRun(cmd, snap, submitJSON)
}

// reportRun prints snap and, for a paused run, how to continue it.
func reportRun(cmd *cobra.Command, snap state.Snapshot, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		return printJSON(out, snap)
	}
	printSnapshot(out, snap)
	if snap.Phase == state.PhaseHumanReview {
		fmt.Fprintf(out, "\nDecide with: basecamp review %s\n", snap.RunID)
	}
	return nil
}
