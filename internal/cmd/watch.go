package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/engine"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Apply resume signals written by other processes",
	Long: `Watch the signal directory and resume paused runs as signals arrive.
Signals are written by 'basecamp resume --signal' and 'basecamp review
--signal'. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	w := engine.NewWatcher(a.engine, a.dir, a.logger)
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (ctrl+c to stop)\n", engine.SignalPath(a.dir, "*"))
	return w.Run(ctx)
}
