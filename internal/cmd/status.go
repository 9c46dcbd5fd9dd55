package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show run status",
	Long: `Without arguments, lists stored runs, newest first. Runs awaiting
review are marked. With a run id, shows that run's plan state.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print as JSON")
}

// openStore opens the configured store without wiring an engine.
func openStore() (store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		if statusJSON {
			if runs == nil {
				runs = []store.Summary{}
			}
			return printJSON(out, runs)
		}
		printRuns(out, runs)
		return nil
	}

	snap, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return reportRun(cmd, snap, statusJSON)
}
