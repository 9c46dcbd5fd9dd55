package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/store"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [query]",
	Short: "Search archived plans",
	Long: `Search finished plans by title, location, activity or the original
request. Without a query, lists the most recent plans.

Examples:
  basecamp archive sedona
  basecamp archive "mountain biking" --limit 5
  basecamp archive --show <archive-id>`,
	RunE: runArchive,
}

var (
	archiveLimit int
	archiveShow  string
	archiveJSON  bool
)

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().IntVarP(&archiveLimit, "limit", "n", store.DefaultSearchLimit, "Maximum number of plans")
	archiveCmd.Flags().StringVar(&archiveShow, "show", "", "Show one archived plan by id")
	archiveCmd.Flags().BoolVar(&archiveJSON, "json", false, "Print as JSON")
}

func runArchive(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	out := cmd.OutOrStdout()
	if archiveShow != "" {
		e, err := st.Archived(cmd.Context(), archiveShow)
		if err != nil {
			return err
		}
		if archiveJSON {
			return printJSON(out, e)
		}
		printSnapshot(out, e.State)
		return nil
	}

	entries, err := st.Search(cmd.Context(), strings.Join(args, " "), archiveLimit)
	if err != nil {
		return err
	}
	if archiveJSON {
		if entries == nil {
			entries = []store.ArchiveEntry{}
		}
		return printJSON(out, entries)
	}
	printArchive(out, entries)
	return nil
}
