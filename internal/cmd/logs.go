package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/tui/styles"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the debug log",
	Long: `View and filter the basecamp debug log.

Examples:
  # Show the last 50 entries
  basecamp logs

  # Everything for one run
  basecamp logs --run 4f1c... -n 0

  # Warnings and errors from the weather specialist in the last hour
  basecamp logs --specialist weather --level warn --since 1h

  # Search messages and attributes
  basecamp logs --grep "lockout|429"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsRunID      string
	logsSpecialist string
	logsPhase      string
	logsTail       int
	logsLevel      string
	logsSince      string
	logsGrep       string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsRunID, "run", "r", "", "Only entries for this run")
	logsCmd.Flags().StringVar(&logsSpecialist, "specialist", "", "Only entries for this specialist")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Only entries logged in this phase")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
}

var levelStyles = map[string]lipgloss.Style{
	logging.LevelDebug: styles.Muted,
	logging.LevelInfo:  lipgloss.NewStyle().Foreground(styles.InfoColor),
	logging.LevelWarn:  styles.Warning,
	logging.LevelError: styles.Error,
}

// formatEntry formats a log entry for terminal output
func formatEntry(e logging.Entry) string {
	var sb strings.Builder

	sb.WriteString(styles.Muted.Render("[" + e.Time.Format("15:04:05.000") + "]"))
	sb.WriteString(" ")
	level := strings.ToUpper(e.Level)
	style, ok := levelStyles[level]
	if !ok {
		style = styles.Text
	}
	sb.WriteString(style.Render("[" + level + "]"))
	sb.WriteString(" ")
	sb.WriteString(e.Message)

	ctxField := func(key, value string) {
		if value != "" {
			sb.WriteString(" ")
			sb.WriteString(styles.Primary.Render(key + "=" + value))
		}
	}
	ctxField("run_id", e.RunID)
	ctxField("specialist", e.Specialist)
	ctxField("phase", e.Phase)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		sb.WriteString(" ")
		sb.WriteString(styles.Muted.Render(k + "="))
		sb.WriteString(fmt.Sprintf("%v", e.Attrs[k]))
	}
	return sb.String()
}

// matchesGrep searches the message and every attribute value.
func matchesGrep(e logging.Entry, re *regexp.Regexp) bool {
	if re.MatchString(e.Message) {
		return true
	}
	for _, v := range e.Attrs {
		if re.MatchString(fmt.Sprintf("%v", v)) {
			return true
		}
	}
	return false
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := filepath.Join(cfg.Store.ResolvedDir(), LogDirName)

	q := logging.Query{
		MinLevel:   logsLevel,
		RunID:      logsRunID,
		Specialist: logsSpecialist,
		Phase:      logsPhase,
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		q.Since = time.Now().Add(-d)
	}

	var grep *regexp.Regexp
	if logsGrep != "" {
		grep, err = regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	entries, err := logging.ReadEntries(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(cmd.OutOrStdout(), "No logs found.")
			fmt.Fprintln(cmd.OutOrStdout(), "Logs are stored at:", filepath.Join(dir, logging.LogFileName))
			return nil
		}
		return err
	}
	return displayLogs(cmd.OutOrStdout(), entries, q, grep, logsTail)
}

// displayLogs filters entries and prints the last tail of them.
func displayLogs(w io.Writer, entries []logging.Entry, q logging.Query, grep *regexp.Regexp, tail int) error {
	entries = logging.Filter(entries, q)
	if grep != nil {
		entries = slices.DeleteFunc(entries, func(e logging.Entry) bool {
			return !matchesGrep(e, grep)
		})
	}
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(w, formatEntry(e))
	}
	return nil
}
