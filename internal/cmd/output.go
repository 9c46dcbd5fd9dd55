package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/basecamp/internal/state"
	"github.com/Iron-Ham/basecamp/internal/store"
	"github.com/Iron-Ham/basecamp/internal/tui/styles"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func field(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s %s\n", styles.Label.Render(label), value)
}

// printSnapshot writes a human-readable summary of a run.
func printSnapshot(w io.Writer, snap state.Snapshot) {
	field(w, "Run", snap.RunID)
	field(w, "Phase", styles.Phase(snap.Phase))
	field(w, "Request", snap.UserInput)
	if in := snap.Intent; in != nil {
		field(w, "Activity", in.ActivityType)
		field(w, "Location", in.Location)
		if in.DurationDays > 0 {
			field(w, "Duration", fmt.Sprintf("%d days", in.DurationDays))
		}
	}
	if len(snap.RequiredSpecialists) > 0 {
		done := make([]string, 0, len(snap.RequiredSpecialists))
		for _, name := range snap.RequiredSpecialists {
			if slices.Contains(snap.CompletedSpecialists, name) {
				done = append(done, styles.Secondary.Render(name))
			} else {
				done = append(done, styles.Muted.Render(name))
			}
		}
		field(w, "Specialists", strings.Join(done, " "))
	}
	field(w, "Approval", string(snap.ApprovalStatus))

	if len(snap.ReviewReasons) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Warning.Bold(true).Render("Awaiting review"))
		for _, r := range snap.ReviewReasons {
			fmt.Fprintf(w, "  • %s\n", r)
		}
	}
	if len(snap.ErrorRecords) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Error.Bold(true).Render(fmt.Sprintf("Errors (%d)", len(snap.ErrorRecords))))
		for _, e := range snap.ErrorRecords {
			fmt.Fprintf(w, "  %s [%s] %s\n", e.Specialist, e.Kind, e.Message)
		}
	}
	if p := snap.AdventurePlan; p != nil {
		fmt.Fprintln(w)
		printPlan(w, p)
	}
}

func printPlan(w io.Writer, p *state.Plan) {
	fmt.Fprintln(w, styles.Title.Render(p.Title))
	if p.Description != "" {
		fmt.Fprintln(w, lipgloss.NewStyle().Width(80).Render(p.Description))
	}
	if p.Minimal() {
		fmt.Fprintln(w, styles.Warning.Render("minimal plan: "+p.Error))
	}
	for _, day := range p.Itinerary {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Primary.Bold(true).Render(fmt.Sprintf("Day %d  %s", day.Day, day.Title)))
		for _, a := range day.Activities {
			fmt.Fprintf(w, "  - %s\n", a)
		}
		if day.Lodging != "" {
			fmt.Fprintf(w, "  %s %s\n", styles.Muted.Render("lodging:"), day.Lodging)
		}
	}
	keys := make([]string, 0, len(p.Sections))
	for k := range p.Sections {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Text.Bold(true).Render(k))
		fmt.Fprintln(w, lipgloss.NewStyle().Width(80).PaddingLeft(2).Render(p.Sections[k]))
	}
	if len(p.GearChecklist) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Text.Bold(true).Render("gear"))
		for _, g := range p.GearChecklist {
			fmt.Fprintf(w, "  [ ] %s\n", g)
		}
	}
	if len(p.SafetyNotes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Warning.Bold(true).Render("safety"))
		for _, s := range p.SafetyNotes {
			fmt.Fprintf(w, "  ! %s\n", s)
		}
	}
	if len(p.DegradedSections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, styles.Muted.Render("degraded: "+strings.Join(p.DegradedSections, ", ")))
	}
	if len(p.MissingSections) > 0 {
		fmt.Fprintln(w, styles.Muted.Render("missing: "+strings.Join(p.MissingSections, ", ")))
	}
}

func printRuns(w io.Writer, runs []store.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	for _, r := range runs {
		marker := " "
		if r.Phase == state.PhaseHumanReview {
			marker = styles.Warning.Render("●")
		}
		fmt.Fprintf(w, "%s %-36s %-14s %s  %s\n",
			marker,
			r.RunID,
			styles.Phase(r.Phase),
			styles.Muted.Render(r.UpdatedAt.Format(time.DateTime)),
			truncate(r.UserInput, 50))
	}
}

func printArchive(w io.Writer, entries []store.ArchiveEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No archived plans match.")
		return
	}
	for _, e := range entries {
		days := ""
		if e.DurationDays > 0 {
			days = fmt.Sprintf("%dd", e.DurationDays)
		}
		fmt.Fprintf(w, "%s  %s  %s %s %s\n",
			styles.Muted.Render(e.CreatedAt.Format(time.DateOnly)),
			styles.Title.Render(e.Title),
			e.Location,
			styles.Muted.Render(e.ActivityType),
			days)
		fmt.Fprintf(w, "  %s %s\n", styles.Muted.Render("run"), e.RunID)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
