// Package review is the terminal form for deciding a run paused in
// HUMAN_REVIEW. It shows the adventure plan, the reasons the run was
// halted and the recorded errors, and produces a review.Decision.
package review

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/basecamp/internal/review"
	"github.com/Iron-Ham/basecamp/internal/state"
	"github.com/Iron-Ham/basecamp/internal/tui/styles"
)

// maxErrors bounds how many error records the form lists.
const maxErrors = 8

type focusArea int

const (
	focusStatus focusArea = iota
	focusFeedback
)

var choices = []struct {
	status state.ApprovalStatus
	label  string
}{
	{state.ApprovalApproved, "Approve"},
	{state.ApprovalNeedsRevision, "Needs revision"},
	{state.ApprovalRejected, "Reject"},
}

// Model is the Bubbletea model for the review form.
type Model struct {
	snap     state.Snapshot
	selected int
	focus    focusArea
	feedback textinput.Model
	width    int
	errorMsg string

	decision *review.Decision
	canceled bool
}

// New creates a form for snap.
func New(snap state.Snapshot) Model {
	ti := textinput.New()
	ti.Placeholder = "what should change?"
	ti.CharLimit = 2000
	ti.Width = 60
	return Model{snap: snap, feedback: ti}
}

// Decision returns the submitted decision. ok is false when the form was
// canceled or not yet submitted.
func (m Model) Decision() (d review.Decision, ok bool) {
	if m.decision == nil {
		return review.Decision{}, false
	}
	return *m.decision, true
}

// Canceled reports whether the user left without deciding.
func (m Model) Canceled() bool {
	return m.canceled
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		m.errorMsg = ""
		if msg.String() == "ctrl+c" {
			m.canceled = true
			return m, tea.Quit
		}
		if m.focus == focusFeedback {
			return m.handleFeedbackKeypress(msg)
		}

		switch msg.String() {
		case "q", "esc":
			m.canceled = true
			return m, tea.Quit
		case "left", "h", "up", "k":
			m.selected = (m.selected + len(choices) - 1) % len(choices)
		case "right", "l", "down", "j":
			m.selected = (m.selected + 1) % len(choices)
		case "1", "2", "3":
			m.selected = int(msg.String()[0] - '1')
		case "tab", "shift+tab", "f":
			return m.focusFeedback()
		case "enter", " ":
			return m.submit()
		}
	}
	return m, nil
}

func (m Model) handleFeedbackKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "tab", "shift+tab":
		m.focus = focusStatus
		m.feedback.Blur()
		return m, nil
	case "enter":
		return m.submit()
	}
	var cmd tea.Cmd
	m.feedback, cmd = m.feedback.Update(msg)
	return m, cmd
}

func (m Model) focusFeedback() (tea.Model, tea.Cmd) {
	m.focus = focusFeedback
	return m, m.feedback.Focus()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	d := review.Decision{
		Status:   choices[m.selected].status,
		Feedback: strings.TrimSpace(m.feedback.Value()),
	}
	if d.Status == state.ApprovalNeedsRevision && d.Feedback == "" {
		m.errorMsg = "feedback is required when asking for a revision"
		return m.focusFeedback()
	}
	if err := d.Validate(); err != nil {
		m.errorMsg = err.Error()
		return m, nil
	}
	m.decision = &d
	return m, tea.Quit
}

func (m Model) View() string {
	if m.decision != nil || m.canceled {
		return ""
	}
	width := m.width - 4
	if width < 40 {
		width = 76
	}

	var b strings.Builder
	b.WriteString(styles.Header.Width(width).Render("Review " + m.snap.RunID))
	b.WriteString("\n\n")

	b.WriteString(row("Request", m.snap.UserInput))
	b.WriteString(row("Phase", styles.Phase(m.snap.Phase)))
	if in := m.snap.Intent; in != nil {
		b.WriteString(row("Activity", in.ActivityType))
		if in.Location != "" {
			b.WriteString(row("Location", in.Location))
		}
		if in.DurationDays > 0 {
			b.WriteString(row("Duration", fmt.Sprintf("%d days", in.DurationDays)))
		}
	}
	b.WriteString("\n")

	if p := m.snap.AdventurePlan; p != nil {
		b.WriteString(styles.Title.Render(p.Title))
		b.WriteString("\n")
		if p.Description != "" {
			b.WriteString(lipgloss.NewStyle().Width(width).Render(p.Description))
			b.WriteString("\n")
		}
		if p.Minimal() {
			b.WriteString(styles.Warning.Render("minimal plan: " + p.Error))
			b.WriteString("\n")
		}
		for _, s := range p.DegradedSections {
			b.WriteString(styles.Muted.Render("  degraded: " + s))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(m.snap.ReviewReasons) > 0 {
		b.WriteString(styles.Warning.Bold(true).Render("Paused because"))
		b.WriteString("\n")
		for _, r := range m.snap.ReviewReasons {
			b.WriteString("  • " + r + "\n")
		}
		b.WriteString("\n")
	}

	if errs := m.snap.ErrorRecords; len(errs) > 0 {
		b.WriteString(styles.Error.Bold(true).Render(fmt.Sprintf("Errors (%d)", len(errs))))
		b.WriteString("\n")
		for i, e := range errs {
			if i == maxErrors {
				b.WriteString(styles.Muted.Render(fmt.Sprintf("  … %d more", len(errs)-maxErrors)))
				b.WriteString("\n")
				break
			}
			fmt.Fprintf(&b, "  %s %s %s\n",
				styles.Text.Bold(true).Render(e.Specialist),
				styles.Muted.Render(string(e.Kind)),
				e.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderChoices())
	b.WriteString("\n")

	box := styles.Box
	if m.focus == focusFeedback {
		box = styles.FocusedBox
	}
	b.WriteString(box.Width(width).Render("Feedback\n" + m.feedback.View()))
	b.WriteString("\n")

	if m.errorMsg != "" {
		b.WriteString(styles.ErrorMsg.Render("Error: " + m.errorMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderChoices() string {
	parts := make([]string, len(choices))
	for i, c := range choices {
		label := fmt.Sprintf("%d %s", i+1, c.label)
		if i == m.selected {
			parts[i] = styles.OptionSelected.Render(label)
		} else {
			parts[i] = styles.Option.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderHelp() string {
	key := styles.HelpKey
	if m.focus == focusFeedback {
		return styles.HelpBar.Render(
			key.Render("enter") + " submit  " +
				key.Render("tab/esc") + " back to decision",
		)
	}
	return styles.HelpBar.Render(
		key.Render("←/→") + " choose  " +
			key.Render("tab") + " feedback  " +
			key.Render("enter") + " submit  " +
			key.Render("q") + " quit",
	)
}

func row(label, value string) string {
	return styles.Label.Render(label) + " " + value + "\n"
}

// Run shows the form for snap and returns the decision. ok is false when
// the user canceled.
func Run(snap state.Snapshot, opts ...tea.ProgramOption) (d review.Decision, ok bool, err error) {
	final, err := tea.NewProgram(New(snap), opts...).Run()
	if err != nil {
		return review.Decision{}, false, err
	}
	m, isModel := final.(Model)
	if !isModel {
		return review.Decision{}, false, nil
	}
	d, ok = m.Decision()
	return d, ok, nil
}
