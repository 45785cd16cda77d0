package cli

import (
	"context"
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dbscribe/dbscribe/internal/client"
	"github.com/dbscribe/dbscribe/internal/docs"
)

const pollInterval = time.Second

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Watch the progress of the running documentation batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunBatchProgress(api)
	},
}

// tickMsg triggers polling the batch progress
type tickMsg time.Time

// progressUpdateMsg carries the updated progress snapshot
type progressUpdateMsg struct {
	snapshot docs.ProgressSnapshot
	err      error
}

// progressModel is the bubbletea model for batch progress.
type progressModel struct {
	client   *client.Client
	snapshot docs.ProgressSnapshot
	progress progress.Model
	theme    Theme
	loaded   bool
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(c *client.Client) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		client:   c,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start polling).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchProgress()

	case progressUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch progress: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}

		m.snapshot = msg.snapshot
		m.loaded = true

		switch m.snapshot.Phase {
		case docs.PhaseComplete:
			m.done = true
			return m, tea.Quit
		case docs.PhaseFailed:
			m.done = true
			m.err = fmt.Errorf("batch failed; see server logs")
			return m, tea.Quit
		}

		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if !m.loaded {
		return "Loading batch progress...\n"
	}

	var pct float64
	if m.snapshot.Total > 0 {
		pct = float64(m.snapshot.Current) / float64(m.snapshot.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.snapshot.Phase))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d objects", m.snapshot.Current, m.snapshot.Total)

	detail := ""
	if m.snapshot.CurrentObject != "" {
		detail = fmt.Sprintf("  %s\n", m.snapshot.CurrentObject)
	}
	if m.snapshot.EstimatedTimeRemaining != nil {
		detail += fmt.Sprintf("  ~%ds remaining, $%.4f spent\n",
			*m.snapshot.EstimatedTimeRemaining, m.snapshot.Cost)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s%s\n", status, progressBar, counts, detail, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		msg := "\nBatch continues in background.\nUse 'dbscribe progress' to check on it.\n"
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ %s\n", m.err))
	}

	var output string
	output += m.theme.completedStyle().Render("✓ Completed") + "\n\n"
	output += fmt.Sprintf("  Objects documented: %d\n", m.snapshot.Current)
	if m.snapshot.Usage.TotalTokens > 0 {
		output += fmt.Sprintf("  Tokens used:        %d\n", m.snapshot.Usage.TotalTokens)
		output += fmt.Sprintf("  Estimated cost:     $%.4f\n", m.snapshot.Cost)
	}
	return output
}

// fetchProgress fetches the current batch progress from the server.
// Runs in a separate goroutine (command) to avoid blocking Update().
func (m progressModel) fetchProgress() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		snapshot, err := m.client.Progress(ctx)
		return progressUpdateMsg{snapshot: snapshot, err: err}
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunBatchProgress runs the interactive progress UI for the current batch.
// Returns nil on completion or Ctrl+C (background), error on batch failure.
func RunBatchProgress(c *client.Client) error {
	model := newProgressModel(c)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
