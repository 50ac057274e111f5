// Package tui provides the live timer view for 'timer watch'.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nkondo/timebridge/internal/domain"
	"github.com/nkondo/timebridge/internal/usecase"
)

// Styles holds the lipgloss styles for the watch view.
type Styles struct {
	Title    lipgloss.Style
	Elapsed  lipgloss.Style
	Task     lipgloss.Style
	SyncErr  lipgloss.Style
	Idle     lipgloss.Style
	HelpLine lipgloss.Style
}

// DefaultStyles returns the default watch view styles.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true),
		Elapsed:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		Task:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		SyncErr:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Idle:     lipgloss.NewStyle().Faint(true),
		HelpLine: lipgloss.NewStyle().Faint(true),
	}
}

// tickMsg drives the per-second refresh.
type tickMsg time.Time

// entryMsg delivers the refreshed running entry and its task.
type entryMsg struct {
	entry *domain.TimeEntry
	task  *domain.Task
	err   error
}

// watchModel is the bubbletea model for the live timer view.
type watchModel struct {
	timers *usecase.TimerEngine
	cache  *usecase.TaskCache
	err    error

	entry *domain.TimeEntry
	task  *domain.Task

	styles  Styles
	spinner spinner.Model

	userID string
}

func newWatchModel(timers *usecase.TimerEngine, cache *usecase.TaskCache, userID string) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	return &watchModel{
		timers:  timers,
		cache:   cache,
		styles:  DefaultStyles(),
		spinner: sp,
		userID:  userID,
	}
}

// Init starts the spinner and the refresh loop.
func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh returns a command that reloads the running entry from the store.
func (m *watchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		entry, err := m.timers.Running(m.userID)
		if err != nil {
			return entryMsg{err: err}
		}
		if entry == nil {
			return entryMsg{}
		}
		task, err := m.cache.Get(entry.TaskID)
		if err != nil {
			return entryMsg{entry: entry, err: err}
		}
		return entryMsg{entry: entry, task: task}
	}
}

// Update handles messages.
func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		// Re-read from the store each second so a stop issued in
		// another terminal is picked up.
		return m, tea.Batch(m.refresh(), tick())

	case entryMsg:
		m.entry = msg.entry
		m.task = msg.task
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the watch screen.
func (m *watchModel) View() string {
	s := m.styles

	var body string
	switch {
	case m.err != nil:
		body = s.SyncErr.Render(fmt.Sprintf("error: %v", m.err))
	case m.entry == nil:
		body = s.Idle.Render("No timer running")
	default:
		elapsed := domain.FormatDuration(m.timers.CurrentDuration(m.entry))
		title := m.entry.RemoteTaskID
		if m.task != nil {
			title = fmt.Sprintf("#%s %s", m.task.RemoteTaskID, m.task.Title)
		}
		body = fmt.Sprintf("%s %s  %s",
			m.spinner.View(),
			s.Elapsed.Render(elapsed),
			s.Task.Render(title),
		)
		if m.entry.SyncError != "" {
			body += "\n" + s.SyncErr.Render("sync pending: "+m.entry.SyncError)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("timebridge watch"),
		"",
		body,
		"",
		s.HelpLine.Render("q: quit"),
	)
}

// RunWatch runs the live timer view until the user quits.
func RunWatch(timers *usecase.TimerEngine, cache *usecase.TaskCache, userID string) error {
	p := tea.NewProgram(newWatchModel(timers, cache, userID))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run watch: %w", err)
	}
	return nil
}
