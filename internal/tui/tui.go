// Package tui provides a Bubble Tea terminal user interface for quicksong.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/handiism/quicksong/internal/app"
	"github.com/handiism/quicksong/internal/config"
	"github.com/handiism/quicksong/internal/download"
	"github.com/handiism/quicksong/internal/model"
	"github.com/sirupsen/logrus"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF66AA")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)
)

const maxLogs = 10

var errCancelled = errors.New("cancelled by user")

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateResolving
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	log       logrus.FieldLogger
	logs      []LogEntry
	report    *download.Report
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	// events carries messages from the running download to Update.
	events chan tea.Msg

	// Download progress
	total    int
	done     int
	transfer BytesMsg

	// Options
	useProxy bool
	autoOpen bool
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(settings *config.Settings, log logrus.FieldLogger) Model {
	ti := textinput.New()
	ti.Placeholder = "https://osu.ppy.sh/beatmapsets/123456 https://osu.ppy.sh/b/987654"
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF66AA"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		log:       log,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		useProxy:  settings.UseProxy,
		autoOpen:  settings.AutoStart,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent when download progress updates.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// PlanMsg is sent once the links are resolved.
	PlanMsg struct {
		Total int
	}

	// BytesMsg reports the bytes received for the archive in transfer.
	BytesMsg struct {
		ID      model.ResourceID
		Written int64
		Total   int64
	}

	// ResultMsg is sent when an id reaches its outcome.
	ResultMsg struct {
		Result download.Result
	}

	// DownloadDoneMsg is sent when the run ends.
	DownloadDoneMsg struct {
		Report *download.Report
		Err    error
	}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateResolving {
				m.cancel()
			}

		case "enter":
			if m.state == StateInput {
				links := SplitLinks(m.textInput.Value())
				if len(links) == 0 {
					return m, nil
				}
				m.state = StateResolving
				m.events = make(chan tea.Msg, 64)
				return m, tea.Batch(m.startDownload(links), m.waitForEvent(), m.spinner.Tick)
			}

		case "ctrl+p":
			if m.state == StateInput {
				m.useProxy = !m.useProxy
			}
			return m, nil

		case "ctrl+o":
			if m.state == StateInput {
				m.autoOpen = !m.autoOpen
			}
			return m, nil

		case "ctrl+l":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}
			return m, nil

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for new download
				m.state = StateInput
				m.logs = nil
				m.report = nil
				m.err = nil
				m.done = 0
				m.total = 0
				m.transfer = BytesMsg{}
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
				return m, m.progress.SetPercent(0)
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, m.waitForEvent())
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case PlanMsg:
		m.total = msg.Total
		m.state = StateDownloading
		cmds = append(cmds, m.waitForEvent())

	case BytesMsg:
		m.transfer = msg
		cmds = append(cmds, m.waitForEvent())

	case ResultMsg:
		if msg.Result.ID == m.transfer.ID {
			m.transfer = BytesMsg{}
		}
		m.done++
		cmds = append(cmds, m.progress.SetPercent(m.percent()), m.waitForEvent())

	case DownloadDoneMsg:
		m.report = msg.Report
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errCancelled
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// waitForEvent returns a command delivering the next message of the
// running download. A closed channel yields nil, which ends the chain.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

// startDownload runs the download in the background. Progress flows back
// through m.events; the final DownloadDoneMsg is returned directly.
func (m Model) startDownload(links []string) tea.Cmd {
	settings := *m.settings
	settings.UseProxy = m.useProxy
	settings.AutoStart = m.autoOpen

	ctx, events, log := m.ctx, m.events, m.log
	send := func(msg tea.Msg) {
		select {
		case events <- msg:
		case <-ctx.Done():
		}
	}
	// Byte updates are dropped rather than delaying the download.
	trySend := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
		}
	}

	return func() tea.Msg {
		runner := app.New(&settings, log)
		report, err := runner.Run(ctx, links, app.Hooks{
			OnPlan:     func(total int) { send(PlanMsg{Total: total}) },
			OnProgress: func(e download.ProgressEvent) { send(ProgressMsg{Event: e}) },
			OnBytes: func(id model.ResourceID, written, total int64) {
				trySend(BytesMsg{ID: id, Written: written, Total: total})
			},
			OnResult:   func(r download.Result) { send(ResultMsg{Result: r}) },
		})
		close(events)
		return DownloadDoneMsg{Report: report, Err: err}
	}
}

// formatBytes renders received bytes in MB, with the total when known.
func formatBytes(written, total int64) string {
	const mb = 1 << 20
	if total <= 0 {
		return fmt.Sprintf("%.1f MB", float64(written)/mb)
	}
	return fmt.Sprintf("%.1f / %.1f MB", float64(written)/mb, float64(total)/mb)
}

// SplitLinks splits user input on whitespace and commas.
func SplitLinks(input string) []string {
	return strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("🎵 quicksong"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download beatmap sets from osu!"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateResolving:
		b.WriteString(m.viewResolving())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter beatmap links or ids:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Use proxies (ctrl+p)\n", checkbox(m.useProxy)))
	b.WriteString(fmt.Sprintf("  %s Open when downloaded (ctrl+o)\n", checkbox(m.autoOpen)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+l)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadPath)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewResolving() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Resolving links..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(m.progress.View())
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("Beatmap sets: %d/%d", m.done, m.total)))
	b.WriteString("\n")
	if t := m.transfer; t.ID != 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Receiving %d: %s", t.ID, formatBytes(t.Written, t.Total))))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	if m.report == nil {
		return boxStyle.Render("✨ Nothing to download")
	}
	return boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\n"+
			"Downloaded: %d\n"+
			"Already existed: %d\n"+
			"Failed: %d\n"+
			"Abandoned: %d",
		m.report.Count(model.OutcomeSucceeded),
		m.report.Count(model.OutcomeSkipped),
		m.report.Count(model.OutcomeFailedFatal)+m.report.Count(model.OutcomeDropped),
		m.report.Count(model.OutcomeAbandoned),
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	if m.report != nil {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render(m.report.Summary()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+p: proxies • ctrl+o: auto-open • ctrl+l: verbose • esc: quit"
	case StateResolving, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(settings *config.Settings, log logrus.FieldLogger) error {
	p := tea.NewProgram(NewModel(settings, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
