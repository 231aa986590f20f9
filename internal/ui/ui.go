package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/spx/internal/formatter"
	"github.com/desertthunder/spx/internal/player"
	"github.com/desertthunder/spx/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	PlayerView
	ErrorView
)

const (
	// DefaultRefreshInterval is how often the remote re-reads playback state while idle.
	DefaultRefreshInterval = 5 * time.Second
	volumeStep             = 5
	volumeBarWidth         = 20
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	player       *player.Player
	snapshot     player.Snapshot
	busy         bool
	status       string
	err          error
	refreshEvery time.Duration
	width        int
	spinner      spinner.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates a remote driving p. A refreshEvery of zero selects [DefaultRefreshInterval]; negative disables polling.
func NewModel(ctx context.Context, p *player.Player, refreshEvery time.Duration) *Model {
	if refreshEvery == 0 {
		refreshEvery = DefaultRefreshInterval
	}

	return &Model{
		ctx:          ctx,
		view:         LoadingView,
		player:       p,
		busy:         true,
		refreshEvery: refreshEvery,
		spinner:      spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.ok)),
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init loads the profile and playback state.
// Err returns the error shown in the error view, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLoaded:
		res := msg.data.(result)
		m.busy = false
		if res.err != nil {
			m.err = res.err
			m.view = ErrorView
			return m, nil
		}
		m.snapshot = res.snapshot
		m.err = nil
		m.status = ""
		m.view = PlayerView
		return m, m.tick()

	case MsgHandled:
		res := msg.data.(result)
		m.busy = false
		m.snapshot = res.snapshot
		if res.err != nil {
			if errors.Is(res.err, shared.ErrUnauthorized) {
				m.err = res.err
				m.view = ErrorView
				return m, nil
			}
			m.status = styles.warn.Render(fmt.Sprintf("%s failed: %v", res.action, res.err))
			return m, nil
		}
		if res.action != player.ActionRefresh {
			m.status = styles.ok.Render(describe(res.action, res.snapshot))
		}
		return m, nil

	case MsgTick:
		if m.view != PlayerView {
			return m, nil
		}
		if m.busy {
			return m, m.tick()
		}
		m.busy = true
		return m, tea.Batch(m.handle(player.Refresh()), m.tick())
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.view == ErrorView {
		if key.Matches(msg, m.keys.refresh) {
			m.view = LoadingView
			m.busy = true
			return m, tea.Batch(m.load(), m.spinner.Tick)
		}
		return m, nil
	}

	if m.busy || m.view != PlayerView {
		return m, nil
	}

	var ev player.Event
	switch {
	case key.Matches(msg, m.keys.next):
		ev = player.Next()
	case key.Matches(msg, m.keys.previous):
		ev = player.Previous()
	case key.Matches(msg, m.keys.volumeUp):
		ev = player.SetVolume(clampVolume(m.volume() + volumeStep))
	case key.Matches(msg, m.keys.volumeDown):
		ev = player.SetVolume(clampVolume(m.volume() - volumeStep))
	case key.Matches(msg, m.keys.repeat):
		ev = player.CycleRepeat()
	case key.Matches(msg, m.keys.shuffle):
		ev = player.ToggleShuffle()
	case key.Matches(msg, m.keys.refresh):
		ev = player.Refresh()
	default:
		return m, nil
	}

	m.busy = true
	m.status = ""
	return m, tea.Batch(m.handle(ev), m.spinner.Tick)
}

func (m *Model) volume() int {
	if m.snapshot.Playing == nil {
		return 0
	}
	return m.snapshot.Playing.Device.VolumePercent
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.player.Load(m.ctx)
		return loadedMsg(snapshot, err)
	}
}

func (m *Model) handle(ev player.Event) tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.player.Handle(m.ctx, ev)
		return handledMsg(ev.Action, snapshot, err)
	}
}

func (m *Model) tick() tea.Cmd {
	if m.refreshEvery < 0 {
		return nil
	}
	return tea.Tick(m.refreshEvery, func(time.Time) tea.Msg {
		return tickMsg()
	})
}

func describe(action player.Action, s player.Snapshot) string {
	switch action {
	case player.ActionNext:
		return "Skipped to next track"
	case player.ActionPrevious:
		return "Skipped to previous track"
	case player.ActionSetVolume:
		if s.Playing != nil {
			return fmt.Sprintf("Volume %d%%", s.Playing.Device.VolumePercent)
		}
		return "Volume set"
	case player.ActionCycleRepeat, player.ActionSetRepeat:
		return fmt.Sprintf("Repeat %s", s.Repeat)
	case player.ActionToggleShuffle, player.ActionSetShuffle:
		return fmt.Sprintf("Shuffle %s", formatter.OnOff(s.Shuffle))
	default:
		return string(action)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s Loading player...\n", m.spinner.View())
	case ErrorView:
		return m.renderError()
	case PlayerView:
		return m.renderPlayer()
	default:
		return ""
	}
}

func (m *Model) renderError() string {
	hint := "Press u to retry, q to quit"
	if errors.Is(m.err, shared.ErrUnauthorized) || errors.Is(m.err, shared.ErrNotAuthenticated) {
		hint = "Run `spx login` and start the remote again. Press q to quit"
	}
	return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + styles.help.Render(hint) + "\n"
}

func (m *Model) renderPlayer() string {
	view := formatter.NewPlaybackView(m.snapshot.Playing, m.snapshot.Repeat, m.snapshot.Shuffle)

	title := "spx"
	if p := m.snapshot.Profile; p != nil && p.DisplayName != "" {
		title = fmt.Sprintf("spx · %s", p.DisplayName)
	}

	var body strings.Builder
	body.WriteString(styles.track.Render(view.Track) + "\n")
	if view.Album != "" {
		body.WriteString(styles.help.Render(view.Album) + "\n")
	}
	if view.DurationMS > 0 {
		state := "❚❚"
		if view.Playing {
			state = "▶"
		}
		body.WriteString(fmt.Sprintf("%s %s / %s\n", state,
			formatter.FormatDuration(view.ProgressMS), formatter.FormatDuration(view.DurationMS)))
	}
	body.WriteString("\n")
	body.WriteString(fmt.Sprintf("Device  %s (%s)\n", view.Device, view.DeviceType))
	body.WriteString(fmt.Sprintf("Volume  %s %3d%%\n", volumeBar(view.Volume), view.Volume))
	body.WriteString(fmt.Sprintf("Repeat  %-8s Shuffle %s", view.Repeat, formatter.OnOff(view.Shuffle)))

	status := m.status
	if m.busy {
		status = m.spinner.View() + " working..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		styles.title.Render(title),
		styles.panel.Render(body.String()),
		status,
		m.help.View(m.keys),
	) + "\n"
}

func volumeBar(percent int) string {
	filled := clampVolume(percent) * volumeBarWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", volumeBarWidth-filled) + "]"
}
