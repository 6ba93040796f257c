// Package tui provides the Bubble Tea replay interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/iblreplay/internal/clock"
	"github.com/verte-zerg/iblreplay/internal/logging"
	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/replay"
	"github.com/verte-zerg/iblreplay/internal/session"
	"github.com/verte-zerg/iblreplay/internal/stats"
	"github.com/verte-zerg/iblreplay/internal/store"
)

const (
	// DefaultFPS is the frame rate driving Engine.Tick.
	DefaultFPS = 30
	// DefaultSeekStep is the task-time jump of the arrow keys in seconds.
	DefaultSeekStep = 10.0

	rasterRows = 3
	minLogRows = 3
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A4A4A"))
	boundStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	retiringStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	needleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	toneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BEDFF")).Bold(true)
	rewardStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC752")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Options configures the replay UI.
type Options struct {
	// Sessions is the selectable session list; EID must be one of them.
	Sessions []string
	EID      string
	FPS      int
	SeekStep float64
	// Store receives every finished run. Nil disables saving.
	Store  *store.Store
	Logger *slog.Logger
}

type loadedMsg struct {
	eid string
	err error
}

type frameMsg time.Time

type runTracker struct {
	started   bool
	startedAt time.Time
}

// Model implements the Bubble Tea replay UI.
type Model struct {
	manager *session.Manager
	engine  *replay.Engine
	display *Display
	store   *store.Store
	logger  *slog.Logger

	sessions []string
	current  int
	eid      string
	frame    time.Duration
	seekStep float64

	loading bool
	loadErr error
	status  string

	spinner  spinner.Model
	progress progress.Model
	log      viewport.Model
	logLen   int

	width     int
	height    int
	ticking   bool
	lastFrame time.Time

	run   runTracker
	saved int
}

// NewModel constructs the replay UI. display must be the surface set engine
// was built with.
func NewModel(manager *session.Manager, engine *replay.Engine, display *Display, opts Options) *Model {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = DefaultSeekStep
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	sessions := opts.Sessions
	if len(sessions) == 0 && opts.EID != "" {
		sessions = []string{opts.EID}
	}
	current := 0
	for i, eid := range sessions {
		if eid == opts.EID {
			current = i
			break
		}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = toneStyle

	m := &Model{
		manager:  manager,
		engine:   engine,
		display:  display,
		store:    opts.Store,
		logger:   opts.Logger,
		sessions: sessions,
		current:  current,
		frame:    time.Second / time.Duration(opts.FPS),
		seekStep: opts.SeekStep,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		log:      viewport.New(80, minLogRows),
	}
	if len(sessions) > 0 {
		m.eid = sessions[current]
		m.loading = true
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if !m.loading {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.loadCmd(m.eid))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-2, 10)
		m.log.Width = msg.Width
		return m, nil
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case loadedMsg:
		return m, m.handleLoaded(msg)
	case frameMsg:
		m.handleFrame(time.Time(msg))
		return m, m.frameCmd()
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if msg.Type == tea.KeySpace {
		key = " "
	}
	switch key {
	case "ctrl+c", "q":
		m.finishRun()
		if m.engine.Session() != nil {
			m.engine.Stop()
		}
		return m, tea.Quit
	case "tab", "n":
		return m, m.switchSession(1)
	case "shift+tab", "N":
		return m, m.switchSession(-1)
	}
	if m.loading || m.engine.Session() == nil {
		return m, nil
	}
	switch key {
	case " ":
		m.play()
	case "p":
		if err := m.engine.Pause(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "paused"
	case "s":
		m.status = "stopped"
		m.finishRun()
		m.engine.Stop()
		m.display.Advance(m.engine.TaskTime())
	case "+", "=":
		m.status = fmt.Sprintf("rate %gx", m.engine.SpeedUp())
	case "-", "_":
		m.status = fmt.Sprintf("rate %gx", m.engine.SlowDown())
	case "left", "h":
		m.seek(-m.seekStep)
	case "right", "l":
		m.seek(m.seekStep)
	}
	return m, nil
}

func (m *Model) play() {
	if err := m.engine.Play(); err != nil {
		if errors.Is(err, clock.ErrInvalidTransition) {
			return
		}
		m.status = err.Error()
		return
	}
	if !m.run.started {
		m.run = runTracker{started: true, startedAt: time.Now()}
	}
	m.status = "playing"
}

func (m *Model) seek(delta float64) {
	target := m.engine.TaskTime() + delta
	if err := m.engine.Seek(target); err != nil {
		m.status = err.Error()
		return
	}
	m.display.Advance(m.engine.TaskTime())
	m.status = "seek " + stats.FormatTaskTime(m.engine.TaskTime())
}

func (m *Model) switchSession(step int) tea.Cmd {
	if len(m.sessions) < 2 {
		return nil
	}
	m.finishRun()
	m.engine.Stop()
	m.current = (m.current + step + len(m.sessions)) % len(m.sessions)
	m.eid = m.sessions[m.current]
	m.loading = true
	m.loadErr = nil
	m.status = ""
	return tea.Batch(m.spinner.Tick, m.loadCmd(m.eid))
}

func (m *Model) loadCmd(eid string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.manager.Get(context.Background(), eid)
		return loadedMsg{eid: eid, err: err}
	}
}

func (m *Model) handleLoaded(msg loadedMsg) tea.Cmd {
	if msg.eid != m.eid {
		return nil
	}
	m.loading = false
	if msg.err != nil {
		m.loadErr = msg.err
		m.logger.Error("session load failed", "eid", msg.eid, "err", msg.err)
		return nil
	}
	m.display.Reset()
	if _, err := m.manager.Activate(context.Background(), msg.eid, m.engine); err != nil {
		m.loadErr = err
		return nil
	}
	m.status = "ready"
	if m.ticking {
		return nil
	}
	return m.frameCmd()
}

func (m *Model) frameCmd() tea.Cmd {
	m.ticking = true
	return tea.Tick(m.frame, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m *Model) handleFrame(now time.Time) {
	dt := 0.0
	if !m.lastFrame.IsZero() {
		dt = now.Sub(m.lastFrame).Seconds()
	}
	m.lastFrame = now
	if m.engine.Session() == nil {
		return
	}
	report, err := m.engine.Tick(dt)
	if err != nil {
		m.logger.Warn("tick failed", "err", err)
		return
	}
	m.display.Advance(m.engine.TaskTime())
	if m.engine.State() == clock.Running && report.TaskTime >= m.engine.Session().Duration() {
		if err := m.engine.Pause(); err == nil {
			m.status = "end of session"
		}
	}
	m.refreshLog()
}

func (m *Model) refreshLog() {
	events := m.display.Events()
	if len(events) == m.logLen && m.logLen < maxEvents {
		return
	}
	m.logLen = len(events)
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = labelStyle.Render(stats.FormatTaskTime(ev.TaskTime)) + "  " + ev.Text
	}
	m.log.SetContent(strings.Join(lines, "\n"))
	m.log.GotoBottom()
}

// finishRun saves the current run, if one was started.
func (m *Model) finishRun() {
	if !m.run.started {
		return
	}
	st := m.engine.Stats()
	run := model.RunStats{
		EID:       st.EID,
		StartedAt: m.run.startedAt,
		EndedAt:   time.Now(),
		TaskTime:  st.TaskTime,
		Rate:      st.Rate,
		Mode:      m.engine.Mode().String(),
		Counts:    st.Counts,
	}
	m.run = runTracker{}
	if m.store == nil {
		return
	}
	id, err := m.store.InsertRun(context.Background(), run)
	if err != nil {
		m.logger.Error("failed to save run", "eid", run.EID, "err", err)
		m.status = "failed to save run"
		return
	}
	m.saved++
	m.status = "run saved"
	m.logger.Info("run saved", "run", id, "eid", run.EID, "t", run.TaskTime)
}

// View implements tea.Model.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	var lines []string
	lines = append(lines, m.renderTitle(width))
	switch {
	case m.loading:
		lines = append(lines, "", m.spinner.View()+" loading "+m.eid+"…")
	case m.loadErr != nil:
		lines = append(lines, "", errorStyle.Render(truncate(m.loadErr.Error(), width)))
	case m.engine.Session() == nil:
		lines = append(lines, "", labelStyle.Render("no session selected"))
	default:
		lines = append(lines, m.renderPlayback(width)...)
	}

	footer := m.renderFooter()
	if m.height > 0 && !m.loading && m.loadErr == nil && m.engine.Session() != nil {
		rows := m.height - len(lines) - 2
		if rows < minLogRows {
			rows = minLogRows
		}
		m.log.Height = rows
		lines = append(lines, "", m.log.View())
	}
	lines = append(lines, footer)
	return strings.Join(lines, "\n")
}

func (m *Model) renderTitle(width int) string {
	title := "iblreplay"
	if m.eid != "" {
		title += "  " + m.eid
	}
	if len(m.sessions) > 1 {
		title += fmt.Sprintf("  [%d/%d]", m.current+1, len(m.sessions))
	}
	return titleStyle.Render(truncate(title, width))
}

func (m *Model) renderPlayback(width int) []string {
	st := m.engine.Stats()
	frac := 0.0
	if st.Duration > 0 {
		frac = st.TaskTime / st.Duration
	}
	left, right, frozen := m.engine.StimulusPositions()
	stim := fmt.Sprintf("stimulus L %6.1f°  R %6.1f°", left, right)
	if frozen {
		stim += "  frozen"
	}
	statusLine := fmt.Sprintf("%s  %gx  %s / %s  %s",
		st.State, st.Rate,
		stats.FormatTaskTime(st.TaskTime), stats.FormatTaskTime(st.Duration),
		m.engine.Mode())
	video := "video stopped"
	if m.display.video.playing {
		video = fmt.Sprintf("video ▶ %.1fs", m.display.video.pos)
	}
	video += fmt.Sprintf("  left %s  body %s  right %s",
		m.display.clipLabel(model.AngleLeft),
		m.display.clipLabel(model.AngleBody),
		m.display.clipLabel(model.AngleRight))

	lines := []string{
		labelStyle.Render(truncate(statusLine, width)),
		m.progress.ViewAs(frac),
		"",
		labelStyle.Render(truncate(stim, width)),
		renderCells(m.display.stimulusStrip(width)),
		renderCells(m.display.wheelGauge(width)),
		m.display.indicators(),
		"",
		labelStyle.Render(truncate(video, width)),
	}
	lines = append(lines, m.display.neuronRaster(width, rasterRows)...)
	return lines
}

func (m *Model) renderFooter() string {
	segments := []string{"space play", "p pause", "s stop", "-/+ rate", "←/→ seek"}
	if len(m.sessions) > 1 {
		segments = append(segments, "tab session")
	}
	segments = append(segments, "q quit")
	if m.status != "" {
		segments = append(segments, m.status)
	}
	if m.saved > 0 {
		segments = append(segments, fmt.Sprintf("%d saved", m.saved))
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
