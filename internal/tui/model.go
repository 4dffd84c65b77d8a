// Package tui is a terminal player for lesson sessions.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/MJE43/lessonviz/internal/interactions"
	"github.com/MJE43/lessonviz/internal/session"
	"github.com/MJE43/lessonviz/internal/sweep"
)

const historyCapacity = 240

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	totalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Padding(1, 2)
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1).Width(44)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	sliderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// TickMsg is one display frame.
type TickMsg time.Time

// Model plays one session. Frames are driven by the tea tick, so the
// session must be mounted on the same ManualFrames.
type Model struct {
	sess    *session.Session
	frames  *session.ManualFrames
	fps     int
	step    float64
	metric  string
	history []float64
	err     error
}

// New wraps sess. fps <= 0 means 60.
func New(sess *session.Session, frames *session.ManualFrames, fps int) Model {
	if fps <= 0 {
		fps = 60
	}
	m := Model{sess: sess, frames: frames, fps: fps}
	if e := sess.Engine(); e != nil {
		p := e.Param()
		m.step = p.Step
		if m.step <= 0 {
			m.step = (p.Max - p.Min) / 100
		}
		m.metric = sweep.DefaultMetrics[sess.Type()]
		m.record()
	}
	return m
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

// Update handles keys and frame ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		if m.sess.Engine() == nil {
			return m, nil
		}
		m.err = m.handleKey(msg.String())
		m.record()
	case TickMsg:
		if m.frames != nil {
			m.frames.Step(time.Time(msg))
		}
		if m.sess.Playing() {
			m.record()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) handleKey(key string) error {
	p := m.sess.Engine().Param()
	v := m.sess.Value()
	switch key {
	case "left", "h":
		return m.sess.SetValue(v - m.step)
	case "right", "l":
		return m.sess.SetValue(v + m.step)
	case "H", "shift+left":
		return m.sess.SetValue(v - 10*m.step)
	case "L", "shift+right":
		return m.sess.SetValue(v + 10*m.step)
	case "home", "g":
		return m.sess.SetValue(p.Min)
	case "end", "G":
		return m.sess.SetValue(p.Max)
	case " ", "p":
		return m.sess.Toggle()
	case "r":
		m.history = m.history[:0]
	}
	return nil
}

// record appends the current metric readout to the plotted history.
func (m *Model) record() {
	snap := m.sess.Snapshot()
	for _, r := range snap.Readouts {
		if r.Key != m.metric {
			continue
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return
		}
		m.history = append(m.history, r.Value)
		if len(m.history) > historyCapacity {
			m.history = m.history[len(m.history)-historyCapacity:]
		}
		return
	}
}

// View renders the player.
func (m Model) View() string {
	snap := m.sess.Snapshot()
	if snap.Error != "" {
		return errorStyle.Render(snap.Error) + "\n" + helpStyle.Render("q quit") + "\n"
	}

	var s strings.Builder
	title := string(snap.Type)
	if l := m.sess.Engine().Lesson(); l.Title != "" {
		title += "  " + l.Title
	}
	s.WriteString(titleStyle.Render(title) + "\n")

	s.WriteString(labelStyle.Render(snap.StateName) +
		sliderStyle.Render(Slider(snap.Value, snap.Min, snap.Max, 32)) +
		valueStyle.Render(fmt.Sprintf(" %.4g", snap.Value)) + "\n")
	if snap.Playing {
		s.WriteString(labelStyle.Render("") + valueStyle.Render("playing") + "\n")
	}
	s.WriteString("\n")
	for _, r := range snap.Readouts {
		style := valueStyle
		if r.Total {
			style = totalStyle
		}
		s.WriteString(labelStyle.Render(r.Label) + style.Render(r.Text) + "\n")
	}

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(6), asciigraph.Width(48), asciigraph.Caption(m.metric))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	s.WriteString(renderReflection(snap.Reflection))
	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("←/→ step  H/L ×10  g/G ends  space play  r clear plot  q quit") + "\n")
	return s.String()
}

func renderReflection(r interactions.Reflection) string {
	var parts []string
	if r.Message != "" {
		parts = append(parts, cardStyle.Render(r.Message))
	}
	for _, c := range r.Cards {
		if c.Visible {
			parts = append(parts, cardStyle.Render(c.Text))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

// Slider draws v's position in [lo, hi] as a width-cell track.
func Slider(v, lo, hi float64, width int) string {
	width = max(width, 2)
	pos := 0
	if hi > lo && !math.IsNaN(v) {
		pos = int(math.Round((v - lo) / (hi - lo) * float64(width-1)))
	}
	pos = max(min(pos, width-1), 0)
	return "[" + strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos) + "]"
}
