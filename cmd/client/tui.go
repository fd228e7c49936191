package main

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yitech/candlechart/canvas"
	"github.com/yitech/candlechart/chart"
	"github.com/yitech/candlechart/codec"
	"github.com/yitech/candlechart/config"
	"github.com/yitech/candlechart/render"
)

// ── styles ────────────────────────────────────────────────────────────────────

var (
	bullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#26a641"))
	bearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e05c5c"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#aaaaaa"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// headerRows and footerRows frame the chart.
const (
	headerRows = 1
	footerRows = 1
	wheelStep  = 120.0
)

// ── messages ──────────────────────────────────────────────────────────────────

type feedMsg struct {
	buf      []byte
	snapshot bool
}

type frameMsg time.Time

// ── model ─────────────────────────────────────────────────────────────────────

type model struct {
	symbol   string
	interval string
	scale    int
	frame    time.Duration

	log    *slog.Logger
	status *statusLine
	feed   <-chan feedMsg

	engine    *chart.Engine
	policy    render.Policy
	composite *image.RGBA
	lines     []string

	width  int
	height int

	pressed bool
	moved   bool
}

func newModel(cfg *config.Config, log *slog.Logger, status *statusLine) (*model, error) {
	palette, err := render.NewPalette(cfg.Chart.Palette, cfg.Chart.Ramp)
	if err != nil {
		return nil, err
	}
	policy, err := render.ParsePolicy(cfg.Chart.HeatMapPolicy)
	if err != nil {
		return nil, err
	}
	scale := cfg.Chart.PixelScale
	empty := codec.Encode(nil)
	e, err := chart.New(empty, 0, len(empty),
		chart.WithLogger(log),
		chart.WithTargetFPS(cfg.Chart.TargetFPS),
		chart.WithPalette(palette),
		chart.WithPolicy(policy),
		chart.WithSplitVolume(cfg.Chart.SplitVolume),
		chart.WithCandleWidth(2*scale),
		chart.WithTitle(cfg.Feed.Symbol+" "+cfg.Feed.Interval),
	)
	if err != nil {
		return nil, err
	}
	return &model{
		symbol:   cfg.Feed.Symbol,
		interval: cfg.Feed.Interval,
		scale:    scale,
		frame:    time.Duration(float64(time.Second) / cfg.Chart.TargetFPS),
		log:      log,
		status:   status,
		engine:   e,
		policy:   policy,
	}, nil
}

// ── Init / Update / View ──────────────────────────────────────────────────────

func (m *model) Init() tea.Cmd {
	return tea.Batch(waitForFeed(m.feed), m.tick())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m, m.key(msg.String())

	case tea.MouseMsg:
		m.mouse(tea.MouseEvent(msg))
		return m, nil

	case feedMsg:
		m.ingest(msg)
		return m, waitForFeed(m.feed)

	case frameMsg:
		m.draw()
		return m, m.tick()
	}

	return m, nil
}

func (m *model) View() string {
	if m.width == 0 {
		return "connecting…"
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(strings.Join(m.lines, "\n"))
	b.WriteByte('\n')
	b.WriteString(m.renderFooter())
	return b.String()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// waitForFeed blocks on the channel and returns a Cmd that fires feedMsg.
func waitForFeed(ch <-chan feedMsg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func (m *model) tick() tea.Cmd {
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *model) chartRows() int {
	return max(0, m.height-headerRows-footerRows)
}

// resize gives the engine fresh surfaces sized to the terminal.
func (m *model) resize(cols, rows int) {
	m.width, m.height = cols, rows
	w, h := cols*m.scale, m.chartRows()*2*m.scale
	if w <= 0 || h <= 0 {
		m.lines = nil
		return
	}
	m.engine.AttachSurfaces(canvas.NewSurface(w, h), canvas.NewSurface(w, h), canvas.NewSurface(w, h))
	m.composite = canvas.NewSurface(w, h)
	if err := m.engine.Resize(w, h); err != nil {
		m.log.Debug("resize ignored", "err", err)
	}
}

func (m *model) ingest(msg feedMsg) {
	var err error
	if msg.snapshot {
		// a reconnect resends the snapshot; a view panned into history stays
		// on the same candles instead of jumping back to the newest
		anchor, count, panned := m.historyView()
		err = m.engine.Load(msg.buf)
		if err == nil && panned {
			m.engine.SetWindow(m.engine.IndexNearest(anchor), count)
		}
	} else {
		err = m.engine.UpdateLatest(msg.buf, 0, len(msg.buf))
	}
	if err != nil {
		m.log.Warn("feed buffer rejected", "snapshot", msg.snapshot, "err", err)
	}
}

// historyView reports the first visible timestamp and window size when the
// window does not reach the newest candle.
func (m *model) historyView() (int32, int, bool) {
	rng := m.engine.Range()
	if rng.Total == 0 || rng.End() == rng.Total {
		return 0, 0, false
	}
	it, ok := m.engine.At(rng.Start)
	return it.Timestamp, rng.Count, ok
}

// draw redraws when anything is stale and refreshes the cached lines.
func (m *model) draw() {
	if m.composite == nil {
		return
	}
	stale := m.engine.State().Dragging()
	for _, l := range canvas.Layers {
		stale = stale || m.engine.Dirty(l)
	}
	if !stale {
		return
	}
	if err := m.engine.DrawAll(); err != nil {
		m.log.Debug("frame failed", "err", err)
		return
	}
	m.engine.Composite(m.composite)
	m.lines = halfBlocks(m.composite, m.scale)
}

func (m *model) key(k string) tea.Cmd {
	switch k {
	case "q", "ctrl+c":
		m.engine.Dispose()
		return tea.Quit
	case "m":
		next := chart.HeatMap
		if m.engine.RenderMode() == chart.HeatMap {
			next = chart.Candlestick
		}
		m.engine.SetRenderMode(next)
	case "p":
		m.policy = (m.policy + 1) % (render.TimeDecayed + 1)
		m.engine.SetPolicy(m.policy)
	case "left":
		m.engine.Pan(-max(1, m.engine.Range().Count/10))
	case "right":
		m.engine.Pan(max(1, m.engine.Range().Count/10))
	case "+", "=":
		m.zoomCenter(1.25)
	case "-":
		m.zoomCenter(0.8)
	}
	return nil
}

func (m *model) zoomCenter(factor float64) {
	r := m.engine.Range()
	if err := m.engine.Zoom(factor, r.Start+r.Count/2); err != nil {
		m.log.Debug("zoom rejected", "err", err)
	}
}

// pixel maps a terminal cell to the center of its surface pixels.
func (m *model) pixel(x, y int) (int, int, bool) {
	row := y - headerRows
	if row < 0 || row >= m.chartRows() || x < 0 || x >= m.width {
		return 0, 0, false
	}
	return x*m.scale + m.scale/2, row*2*m.scale + m.scale, true
}

func (m *model) mouse(ev tea.MouseEvent) {
	x, y, ok := m.pixel(ev.X, ev.Y)
	if !ok {
		// the dispatcher abandons a drag that leaves the chart
		m.pressed = false
		m.engine.HandleMouseLeave()
		return
	}

	switch ev.Action {
	case tea.MouseActionPress:
		switch ev.Button {
		case tea.MouseButtonWheelUp:
			m.wheel(-wheelStep, x, y)
		case tea.MouseButtonWheelDown:
			m.wheel(wheelStep, x, y)
		case tea.MouseButtonLeft:
			m.pressed, m.moved = true, false
			m.engine.HandleMouseDown(x, y)
		}
	case tea.MouseActionRelease:
		wasClick := m.pressed && !m.moved
		m.pressed = false
		m.engine.HandleMouseUp(x, y)
		if wasClick {
			m.engine.HandleClick(x, y)
		}
	case tea.MouseActionMotion:
		if m.pressed {
			m.moved = true
			m.engine.HandleMouseDrag(x, y)
		} else {
			m.engine.HandleMouseMove(x, y)
		}
	}
}

func (m *model) wheel(delta float64, x, y int) {
	if err := m.engine.HandleWheel(delta, x, y); err != nil {
		m.log.Debug("wheel rejected", "err", err)
	}
}

// ── header / footer ───────────────────────────────────────────────────────────

func (m *model) renderHeader() string {
	idx := m.engine.Mouse().HoveredIndex
	if idx < 0 {
		idx = m.engine.Len() - 1
	}
	it, ok := m.engine.At(idx)
	head := fmt.Sprintf("%s  %s  [%s]  q=%.2f  %2.0ffps", m.symbol, m.interval,
		m.engine.RenderMode(), m.engine.Quality(), m.engine.FPS())
	if !ok {
		return headerStyle.Render(head + "  waiting for data…")
	}
	style := bullStyle
	if !it.Bullish() {
		style = bearStyle
	}
	ts := time.Unix(int64(it.Timestamp), 0).UTC().Format("01-02 15:04")
	return headerStyle.Render(head+"  "+ts+"  ") + style.Render(fmt.Sprintf(
		"O:%.2f H:%.2f L:%.2f C:%.2f V:%.4f", it.Open, it.High, it.Low, it.Close, it.Volume()))
}

func (m *model) renderFooter() string {
	keys := "[q] quit  [m] mode  [p] policy  [←/→] pan  [+/-] zoom"
	if s := m.status.Last(); s != "" {
		keys += "  │  " + s
	}
	return footerStyle.MaxWidth(m.width).Render(keys)
}
