package chart

import (
	"log/slog"
	"time"

	"github.com/yitech/candlechart/render"
)

type options struct {
	logger      *slog.Logger
	targetFPS   float64
	candleWidth int
	minVisible  int
	policy      render.Policy
	palette     *render.Palette
	splitVolume bool
	title       string
	now         func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the engine logger. The default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTargetFPS sets the frame rate the quality controller aims for.
func WithTargetFPS(fps float64) Option {
	return func(o *options) { o.targetFPS = fps }
}

// WithCandleWidth sets the pixel width per candle used to size the window on resize.
func WithCandleWidth(px int) Option {
	return func(o *options) { o.candleWidth = px }
}

// WithMinVisible sets the smallest window zoom can reach.
func WithMinVisible(n int) Option {
	return func(o *options) { o.minVisible = n }
}

// WithPolicy selects the heat-map aggregation policy.
func WithPolicy(p render.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithPalette selects the color scheme.
func WithPalette(p *render.Palette) Option {
	return func(o *options) {
		if p != nil {
			o.palette = p
		}
	}
}

// WithSplitVolume stacks buy under sell volume in the volume bars.
func WithSplitVolume(on bool) Option {
	return func(o *options) { o.splitVolume = on }
}

// WithTitle sets the header caption, usually "SYMBOL INTERVAL".
func WithTitle(s string) Option {
	return func(o *options) { o.title = s }
}

// WithClock replaces time.Now for frame timing.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
