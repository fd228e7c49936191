// Package quality turns measured frame times into an advisory quality level
// for the heat map's sampling density.
package quality

import "time"

const (
	// MinLevel and MaxLevel bound the quality level.
	MinLevel = 0.1
	MaxLevel = 1.0

	// DefaultTargetFPS is used when no target is configured.
	DefaultTargetFPS = 60

	window = 10

	degradeBelow = 0.80
	recoverAbove = 0.95
	degradeStep  = 0.90
	recoverStep  = 1.05
)

// Controller keeps a rolling FPS average and nudges the quality level toward
// what the machine can sustain. It never blocks or skips a frame.
type Controller struct {
	target float64
	level  float64

	samples [window]time.Duration
	n, next int
	sum     time.Duration
}

// New returns a Controller at full quality. targetFPS ≤ 0 selects DefaultTargetFPS.
func New(targetFPS float64) *Controller {
	if targetFPS <= 0 {
		targetFPS = DefaultTargetFPS
	}
	return &Controller{target: targetFPS, level: MaxLevel}
}

// Observe feeds one frame time. Non-positive durations are ignored.
func (c *Controller) Observe(frame time.Duration) {
	if frame <= 0 {
		return
	}
	if c.n == window {
		c.sum -= c.samples[c.next]
	} else {
		c.n++
	}
	c.samples[c.next] = frame
	c.sum += frame
	c.next = (c.next + 1) % window

	fps := c.FPS()
	switch {
	case fps < degradeBelow*c.target:
		c.level *= degradeStep
		if c.level < MinLevel {
			c.level = MinLevel
		}
	case fps > recoverAbove*c.target:
		c.level *= recoverStep
		if c.level > MaxLevel {
			c.level = MaxLevel
		}
	}
}

// FPS is the rolling average frame rate, 0 before the first sample.
func (c *Controller) FPS() float64 {
	if c.n == 0 || c.sum <= 0 {
		return 0
	}
	avg := c.sum / time.Duration(c.n)
	return float64(time.Second) / float64(avg)
}

// Level is the current quality in [MinLevel, MaxLevel].
func (c *Controller) Level() float64 { return c.level }

// Target is the configured frame rate.
func (c *Controller) Target() float64 { return c.target }

// Reset returns to full quality and forgets every sample.
func (c *Controller) Reset() {
	*c = Controller{target: c.target, level: MaxLevel}
}
