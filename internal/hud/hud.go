// Package hud renders the live counting state into a terminal. It is
// the headless stand-in for a pose worker's annotated video preview:
// per-slot stage, count, and an angle bar spanning the two thresholds,
// redrawn in place at a capped rate. It never affects counting.
package hud

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gymsight/repcount/internal/pipeline"
	"github.com/gymsight/repcount/internal/timeutil"
	"github.com/gymsight/repcount/internal/workout"
)

// ANSI escape codes shared with the API logging middleware.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"

	cursorUpFmt = "\033[%dA"
	clearBelow  = "\r\033[J"
)

// barWidth is the angle bar's width in characters.
const barWidth = 40

// Options configures a HUD.
type Options struct {
	// Refresh caps how often the terminal is redrawn. Zero means 250ms.
	Refresh time.Duration

	// Thickness is the bar height in rows, the line_thickness
	// passthrough. Zero means 1.
	Thickness int

	// UpAngle and DownAngle position the bar's scale.
	UpAngle   float64
	DownAngle float64

	// Clock is injected for throttle tests. Nil means the real clock.
	Clock timeutil.Clock
}

// HUD writes the live state to a terminal, redrawing over its previous
// output.
type HUD struct {
	mu        sync.Mutex
	out       io.Writer
	clock     timeutil.Clock
	refresh   time.Duration
	thickness int
	upAngle   float64
	downAngle float64

	lastDraw  time.Time
	drawn     bool
	lastLines int
}

// New creates a HUD writing to out.
func New(out io.Writer, opts Options) *HUD {
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = 250 * time.Millisecond
	}
	thickness := opts.Thickness
	if thickness < 1 {
		thickness = 1
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &HUD{
		out:       out,
		clock:     clock,
		refresh:   refresh,
		thickness: thickness,
		upAngle:   opts.UpAngle,
		downAngle: opts.DownAngle,
	}
}

// Render draws state, unless the previous draw was under the refresh
// cap ago. A finished session always draws so the final counts stay on
// screen.
func (h *HUD) Render(state pipeline.LiveState) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	if h.drawn && state.Running && now.Sub(h.lastDraw) < h.refresh {
		return
	}
	h.lastDraw = now

	var b strings.Builder
	if h.drawn && h.lastLines > 0 {
		fmt.Fprintf(&b, cursorUpFmt, h.lastLines)
		b.WriteString(clearBelow)
	}

	lines := 0
	status := colorBoldGreen + "live" + colorReset
	if !state.Running {
		status = colorYellow + "done" + colorReset
	}
	fmt.Fprintf(&b, "%s%s%s  %s  frame %d\n", colorCyan, state.Exercise, colorReset, status, state.FrameSeq)
	lines++

	if len(state.Slots) == 0 {
		b.WriteString("waiting for detections...\n")
		lines++
	}

	for _, s := range state.Slots {
		bar := h.bar(s.Angle)
		for row := 0; row < h.thickness; row++ {
			if row == 0 {
				fmt.Fprintf(&b, "slot %d  %s%4s%s %3d reps  %6.1f° %s\n",
					s.Index, stageColor(s.Stage), s.Stage, colorReset, s.Count, s.Angle, bar)
			} else {
				fmt.Fprintf(&b, "%*s%s\n", 38, "", bar)
			}
			lines++
		}
	}

	h.lastLines = lines
	h.drawn = true
	_, _ = io.WriteString(h.out, b.String())
}

// bar renders the angle's position between the down and up thresholds.
func (h *HUD) bar(angle float64) string {
	span := h.upAngle - h.downAngle
	if span <= 0 {
		span = 1
	}
	frac := (angle - h.downAngle) / span
	frac = math.Max(0, math.Min(1, frac))
	fill := int(math.Round(frac * barWidth))

	return "[" + strings.Repeat("=", fill) + strings.Repeat(" ", barWidth-fill) + "]"
}

func stageColor(s workout.Stage) string {
	switch s {
	case workout.StageUp:
		return colorBoldGreen
	case workout.StageDown:
		return colorBoldRed
	default:
		return colorYellow
	}
}
