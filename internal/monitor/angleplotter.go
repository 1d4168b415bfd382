package monitor

import (
	"fmt"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/gymsight/repcount/internal/httputil"
)

// handleAnglesPlot renders the recorded angle traces as a PNG for
// offline reports: one line per slot plus dashed threshold rules.
func (ws *WebServer) handleAnglesPlot(w http.ResponseWriter, r *http.Request) {
	series := ws.recorder.Series()
	if len(series) == 0 {
		httputil.NotFound(w, "no samples recorded yet")
		return
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Joint Angle (%s)", ws.policy.Exercise)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Angle (deg)"
	p.Y.Min = 0
	p.Y.Max = 180

	minSeq, maxSeq := frameExtent(series)

	for i, s := range series {
		pts := make(plotter.XYs, 0, len(s.Samples))
		for _, sample := range s.Samples {
			pts = append(pts, plotter.XY{X: float64(sample.FrameSeq), Y: sample.Angle})
		}
		if len(pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to build slot line: %v", err))
			return
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("slot %d", s.Index), line)
	}

	for _, thr := range []struct {
		label string
		value float64
	}{
		{"up threshold", ws.policy.UpAngle},
		{"down threshold", ws.policy.DownAngle},
	} {
		rule, err := plotter.NewLine(plotter.XYs{
			{X: minSeq, Y: thr.value},
			{X: maxSeq, Y: thr.value},
		})
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to build threshold rule: %v", err))
			return
		}
		rule.Dashes = plotutil.Dashes(1)
		rule.Width = vg.Points(1)
		p.Add(rule)
		p.Legend.Add(thr.label, rule)
	}

	p.Legend.Top = true

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		// Headers are already out; nothing useful left to send.
		return
	}
}

// frameExtent returns the smallest and largest frame seq across every
// slot window.
func frameExtent(series []SlotSeries) (min, max float64) {
	first := true
	for _, s := range series {
		for _, sample := range s.Samples {
			x := float64(sample.FrameSeq)
			if first {
				min, max = x, x
				first = false
				continue
			}
			if x < min {
				min = x
			}
			if x > max {
				max = x
			}
		}
	}
	return min, max
}
