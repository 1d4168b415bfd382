package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gymsight/repcount/internal/httputil"
)

// alignedSeries is one slot's values aligned to the shared frame axis.
// Frames before the slot existed hold nil so the chart leaves a gap.
type alignedSeries struct {
	name   string
	values []opts.LineData
}

// alignSeries builds a shared frame-seq axis across every slot window
// and aligns each slot's samples to it, using value extracted per sample.
func alignSeries(series []SlotSeries, value func(SamplePoint) interface{}) ([]string, []alignedSeries) {
	seqSet := make(map[uint64]struct{})
	for _, s := range series {
		for _, p := range s.Samples {
			seqSet[p.FrameSeq] = struct{}{}
		}
	}
	seqs := make([]uint64, 0, len(seqSet))
	for seq := range seqSet {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })

	labels := make([]string, len(seqs))
	pos := make(map[uint64]int, len(seqs))
	for i, seq := range seqs {
		labels[i] = strconv.FormatUint(seq, 10)
		pos[seq] = i
	}

	aligned := make([]alignedSeries, 0, len(series))
	for _, s := range series {
		values := make([]opts.LineData, len(seqs))
		for i := range values {
			values[i] = opts.LineData{Value: nil}
		}
		for _, p := range s.Samples {
			values[pos[p.FrameSeq]] = opts.LineData{Value: value(p)}
		}
		aligned = append(aligned, alignedSeries{
			name:   fmt.Sprintf("slot %d", s.Index),
			values: values,
		})
	}
	return labels, aligned
}

// constantSeries builds a flat line, used for threshold markers.
func constantSeries(v float64, n int) []opts.LineData {
	values := make([]opts.LineData, n)
	for i := range values {
		values[i] = opts.LineData{Value: v}
	}
	return values
}

// handleAnglesChart renders per-slot joint-angle timelines with the up
// and down thresholds overlaid, as a self-contained HTML page.
func (ws *WebServer) handleAnglesChart(w http.ResponseWriter, r *http.Request) {
	series := ws.recorder.Series()
	if len(series) == 0 {
		httputil.NotFound(w, "no samples recorded yet")
		return
	}

	labels, aligned := alignSeries(series, func(p SamplePoint) interface{} { return p.Angle })

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Joint Angles", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Joint Angle per Slot",
			Subtitle: fmt.Sprintf("exercise=%s joints=%v up=%.1f down=%.1f", ws.policy.Exercise, ws.policy.Joints, ws.policy.UpAngle, ws.policy.DownAngle),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Angle (deg)", Min: 0, Max: 180}),
	)

	line.SetXAxis(labels)
	for _, s := range aligned {
		line.AddSeries(s.name, s.values)
	}
	line.AddSeries("up threshold", constantSeries(ws.policy.UpAngle, len(labels)),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#35b779"}))
	line.AddSeries("down threshold", constantSeries(ws.policy.DownAngle, len(labels)),
		charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed", Color: "#ff5252"}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleRepsChart renders per-slot cumulative repetition counts.
func (ws *WebServer) handleRepsChart(w http.ResponseWriter, r *http.Request) {
	series := ws.recorder.Series()
	if len(series) == 0 {
		httputil.NotFound(w, "no samples recorded yet")
		return
	}

	labels, aligned := alignSeries(series, func(p SamplePoint) interface{} { return p.Count })

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Repetitions", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Cumulative Reps per Slot",
			Subtitle: fmt.Sprintf("exercise=%s slots=%d", ws.policy.Exercise, len(series)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Reps"}),
	)

	line.SetXAxis(labels)
	for _, s := range aligned {
		line.AddSeries(s.name, s.values, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
