package monitor

import (
	"net/http"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gymsight/repcount/internal/httputil"
	"github.com/gymsight/repcount/internal/pipeline"
	"github.com/gymsight/repcount/internal/workout"
)

// WebServer serves the monitor's debug routes. It reads from the
// recorder and the pipeline stats; it never writes counting state.
type WebServer struct {
	recorder *Recorder
	stats    *pipeline.Stats
	policy   *workout.Policy
}

// NewWebServer creates the debug route handler set.
func NewWebServer(recorder *Recorder, stats *pipeline.Stats, policy *workout.Policy) *WebServer {
	return &WebServer{
		recorder: recorder,
		stats:    stats,
		policy:   policy,
	}
}

// RegisterRoutes mounts the monitor's handlers on mux.
func (ws *WebServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/charts/angles", ws.handleAnglesChart)
	mux.HandleFunc("/debug/charts/reps", ws.handleRepsChart)
	mux.HandleFunc("/debug/plots/angles.png", ws.handleAnglesPlot)
	mux.HandleFunc("/debug/pipeline/stats", ws.handlePipelineStats)
}

// pipelineStatsResponse extends the raw counters with rep-interval
// percentiles derived from the recent interval window.
type pipelineStatsResponse struct {
	pipeline.StatsSnapshot
	IntervalSamples int      `json:"interval_samples"`
	P50RepSecs      *float64 `json:"p50_rep_secs,omitempty"`
	P95RepSecs      *float64 `json:"p95_rep_secs,omitempty"`
}

func (ws *WebServer) handlePipelineStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.stats == nil {
		httputil.NotFound(w, "no pipeline stats available")
		return
	}

	snap := ws.stats.Snapshot()
	resp := pipelineStatsResponse{
		StatsSnapshot:   snap,
		IntervalSamples: len(snap.IntervalSecs),
	}
	if len(snap.IntervalSecs) > 0 {
		intervals := append([]float64(nil), snap.IntervalSecs...)
		sort.Float64s(intervals)
		p50 := stat.Quantile(0.50, stat.Empirical, intervals, nil)
		p95 := stat.Quantile(0.95, stat.Empirical, intervals, nil)
		resp.P50RepSecs = &p50
		resp.P95RepSecs = &p95
	}

	httputil.WriteJSONOK(w, resp)
}
