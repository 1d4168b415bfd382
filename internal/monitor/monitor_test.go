package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymsight/repcount/internal/pipeline"
	"github.com/gymsight/repcount/internal/workout"
)

func sampleRecorder(frames int) *Recorder {
	rec := NewRecorder(0)
	for i := 0; i < frames; i++ {
		rec.Sample(uint64(i+1), int64(i+1)*1e9, []workout.Snapshot{
			{Handle: "slot_a", Index: 0, Angle: 90 + float64(i), Stage: workout.StageUp, Count: i / 2},
		})
	}
	return rec
}

func testPolicy() *workout.Policy {
	return workout.NewPolicy(workout.ExercisePushup, [3]int{6, 8, 10}, 0, 0)
}

func TestRecorderKeepsWindowPerSlot(t *testing.T) {
	rec := NewRecorder(3)
	for i := 0; i < 5; i++ {
		rec.Sample(uint64(i+1), int64(i+1), []workout.Snapshot{
			{Handle: "slot_a", Index: 0, Angle: float64(i)},
		})
	}
	// Second slot appears mid-run.
	rec.Sample(6, 6, []workout.Snapshot{
		{Handle: "slot_a", Index: 0, Angle: 99},
		{Handle: "slot_b", Index: 1, Angle: 42},
	})

	series := rec.Series()
	require.Len(t, series, 2)

	// Oldest samples fall off the front of the window.
	assert.Equal(t, "slot_a", series[0].Handle)
	assert.Equal(t, 0, series[0].Index)
	require.Len(t, series[0].Samples, 3)
	assert.Equal(t, uint64(4), series[0].Samples[0].FrameSeq)
	assert.Equal(t, uint64(6), series[0].Samples[2].FrameSeq)

	assert.Equal(t, 1, series[1].Index)
	require.Len(t, series[1].Samples, 1)
	assert.Equal(t, 42.0, series[1].Samples[0].Angle)

	assert.Equal(t, 4, rec.SampleCount())
}

func TestRecorderSeriesIsACopy(t *testing.T) {
	rec := sampleRecorder(2)
	series := rec.Series()
	series[0].Samples[0].Angle = -1

	fresh := rec.Series()
	assert.NotEqual(t, -1.0, fresh[0].Samples[0].Angle)
}

func TestPipelineStatsHandler(t *testing.T) {
	stats := pipeline.NewStats()
	stats.AddFrame(1)
	stats.AddRep("slot_a", 10e9)
	stats.AddRep("slot_a", 12e9)
	stats.AddRep("slot_a", 16e9)

	ws := NewWebServer(sampleRecorder(1), stats, testPolicy())
	mux := http.NewServeMux()
	ws.RegisterRoutes(mux)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pipeline/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Frames          int64    `json:"frames"`
		Reps            int64    `json:"reps"`
		IntervalSamples int      `json:"interval_samples"`
		P50RepSecs      *float64 `json:"p50_rep_secs"`
		P95RepSecs      *float64 `json:"p95_rep_secs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Frames)
	assert.Equal(t, int64(3), resp.Reps)
	assert.Equal(t, 2, resp.IntervalSamples)
	require.NotNil(t, resp.P50RepSecs)
	require.NotNil(t, resp.P95RepSecs)
	assert.LessOrEqual(t, *resp.P50RepSecs, *resp.P95RepSecs)
}

func TestPipelineStatsHandlerRejectsPost(t *testing.T) {
	ws := NewWebServer(NewRecorder(0), pipeline.NewStats(), testPolicy())
	rr := httptest.NewRecorder()
	ws.handlePipelineStats(rr, httptest.NewRequest(http.MethodPost, "/debug/pipeline/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestAnglesChartHandler(t *testing.T) {
	ws := NewWebServer(sampleRecorder(10), pipeline.NewStats(), testPolicy())

	rr := httptest.NewRecorder()
	ws.handleAnglesChart(rr, httptest.NewRequest(http.MethodGet, "/debug/charts/angles", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "slot 0")
	assert.Contains(t, rr.Body.String(), "up threshold")
}

func TestAnglesChartHandlerEmpty(t *testing.T) {
	ws := NewWebServer(NewRecorder(0), pipeline.NewStats(), testPolicy())
	rr := httptest.NewRecorder()
	ws.handleAnglesChart(rr, httptest.NewRequest(http.MethodGet, "/debug/charts/angles", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRepsChartHandler(t *testing.T) {
	ws := NewWebServer(sampleRecorder(6), pipeline.NewStats(), testPolicy())
	rr := httptest.NewRecorder()
	ws.handleRepsChart(rr, httptest.NewRequest(http.MethodGet, "/debug/charts/reps", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "slot 0")
}

func TestAnglesPlotPNG(t *testing.T) {
	ws := NewWebServer(sampleRecorder(20), pipeline.NewStats(), testPolicy())
	rr := httptest.NewRecorder()
	ws.handleAnglesPlot(rr, httptest.NewRequest(http.MethodGet, "/debug/plots/angles.png", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))

	body := rr.Body.Bytes()
	require.Greater(t, len(body), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, body[:4])
}

func TestAlignSeriesPadsLateSlots(t *testing.T) {
	series := []SlotSeries{
		{Handle: "slot_a", Index: 0, Samples: []SamplePoint{{FrameSeq: 1, Angle: 10}, {FrameSeq: 2, Angle: 20}}},
		{Handle: "slot_b", Index: 1, Samples: []SamplePoint{{FrameSeq: 2, Angle: 30}}},
	}

	labels, aligned := alignSeries(series, func(p SamplePoint) interface{} { return p.Angle })
	assert.Equal(t, []string{"1", "2"}, labels)
	require.Len(t, aligned, 2)
	assert.Nil(t, aligned[1].values[0].Value)
	assert.Equal(t, 30.0, aligned[1].values[1].Value)
}
