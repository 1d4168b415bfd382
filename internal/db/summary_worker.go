package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gymsight/repcount/internal/monitoring"
	"github.com/gymsight/repcount/internal/timeutil"
)

// SummaryWorker periodically rolls ended sessions up into
// session_summaries. Runs are idempotent: only ended sessions without a
// summary are touched, so a missed tick is caught up on the next one.
type SummaryWorker struct {
	DB       *DB
	Interval time.Duration
	Clock    timeutil.Clock
	StopChan chan struct{}
}

// NewSummaryWorker creates a worker on the real clock. A non-positive
// interval falls back to 30 seconds.
func NewSummaryWorker(db *DB, interval time.Duration) *SummaryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SummaryWorker{
		DB:       db,
		Interval: interval,
		Clock:    timeutil.RealClock{},
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic rollup loop in a goroutine.
func (w *SummaryWorker) Start() {
	go func() {
		ticker := w.Clock.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				n, err := w.RunOnce(context.Background())
				if err != nil {
					monitoring.Logf("Summary worker run error: %v", err)
				} else if n > 0 {
					monitoring.Logf("Summary worker: computed %d session summaries", n)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *SummaryWorker) Stop() {
	close(w.StopChan)
}

// RunOnce computes summaries for every ended session lacking one and
// reports how many were written.
func (w *SummaryWorker) RunOnce(ctx context.Context) (int, error) {
	ids, err := w.sessionsNeedingSummary(ctx)
	if err != nil {
		return 0, err
	}

	var n int
	for _, id := range ids {
		if err := w.SummarizeSession(ctx, id); err != nil {
			return n, fmt.Errorf("summarize %s: %w", id, err)
		}
		n++
	}

	return n, nil
}

// SummarizeSession computes and upserts the rollup for one session.
func (w *SummaryWorker) SummarizeSession(ctx context.Context, sessionID string) error {
	sess, err := w.DB.GetSession(sessionID)
	if err != nil {
		return err
	}

	events, err := w.DB.ListRepEvents(sessionID)
	if err != nil {
		return err
	}

	sum := computeSummary(sess, events, w.Clock.Now().UnixNano())
	return w.DB.UpsertSummary(sum)
}

// sessionsNeedingSummary lists ended sessions without a rollup, oldest
// first so backlogs drain in order.
func (w *SummaryWorker) sessionsNeedingSummary(ctx context.Context) ([]string, error) {
	rows, err := w.DB.QueryContext(ctx, `
		SELECT s.session_id
		FROM sessions s
		LEFT JOIN session_summaries m ON m.session_id = s.session_id
		WHERE s.ended_at_ns IS NOT NULL AND m.session_id IS NULL
		ORDER BY s.ended_at_ns
	`)
	if err != nil {
		return nil, fmt.Errorf("find sessions needing summary: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// computeSummary derives a session's rollup from its rep events, which
// must be in counting order. Inter-rep intervals are measured per slot
// so two people counting in parallel do not interleave into artificially
// short gaps.
func computeSummary(sess *Session, events []*RepEvent, computedAtNs int64) *SessionSummary {
	sum := &SessionSummary{
		SessionID:    sess.SessionID,
		TotalReps:    len(events),
		ComputedAtNs: computedAtNs,
	}

	endNs := computedAtNs
	if sess.EndedAtNs != nil {
		endNs = *sess.EndedAtNs
	}
	if endNs > sess.StartedAtNs {
		sum.DurationSecs = float64(endNs-sess.StartedAtNs) / 1e9
	}
	if sum.DurationSecs > 0 {
		sum.RepsPerMinute = float64(sum.TotalReps) / sum.DurationSecs * 60
	}

	if len(events) == 0 {
		return sum
	}

	slotTimes := make(map[string][]int64)
	minAngle, maxAngle := events[0].Angle, events[0].Angle
	for _, ev := range events {
		slotTimes[ev.SlotHandle] = append(slotTimes[ev.SlotHandle], ev.CountedAtNs)
		if ev.Angle < minAngle {
			minAngle = ev.Angle
		}
		if ev.Angle > maxAngle {
			maxAngle = ev.Angle
		}
	}
	sum.SlotsUsed = len(slotTimes)
	sum.MinAngle = &minAngle
	sum.MaxAngle = &maxAngle

	var intervals []float64
	for _, times := range slotTimes {
		for i := 1; i < len(times); i++ {
			intervals = append(intervals, float64(times[i]-times[i-1])/1e9)
		}
	}
	if len(intervals) > 0 {
		sort.Float64s(intervals)
		p50 := stat.Quantile(0.5, stat.Empirical, intervals, nil)
		p95 := stat.Quantile(0.95, stat.Empirical, intervals, nil)
		sum.P50RepSecs = &p50
		sum.P95RepSecs = &p95
	}

	return sum
}
