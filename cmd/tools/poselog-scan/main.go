// Command poselog-scan replays a recorded poselog through a fresh
// counter and reports per-slot totals and rep-interval percentiles,
// without running the service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/gymsight/repcount/internal/config"
	"github.com/gymsight/repcount/internal/poselog"
	"github.com/gymsight/repcount/internal/workout"
)

type slotReport struct {
	Index     int     `json:"index"`
	Reps      int     `json:"reps"`
	Stage     string  `json:"stage"`
	LastAngle float64 `json:"last_angle"`
}

type scanReport struct {
	File       string       `json:"file"`
	Exercise   string       `json:"exercise"`
	Frames     int          `json:"frames"`
	People     int          `json:"people"`
	Rejected   int          `json:"rejected_frames"`
	TotalReps  int          `json:"total_reps"`
	Slots      []slotReport `json:"slots"`
	P50RepSecs *float64     `json:"p50_rep_secs,omitempty"`
	P95RepSecs *float64     `json:"p95_rep_secs,omitempty"`
}

func main() {
	exercise := flag.String("exercise", "", "exercise override (default: the poselog header's)")
	upAngle := flag.Float64("up", 0, "up threshold override (degrees)")
	downAngle := flag.Float64("down", 0, "down threshold override (degrees)")
	natural := flag.Bool("natural-order", false, "pair detections in natural order instead of reversed")
	asJSON := flag.Bool("json", false, "emit the report as JSON")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: poselog-scan [flags] <file.poselog>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	r, err := poselog.OpenReader(path)
	if err != nil {
		log.Fatalf("failed to open poselog: %v", err)
	}
	defer r.Close()

	hdr := r.Header()
	cfg := config.EmptyTuningConfig()
	if *exercise != "" {
		cfg.Exercise = exercise
	} else if hdr.Exercise != "" {
		cfg.Exercise = &hdr.Exercise
	}
	if *upAngle != 0 {
		cfg.UpAngle = upAngle
	}
	if *downAngle != 0 {
		cfg.DownAngle = downAngle
	}

	order := workout.OrderReversed
	if *natural {
		order = workout.OrderNatural
	}
	counter := workout.NewCounter(cfg.Policy(), order)

	report := scanReport{
		File:     path,
		Exercise: string(cfg.GetExercise()),
	}

	// lastRepNs and intervals derive rep pacing from frame timestamps,
	// the same way the live pipeline does.
	lastRepNs := make(map[string]int64)
	prevCounts := make(map[string]int)
	var intervals []float64

	for {
		f, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("failed to read frame: %v", err)
		}

		report.Frames++
		report.People += len(f.People)

		snaps, err := counter.Update(f.People)
		if err != nil {
			report.Rejected++
			continue
		}

		for _, s := range snaps {
			if s.Count > prevCounts[s.Handle] {
				if prev, ok := lastRepNs[s.Handle]; ok && f.TimestampNanos > prev {
					intervals = append(intervals, float64(f.TimestampNanos-prev)/1e9)
				}
				lastRepNs[s.Handle] = f.TimestampNanos
				prevCounts[s.Handle] = s.Count
			}
		}
	}

	for _, s := range counter.Snapshots() {
		report.TotalReps += s.Count
		report.Slots = append(report.Slots, slotReport{
			Index:     s.Index,
			Reps:      s.Count,
			Stage:     string(s.Stage),
			LastAngle: s.Angle,
		})
	}

	if len(intervals) > 0 {
		sort.Float64s(intervals)
		p50 := stat.Quantile(0.50, stat.Empirical, intervals, nil)
		p95 := stat.Quantile(0.95, stat.Empirical, intervals, nil)
		report.P50RepSecs = &p50
		report.P95RepSecs = &p95
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
		return
	}

	fmt.Printf("%s: exercise=%s frames=%d people=%d rejected=%d\n",
		report.File, report.Exercise, report.Frames, report.People, report.Rejected)
	fmt.Printf("%-6s %-6s %-8s %s\n", "slot", "reps", "stage", "last angle")
	for _, s := range report.Slots {
		fmt.Printf("%-6d %-6d %-8s %.1f\n", s.Index, s.Reps, s.Stage, s.LastAngle)
	}
	fmt.Printf("total reps: %d\n", report.TotalReps)
	if report.P50RepSecs != nil {
		fmt.Printf("rep interval: p50=%.2fs p95=%.2fs (%d samples)\n",
			*report.P50RepSecs, *report.P95RepSecs, len(intervals))
	}
}
