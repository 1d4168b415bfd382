// Command gen-poselog generates synthetic .poselog recordings for
// replay tests and fixtures.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/gymsight/repcount/internal/poselog"
	"github.com/gymsight/repcount/internal/posestream"
	"github.com/gymsight/repcount/internal/timeutil"
)

func main() {
	output := flag.String("o", "sample.poselog", "output path")
	frames := flag.Int("n", 300, "number of frames")
	people := flag.Int("people", 2, "people per frame")
	fps := flag.Float64("fps", 15, "frames per second")
	minAngle := flag.Float64("min-angle", 70, "bottom of the angle sweep (degrees)")
	maxAngle := flag.Float64("max-angle", 170, "top of the angle sweep (degrees)")
	period := flag.Duration("period", 4*time.Second, "one full angle sweep")
	exercise := flag.String("exercise", "pushup", "exercise recorded in the header")
	flag.Parse()

	// Frame timestamps come from a mock clock stepped at the frame rate,
	// so generation is instant and replay pacing still works.
	clock := timeutil.NewMockClock(time.Now())
	gen := posestream.NewSyntheticSource("synthetic", [3]int{6, 8, 10})
	gen.People = *people
	gen.FrameRate = *fps
	gen.MinAngle = *minAngle
	gen.MaxAngle = *maxAngle
	gen.CyclePeriod = *period
	gen.SetClock(clock)

	w, err := poselog.NewWriter(*output, poselog.Header{
		CameraID:     "synthetic",
		Exercise:     *exercise,
		CreatedNanos: clock.Now().UnixNano(),
		Note:         "generated by gen-poselog",
	})
	if err != nil {
		log.Fatalf("failed to create poselog: %v", err)
	}
	defer w.Close()

	step := time.Duration(float64(time.Second) / *fps)
	for i := 0; i < *frames; i++ {
		if err := w.WriteFrame(gen.NextFrame()); err != nil {
			log.Fatalf("failed to write frame %d: %v", i+1, err)
		}
		clock.Advance(step)
		if (i+1)%100 == 0 {
			log.Printf("%d/%d frames", i+1, *frames)
		}
	}
	log.Printf("Created %s: %d frames, %d people, %.0f-%.0f degrees",
		*output, *frames, *people, *minAngle, *maxAngle)
}
