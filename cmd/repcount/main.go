// Command repcount runs the exercise repetition counting service: one
// pose frame source feeding the counter, with the HTTP API, debug
// charts, session persistence, and an optional terminal preview.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gymsight/repcount/internal/api"
	"github.com/gymsight/repcount/internal/config"
	"github.com/gymsight/repcount/internal/db"
	"github.com/gymsight/repcount/internal/hud"
	"github.com/gymsight/repcount/internal/monitor"
	"github.com/gymsight/repcount/internal/pipeline"
	"github.com/gymsight/repcount/internal/poselog"
	"github.com/gymsight/repcount/internal/posestream"
	"github.com/gymsight/repcount/internal/version"
	"github.com/gymsight/repcount/internal/workout"
)

var (
	devMode     = flag.Bool("dev", false, "Run in dev mode with the synthetic frame source")
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "repcount.db", "SQLite database path (empty disables persistence)")
	configPath  = flag.String("config", "", "Tuning config JSON path")
	exercise    = flag.String("exercise", "", "Exercise override: pushup, pullup, squat or abworkout")
	sourceName  = flag.String("source", "", "Frame source: synthetic, replay, udp, serial, worker or pcap (default inferred)")
	poselogPath = flag.String("poselog", "", "Poselog file to replay")
	replaySpeed = flag.Float64("replay-speed", 1.0, "Replay speed multiplier (0 disables pacing)")
	pcapFile    = flag.String("pcap", "", "PCAP file of captured UDP pose traffic to replay")
	udpPort     = flag.Int("udp-port", 5005, "UDP port to listen for pose frames on")
	serialPort  = flag.String("serial-port", "", "Serial port carrying NDJSON pose frames")
	baud        = flag.Int("baud", 0, "Serial baud rate (0 uses the default)")
	workerCmd   = flag.String("worker-cmd", "", "Pose worker command line to launch as a subprocess")
	record      = flag.Bool("record", false, "Record consumed frames to a poselog")
	noPreview   = flag.Bool("no-preview", false, "Disable the terminal HUD regardless of config")
)

func main() {
	flag.Parse()

	// `repcount [flags] migrate <action>` manages the schema and exits.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	setupDebugLogs()

	cfg := loadConfig()
	policy := cfg.Policy()
	counter := workout.NewCounter(policy, cfg.GetSlotOrder())
	log.Printf("repcount %s: exercise=%s joints=%v up=%.1f down=%.1f order=%s",
		version.String(),
		policy.Exercise, policy.Joints, policy.UpAngle, policy.DownAngle, cfg.GetSlotOrder())

	var database *db.DB
	if *dbPath != "" {
		var err error
		database, err = db.OpenAndMigrate(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()
	} else {
		log.Printf("persistence disabled: no database path")
	}

	source, err := buildSource(cfg, policy)
	if err != nil {
		log.Fatalf("Failed to build frame source: %v", err)
	}

	live := pipeline.NewLive()
	stats := pipeline.NewStats()
	recorder := monitor.NewRecorder(0)

	rt := &pipeline.Runtime{
		Source:   source,
		Counter:  counter,
		Live:     live,
		Stats:    stats,
		Monitor:  recorder,
		CameraID: cfg.GetCameraID(),
	}
	if database != nil {
		rt.Store = database
	}

	if *record {
		w, err := openRecorder(cfg, policy)
		if err != nil {
			log.Fatalf("Failed to open poselog recorder: %v", err)
		}
		defer w.Close()
		log.Printf("recording frames to %s", w.Path())
		rt.Recorder = w
	}

	if cfg.GetShowPreview() && !*noPreview {
		rt.HUD = hud.New(os.Stdout, hud.Options{
			Refresh:   cfg.GetHUDRefresh(),
			Thickness: cfg.GetLineThickness(),
			UpAngle:   policy.UpAngle,
			DownAngle: policy.DownAngle,
		})
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pipeline goroutine. A finite source (replay, pcap) ending takes the
	// whole service down so batch runs exit cleanly.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("pipeline terminated: %v", err)
		}
		log.Print("pipeline routine terminated")
		stop()
	}()

	// Summary worker goroutine.
	if database != nil {
		worker := db.NewSummaryWorker(database, cfg.GetSummaryInterval())
		worker.Start()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			worker.Stop()
			log.Print("summary worker terminated")
		}()
	}

	// HTTP server goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(live, database, cfg).ServeMux()
		monitor.NewWebServer(recorder, stats, policy).RegisterRoutes(mux)
		if database != nil {
			database.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("HTTP server listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// loadConfig reads the tuning file and applies flag overrides.
func loadConfig() *config.TuningConfig {
	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if *exercise != "" {
		cfg.Exercise = exercise
	}
	return cfg
}

// buildSource picks the frame source from -source, or infers one from
// the transport flags when -source is unset.
func buildSource(cfg *config.TuningConfig, policy *workout.Policy) (posestream.Source, error) {
	name := *sourceName
	if name == "" {
		switch {
		case *devMode:
			name = "synthetic"
		case *poselogPath != "":
			name = "replay"
		case *pcapFile != "":
			name = "pcap"
		case *serialPort != "":
			name = "serial"
		case *workerCmd != "":
			name = "worker"
		default:
			name = "udp"
		}
	}

	stats := posestream.NewStreamStats()
	cameraID := cfg.GetCameraID()

	switch name {
	case "synthetic":
		return posestream.NewSyntheticSource(cameraID, policy.Joints), nil

	case "replay":
		if *poselogPath == "" {
			return nil, fmt.Errorf("replay source requires -poselog")
		}
		return posestream.NewReplaySource(*poselogPath, posestream.ReplayOptions{
			Speed:    *replaySpeed,
			NoPacing: *replaySpeed <= 0,
		}), nil

	case "udp":
		return posestream.NewUDPSource(posestream.UDPSourceConfig{
			Address:  fmt.Sprintf(":%d", *udpPort),
			Stats:    stats,
			CameraID: cameraID,
		}), nil

	case "serial":
		if *serialPort == "" {
			return nil, fmt.Errorf("serial source requires -serial-port")
		}
		return posestream.NewSerialSource(posestream.SerialSourceConfig{
			Path:     *serialPort,
			Baud:     *baud,
			Stats:    stats,
			CameraID: cameraID,
		}), nil

	case "worker":
		if *workerCmd == "" {
			return nil, fmt.Errorf("worker source requires -worker-cmd")
		}
		return posestream.NewWorkerSource(posestream.WorkerSourceConfig{
			Command:  strings.Fields(*workerCmd),
			Stats:    stats,
			CameraID: cameraID,
		}), nil

	case "pcap":
		if *pcapFile == "" {
			return nil, fmt.Errorf("pcap source requires -pcap")
		}
		return posestream.NewPCAPSource(*pcapFile, *udpPort, *replaySpeed > 0, *replaySpeed, stats)

	default:
		return nil, fmt.Errorf("unknown source %q", name)
	}
}

// openRecorder creates a poselog writer in the configured directory.
func openRecorder(cfg *config.TuningConfig, policy *workout.Policy) (*poselog.Writer, error) {
	dir := cfg.GetPoselogDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create poselog dir: %w", err)
	}

	now := time.Now()
	path, err := poselog.ResolvePath(dir, poselog.DefaultFilename(cfg.GetCameraID(), string(policy.Exercise), now))
	if err != nil {
		return nil, err
	}

	return poselog.NewWriter(path, poselog.Header{
		CameraID:     cfg.GetCameraID(),
		Exercise:     string(policy.Exercise),
		CreatedNanos: now.UnixNano(),
	})
}

// setupDebugLogs wires the pipeline's log streams. REPCOUNT_DEBUG_LOG
// routes everything to one file; otherwise ops goes to stderr and the
// diag/trace streams stay off unless their env vars name a file.
func setupDebugLogs() {
	if path := os.Getenv("REPCOUNT_DEBUG_LOG"); path != "" {
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open debug log %s: %v", path, err)
		}
		pipeline.SetLegacyLogger(f)
		return
	}

	writers := pipeline.LogWriters{Ops: os.Stderr}
	if path := os.Getenv("REPCOUNT_DIAG_LOG"); path != "" {
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open diag log %s: %v", path, err)
		}
		writers.Diag = f
	}
	if path := os.Getenv("REPCOUNT_TRACE_LOG"); path != "" {
		f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Failed to open trace log %s: %v", path, err)
		}
		writers.Trace = f
	}
	pipeline.SetLogWriters(writers)
}
