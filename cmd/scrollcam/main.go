package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"golang.org/x/term"

	"scrollcam-go/internal/capture"
	"scrollcam-go/internal/config"
	"scrollcam-go/internal/ingest"
	"scrollcam-go/internal/output"
	"scrollcam-go/internal/pipeline"
	"scrollcam-go/internal/server"
	"scrollcam-go/internal/simulator"
	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/terminal"
)

func main() {
	var (
		port           = flag.Int("port", 8888, "HTTP port for the web UI")
		surfaceName    = flag.String("surface", "web", "Widget surface: web, term or both")
		sourceName     = flag.String("source", "sim", "Frame source: sim, zmq, replay, ffmpeg or camera")
		endpoint       = flag.String("endpoint", "tcp://localhost:31001", "ZMQ endpoint to pull frames from")
		replayPath     = flag.String("replay", "", "Raw log file to replay (source replay)")
		inputPath      = flag.String("input", "", "ffmpeg input: file, URL or device (source ffmpeg)")
		inputFormat    = flag.String("input-format", "", "ffmpeg input format, e.g. v4l2 or avfoundation")
		cameraDevice   = flag.String("camera-device", "0", "Camera index or path (source camera)")
		width          = flag.Int("width", config.DefaultWidth, "Frame width for sim, ffmpeg and camera sources")
		height         = flag.Int("height", config.DefaultHeight, "Frame height for sim, ffmpeg and camera sources")
		fps            = flag.Float64("fps", config.DefaultFPS, "Display ticks (and source frames) per second")
		sampleStride   = flag.Int("sample-stride", config.DefaultSampleStride, "Pixels between sample points")
		rows           = flag.Int("rows", config.DefaultRows, "Grid rows")
		displaySize    = flag.Int("display-size", config.DefaultDisplaySize, "Widget width in display pixels")
		threshold      = flag.Float64("threshold", config.DefaultThreshold, "Initial darkness threshold (0-255)")
		debugOverlay   = flag.Bool("debug", false, "Start with the sample-point overlay on")
		rawLogEnabled  = flag.Bool("raw-log", false, "Write raw CBOR messages to disk (source zmq)")
		rawLogDir      = flag.String("raw-log-dir", "rawlog", "Directory for raw ingest logs")
		outputDir      = flag.String("output-dir", "output", "Directory for saved runs")
		ingestLogEvery = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
		ingestFallback = flag.Bool("ingest-fallback", true, "Fall back to the simulator when the source fails to start")
		logFile        = flag.String("log-file", "scrollcam.log", "Log file used while the terminal surface is active")
		statsEvery     = flag.Duration("stats-every", 30*time.Second, "Interval of loop statistics log lines")
	)
	flag.Parse()

	cfg := config.AppConfig{
		Port:           *port,
		Surface:        *surfaceName,
		Source:         *sourceName,
		Endpoint:       *endpoint,
		ReplayPath:     *replayPath,
		InputPath:      *inputPath,
		InputFormat:    *inputFormat,
		CameraDevice:   *cameraDevice,
		Width:          *width,
		Height:         *height,
		FPS:            *fps,
		IngestLogEvery: *ingestLogEvery,
		IngestFallback: *ingestFallback,
		SampleStride:   *sampleStride,
		Rows:           *rows,
		DisplaySize:    *displaySize,
		Threshold:      *threshold,
		Debug:          *debugOverlay,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		OutputDir:      *outputDir,
		LogFile:        *logFile,
		StatsEvery:     *statsEvery,
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if usesTerminal(cfg.Surface) && !term.IsTerminal(int(os.Stdin.Fd())) {
		if cfg.Surface == "term" {
			log.Fatalf("surface term needs an interactive terminal")
		}
		log.Printf("stdin is not a terminal; using the web surface only")
		cfg.Surface = "web"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var recorder ingest.RawRecorder
	if cfg.RawLogEnabled && cfg.Source == "zmq" {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_cbor")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		log.Printf("recording raw messages to %s", writer.Path())
		recorder = writer
		defer func() {
			if err := writer.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
	}
	src := buildSource(cfg, recorder)

	var surfaces surface.Multi
	var web *server.WebSurface
	if usesWeb(cfg.Surface) {
		web = server.NewWebSurface(16)
		surfaces = append(surfaces, web)
	}
	var tty *terminal.Surface
	if usesTerminal(cfg.Surface) {
		closeLog, err := setupLogging(cfg.LogFile)
		if err != nil {
			log.Fatalf("log file: %v", err)
		}
		defer closeLog()

		tty, err = terminal.Open()
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer tty.Close()
		defer func() {
			if r := recover(); r != nil {
				tty.Close()
				fmt.Fprintf(os.Stderr, "scrollcam crashed: %v\n%s\n", r, debug.Stack())
				os.Exit(1)
			}
		}()
		surfaces = append(surfaces, tty)
	}

	var target surface.Surface = surfaces
	if len(surfaces) == 1 {
		target = surfaces[0]
	}
	runner := pipeline.NewRunner(cfg, target)

	serverDone := make(chan struct{})
	if web != nil {
		srv := server.New(cfg, server.Hooks{
			Status: func() map[string]any {
				status := runner.Status()
				if metrics, ok := status["metrics"].(map[string]any); ok {
					metrics["ws_dropped_total"] = web.Dropped()
					metrics["ingest_decode_failures_total"] = ingest.DecodeFailures()
					decodeCount, decodeNanos := ingest.DecodeTiming()
					metrics["ingest_decode_total"] = decodeCount
					metrics["ingest_decode_nanos_total"] = decodeNanos
				}
				return status
			},
			Snapshot: web.Snapshot,
			Config: func() map[string]any {
				p := runner.Params()
				payload := map[string]any{
					"type":          "config",
					"sample_stride": cfg.SampleStride,
					"rows":          cfg.Rows,
					"display_size":  cfg.DisplaySize,
					"threshold":     p.Threshold,
					"debug":         p.Debug,
				}
				if grid, ok := web.Grid(); ok {
					payload["grid"] = grid
				}
				return payload
			},
			Command: runner.Submit,
		})
		go func() {
			defer close(serverDone)
			if err := srv.Run(ctx, web.Messages()); err != nil {
				log.Printf("server stopped: %v", err)
				stop()
			}
		}()
	} else {
		close(serverDone)
	}

	if tty != nil {
		go tty.Input(ctx, runner.Submit)
	}

	log.Printf("scrollcam: source=%s surface=%s stride=%d rows=%d threshold=%.1f",
		cfg.Source, cfg.Surface, cfg.SampleStride, cfg.Rows, cfg.Threshold)
	if err := runner.Run(ctx, src); err != nil {
		log.Printf("draw loop stopped: %v", err)
	} else if tty == nil && ctx.Err() == nil {
		log.Printf("source finished; web UI stays up until interrupted")
		<-ctx.Done()
	}
	stop()
	<-serverDone
}

func usesWeb(name string) bool {
	return name == "web" || name == "both"
}

func usesTerminal(name string) bool {
	return name == "term" || name == "both"
}

func buildSource(cfg config.AppConfig, recorder ingest.RawRecorder) pipeline.Source {
	sim := &simulator.Source{Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS, Seed: time.Now().UnixNano()}

	var primary pipeline.Source
	switch cfg.Source {
	case "sim":
		return sim
	case "replay":
		return &ingest.ReplaySource{Path: cfg.ReplayPath, FPS: cfg.FPS, Loop: true, LogEvery: cfg.IngestLogEvery}
	case "zmq":
		primary = &ingest.Source{Endpoint: cfg.Endpoint, LogEvery: cfg.IngestLogEvery, Recorder: recorder}
	case "ffmpeg":
		primary = &capture.FFmpegSource{
			Input:       cfg.InputPath,
			InputFormat: cfg.InputFormat,
			Width:       cfg.Width,
			Height:      cfg.Height,
			FPS:         cfg.FPS,
			Realtime:    cfg.InputFormat == "",
		}
	case "camera":
		primary = &capture.CameraSource{Device: cfg.CameraDevice, Width: cfg.Width, Height: cfg.Height, FPS: cfg.FPS}
	}
	if cfg.IngestFallback {
		return pipeline.Fallback{Primary: primary, Secondary: sim}
	}
	return primary
}
