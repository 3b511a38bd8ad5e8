package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"

	"scrollcam-go/internal/capture"
	"scrollcam-go/internal/config"
	"scrollcam-go/internal/ingest"
	"scrollcam-go/internal/output"
	"scrollcam-go/internal/pipeline"
	"scrollcam-go/internal/simulator"
)

func main() {
	var (
		bind          = flag.String("bind", "tcp://*:31001", "ZMQ PUSH bind address")
		sourceName    = flag.String("source", "sim", "Frame source: sim or ffmpeg")
		inputPath     = flag.String("input", "", "ffmpeg input: file, URL or device")
		inputFormat   = flag.String("input-format", "", "ffmpeg input format")
		width         = flag.Int("width", config.DefaultWidth, "Frame width")
		height        = flag.Int("height", config.DefaultHeight, "Frame height")
		fps           = flag.Float64("fps", config.DefaultFPS, "Frames per second")
		count         = flag.Int("count", 0, "Stop after this many frames (0 = unlimited)")
		rawLogEnabled = flag.Bool("raw-log", false, "Also record every sent message")
		rawLogDir     = flag.String("raw-log-dir", "rawlog", "Directory for the recording")
		logEvery      = flag.Int("log-every", 300, "Log every Nth sent frame")
	)
	flag.Parse()

	var src pipeline.Source
	switch *sourceName {
	case "sim":
		src = &simulator.Source{Width: *width, Height: *height, FPS: *fps, Seed: time.Now().UnixNano()}
	case "ffmpeg":
		if *inputPath == "" {
			log.Fatal("source ffmpeg requires -input")
		}
		src = &capture.FFmpegSource{Input: *inputPath, InputFormat: *inputFormat, Width: *width, Height: *height, FPS: *fps, Realtime: *inputFormat == ""}
	default:
		log.Fatalf("unknown source %q", *sourceName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	socket, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		log.Fatalf("zmq socket: %v", err)
	}
	defer socket.Close()
	if err := socket.SetLinger(time.Second); err != nil {
		log.Fatalf("zmq linger: %v", err)
	}
	if err := socket.SetSndtimeo(250 * time.Millisecond); err != nil {
		log.Fatalf("zmq send timeout: %v", err)
	}
	if err := socket.SetSndhwm(4); err != nil {
		log.Fatalf("zmq hwm: %v", err)
	}
	if err := socket.Bind(*bind); err != nil {
		log.Fatalf("zmq bind %s: %v", *bind, err)
	}
	log.Printf("publishing %s frames on %s", *sourceName, *bind)

	var recorder *output.RawLogWriter
	if *rawLogEnabled {
		recorder, err = output.NewRawLogWriter(*rawLogDir, "publish_cbor")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		defer recorder.Close()
		log.Printf("recording to %s", recorder.Path())
	}

	send := func(payload []byte) error {
		if recorder != nil {
			if err := recorder.Record(payload); err != nil {
				log.Printf("raw record failed: %v", err)
			}
		}
		_, err := socket.SendBytes(payload, 0)
		return err
	}

	start, err := ingest.EncodeMeta("start", map[string]any{"width": *width, "height": *height, "fps": *fps, "source": *sourceName})
	if err == nil {
		err = send(start)
	}
	if err != nil {
		log.Printf("send start: %v", err)
	}

	frames, err := src.Frames(ctx)
	if err != nil {
		log.Fatalf("start source: %v", err)
	}
	sent, dropped := 0, 0
	for f := range frames {
		payload, err := ingest.EncodeFrame(f)
		f.Release()
		if err != nil {
			log.Printf("encode frame: %v", err)
			continue
		}
		if err := send(payload); err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				// no puller connected, or it is behind
				dropped++
				continue
			}
			log.Printf("send frame: %v", err)
			continue
		}
		sent++
		if *logEvery > 0 && sent%*logEvery == 0 {
			log.Printf("sent %d frames", sent)
		}
		if *count > 0 && sent >= *count {
			stop()
			break
		}
	}

	end, err := ingest.EncodeMeta("end", map[string]any{"frames": sent})
	if err == nil {
		err = send(end)
	}
	if err != nil {
		log.Printf("send end: %v", err)
	}
	log.Printf("published %d frames, %d dropped", sent, dropped)
}
