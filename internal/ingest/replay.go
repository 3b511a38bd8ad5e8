package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"scrollcam-go/internal/output"
	"scrollcam-go/internal/types"
)

// ReplaySource plays back a raw log of frame messages at a fixed rate.
type ReplaySource struct {
	Path     string
	FPS      float64
	Loop     bool
	LogEvery int
}

func (s *ReplaySource) Frames(ctx context.Context) (<-chan *types.Frame, error) {
	reader, err := output.OpenRawLog(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	logEvery := s.LogEvery
	if logEvery < 1 {
		logEvery = 1
	}
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}

	out := make(chan *types.Frame, 1)
	go func() {
		defer close(out)
		defer func() { _ = reader.Close() }()

		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()

		conv := newConverter(logEvery)
		played := 0
		for {
			rec, err := reader.Next()
			if errors.Is(err, io.EOF) {
				if !s.Loop || played == 0 {
					log.Printf("replay finished after %d frames", played)
					return
				}
				_ = reader.Close()
				reader, err = output.OpenRawLog(s.Path)
				if err != nil {
					log.Printf("replay reopen failed: %v", err)
					return
				}
				continue
			}
			if err != nil {
				log.Printf("replay read failed: %v", err)
				return
			}

			frame, ok := conv.convert(rec.Payload)
			if !ok {
				continue
			}
			played++

			select {
			case <-ctx.Done():
				frame.Release()
				return
			case <-ticker.C:
			}
			if !types.OfferLatest(ctx, out, frame) {
				return
			}
		}
	}()
	return out, nil
}
