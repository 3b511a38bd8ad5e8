package simulator

import (
	"context"
	"testing"
	"time"

	"scrollcam-go/internal/detect"
	"scrollcam-go/internal/types"
)

func TestSceneHasDarkAndLight(t *testing.T) {
	f := &types.Frame{Width: 160, Height: 120, Pix: make([]byte, 160*120*types.BytesPerPixel)}
	NewScene(160, 120, 1).Draw(f, 0)

	mask := detect.SampleMask(f, 4, 127.5, nil)
	dark := mask.Count()
	if dark == 0 || dark == len(mask.Dark) {
		t.Fatalf("expected a mix of dark and light samples, got %d of %d", dark, len(mask.Dark))
	}
}

func TestSceneMoves(t *testing.T) {
	a := &types.Frame{Width: 64, Height: 48, Pix: make([]byte, 64*48*types.BytesPerPixel)}
	b := &types.Frame{Width: 64, Height: 48, Pix: make([]byte, 64*48*types.BytesPerPixel)}
	scene := NewScene(64, 48, 1)
	scene.Draw(a, 0)
	scene.Draw(b, 2)
	same := true
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("scene did not change over time")
	}
}

func TestSourceStreamsFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &Source{Width: 32, Height: 24, FPS: 200, Seed: 3}
	frames, err := src.Frames(ctx)
	if err != nil {
		t.Fatalf("Frames: %v", err)
	}

	deadline := time.After(5 * time.Second)
	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case f := <-frames:
			if f.Width != 32 || f.Height != 24 || len(f.Pix) != 32*24*4 {
				t.Fatalf("unexpected frame %dx%d len %d", f.Width, f.Height, len(f.Pix))
			}
			if f.Seq <= last {
				t.Fatalf("sequence went backwards: %d after %d", f.Seq, last)
			}
			last = f.Seq
			f.Release()
		case <-deadline:
			t.Fatalf("timed out waiting for frames")
		}
	}

	cancel()
	for range frames {
	}
}
