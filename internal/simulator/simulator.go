// Package simulator produces synthetic camera frames: dark shapes drifting
// over a light, slightly noisy background.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"scrollcam-go/internal/types"
)

type Source struct {
	Width  int
	Height int
	FPS    float64
	Seed   int64
}

func (s *Source) Frames(ctx context.Context) (<-chan *types.Frame, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("simulator: invalid frame size %dx%d", s.Width, s.Height)
	}
	fps := s.FPS
	if fps <= 0 {
		fps = 30
	}
	out := make(chan *types.Frame, 1)
	go func() {
		defer close(out)

		scene := NewScene(s.Width, s.Height, s.Seed)
		pool := types.NewFramePool(s.Width, s.Height)
		frameInterval := time.Duration(float64(time.Second) / fps)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		start := time.Now()
		var seq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				seq++
				f := pool.Get()
				f.Seq = seq
				f.Timestamp = now
				scene.Draw(f, now.Sub(start).Seconds())

				if !types.OfferLatest(ctx, out, f) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Scene draws a moving blob, a swinging bar and a wave band.
type Scene struct {
	width  int
	height int
	noise  []uint8
}

func NewScene(width, height int, seed int64) *Scene {
	rng := rand.New(rand.NewSource(seed))
	noise := make([]uint8, width*height)
	for i := range noise {
		noise[i] = uint8(rng.Intn(24))
	}
	return &Scene{width: width, height: height, noise: noise}
}

// Draw renders the scene at time t (seconds) into f.
func (s *Scene) Draw(f *types.Frame, t float64) {
	w := float64(s.width)
	h := float64(s.height)

	blobX := w * (0.5 + 0.35*math.Sin(t*0.7))
	blobY := h * (0.5 + 0.3*math.Cos(t*0.9))
	blobR := math.Min(w, h) * 0.18
	blobR2 := blobR * blobR

	barX := w * (0.5 + 0.4*math.Sin(t*0.3+1))
	barHalf := w * 0.03

	waveAmp := h * 0.1
	waveY := h * 0.75

	for y := 0; y < s.height; y++ {
		fy := float64(y)
		row := y * s.width
		for x := 0; x < s.width; x++ {
			fx := float64(x)
			dx := fx - blobX
			dy := fy - blobY

			dark := dx*dx+dy*dy <= blobR2
			if !dark && math.Abs(fx-barX) <= barHalf && fy > h*0.1 && fy < h*0.6 {
				dark = true
			}
			if !dark {
				band := waveY + waveAmp*math.Sin(fx/w*4*math.Pi+t*1.3)
				dark = math.Abs(fy-band) <= h*0.04
			}

			n := s.noise[row+x]
			var r, g, b uint8
			if dark {
				r, g, b = 30+n, 25+n, 40+n
			} else {
				r, g, b = 210+n, 215+n, 205+n
			}
			i := (row + x) * types.BytesPerPixel
			f.Pix[i] = r
			f.Pix[i+1] = g
			f.Pix[i+2] = b
			f.Pix[i+3] = 255
		}
	}
}
