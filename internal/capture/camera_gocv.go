//go:build gocv

package capture

import (
	"context"
	"fmt"
	"image"
	"log"
	"time"

	"gocv.io/x/gocv"

	"scrollcam-go/internal/types"
)

// CameraSource reads a local camera or video file through OpenCV.
// Device is a numeric index ("0") or a path/URL.
type CameraSource struct {
	Device string
	Width  int
	Height int
	FPS    float64
}

func (c *CameraSource) Frames(ctx context.Context) (<-chan *types.Frame, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("camera: invalid frame size %dx%d", c.Width, c.Height)
	}
	cam, err := gocv.OpenVideoCapture(c.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %q: %w", c.Device, err)
	}
	cam.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	if c.FPS > 0 {
		cam.Set(gocv.VideoCaptureFPS, c.FPS)
	}
	log.Printf("camera %q opened", c.Device)

	out := make(chan *types.Frame, 1)
	go func() {
		defer close(out)
		defer cam.Close()

		raw := gocv.NewMat()
		defer raw.Close()
		scaled := gocv.NewMat()
		defer scaled.Close()
		rgba := gocv.NewMat()
		defer rgba.Close()

		pool := types.NewFramePool(c.Width, c.Height)
		size := image.Pt(c.Width, c.Height)
		var seq uint64
		misses := 0
		for ctx.Err() == nil {
			if ok := cam.Read(&raw); !ok || raw.Empty() {
				misses++
				if misses%100 == 1 {
					log.Printf("camera %q: empty read (%d)", c.Device, misses)
				}
				time.Sleep(10 * time.Millisecond)
				continue
			}
			src := raw
			if raw.Cols() != c.Width || raw.Rows() != c.Height {
				gocv.Resize(raw, &scaled, size, 0, 0, gocv.InterpolationLinear)
				src = scaled
			}
			gocv.CvtColor(src, &rgba, gocv.ColorBGRToRGBA)

			f := pool.Get()
			copy(f.Pix, rgba.ToBytes())
			seq++
			f.Seq = seq
			f.Timestamp = time.Now()
			if !types.OfferLatest(ctx, out, f) {
				return
			}
		}
	}()
	return out, nil
}
