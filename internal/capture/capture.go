// Package capture reads frames from real video inputs: an ffmpeg pipe for
// files, streams and v4l2 devices, and an OpenCV camera behind the gocv tag.
package capture

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"scrollcam-go/internal/types"
)

var ErrCameraUnavailable = errors.New("camera capture not enabled; build with -tags gocv")

// drawInto copies img into f, converting to RGBA. Sizes must match.
func drawInto(f *types.Frame, img image.Image) error {
	b := img.Bounds()
	if b.Dx() != f.Width || b.Dy() != f.Height {
		return fmt.Errorf("decoded image %dx%d, want %dx%d", b.Dx(), b.Dy(), f.Width, f.Height)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == f.Width*types.BytesPerPixel {
		copy(f.Pix, rgba.Pix)
		return nil
	}
	dst := &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * types.BytesPerPixel,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return nil
}
