// Package detect finds the tallest run of dark samples in a vertical strip
// of a frame.
package detect

import (
	"errors"
	"fmt"

	"scrollcam-go/internal/types"
)

// Rec. 709 luma weights.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

var ErrWindowOutOfBounds = errors.New("sampling window outside frame")

// DarkRun is a vertical span in frame pixels. Length 0 means nothing dark
// was sampled.
type DarkRun struct {
	Start  int
	Length int
}

func (r DarkRun) Empty() bool {
	return r.Length <= 0
}

func (r DarkRun) End() int {
	return r.Start + r.Length
}

func Luma(r, g, b uint8) float64 {
	return lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
}

// IsDark reads pixel (x, y) and compares its luma against threshold.
func IsDark(f *types.Frame, x, y int, threshold float64) bool {
	i := f.Offset(x, y)
	return Luma(f.Pix[i], f.Pix[i+1], f.Pix[i+2]) <= threshold
}

// CheckWindow reports whether a strip can be scanned without clamping.
func CheckWindow(f *types.Frame, x, yStart, yEnd, stride int) error {
	switch {
	case stride < 1:
		return fmt.Errorf("%w: stride %d", ErrWindowOutOfBounds, stride)
	case x < 0 || x >= f.Width:
		return fmt.Errorf("%w: x=%d width=%d", ErrWindowOutOfBounds, x, f.Width)
	case yStart < 0 || yEnd > f.Height:
		return fmt.Errorf("%w: y=[%d,%d) height=%d", ErrWindowOutOfBounds, yStart, yEnd, f.Height)
	case len(f.Pix) < f.Width*f.Height*types.BytesPerPixel:
		return fmt.Errorf("%w: buffer holds %d bytes for %dx%d", ErrWindowOutOfBounds, len(f.Pix), f.Width, f.Height)
	}
	return nil
}

// Detect scans samples at x, yStart, yStart+stride, ... < yEnd and returns
// the longest contiguous dark run. Each dark sample counts for stride pixels.
// Ties keep the topmost run. A window that leaves the frame is clamped to it.
func Detect(f *types.Frame, x, yStart, yEnd, stride int, threshold float64) DarkRun {
	best := DarkRun{Start: yStart}
	if stride < 1 || x < 0 || x >= f.Width {
		return best
	}
	if yEnd > f.Height {
		yEnd = f.Height
	}
	y := yStart
	if y < 0 {
		// keep the sample phase of the unclamped window
		y += ((-y + stride - 1) / stride) * stride
	}
	if len(f.Pix) < f.Width*f.Height*types.BytesPerPixel {
		return best
	}

	open := false
	current := DarkRun{}
	for ; y < yEnd; y += stride {
		if IsDark(f, x, y, threshold) {
			if !open {
				current = DarkRun{Start: y, Length: stride}
				open = true
			} else {
				current.Length += stride
			}
			continue
		}
		if open {
			if current.Length > best.Length {
				best = current
			}
			open = false
		}
	}
	if open && current.Length > best.Length {
		best = current
	}
	return best
}
