//go:build !gocv

package capture

import (
	"context"

	"scrollcam-go/internal/types"
)

type CameraSource struct {
	Device string
	Width  int
	Height int
	FPS    float64
}

func (c *CameraSource) Frames(_ context.Context) (<-chan *types.Frame, error) {
	return nil, ErrCameraUnavailable
}
