//go:build !gocv

package capture

import (
	"context"
	"errors"
	"testing"
)

func TestCameraStub(t *testing.T) {
	c := &CameraSource{Device: "0", Width: 4, Height: 4}
	if _, err := c.Frames(context.Background()); !errors.Is(err, ErrCameraUnavailable) {
		t.Fatalf("expected ErrCameraUnavailable, got %v", err)
	}
}
