package pipeline

import (
	"context"
	"log"

	"scrollcam-go/internal/types"
)

// Fallback starts Primary and switches to Secondary when Primary fails to
// start.
type Fallback struct {
	Primary   Source
	Secondary Source
}

func (f Fallback) Frames(ctx context.Context) (<-chan *types.Frame, error) {
	frames, err := f.Primary.Frames(ctx)
	if err == nil || f.Secondary == nil {
		return frames, err
	}
	log.Printf("failed to start source: %v; falling back to simulator", err)
	return f.Secondary.Frames(ctx)
}
