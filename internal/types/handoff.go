package types

import "context"

// OfferLatest delivers f on out, evicting and releasing any frame still
// waiting there. It reports false, releasing f, once ctx is done.
func OfferLatest(ctx context.Context, out chan *Frame, f *Frame) bool {
	for {
		select {
		case <-ctx.Done():
			f.Release()
			return false
		case out <- f:
			return true
		default:
		}
		select {
		case stale := <-out:
			stale.Release()
		default:
		}
	}
}
