package processing

import (
	"sync"
	"time"

	"scrollcam-go/internal/grid"
	"scrollcam-go/internal/thumb"
)

// CoverageStats summarizes the segments found in the most recent frame plus
// totals since the last Reset.
type CoverageStats struct {
	Frames        uint64  `json:"frames"`
	LastSeq       uint64  `json:"last_seq"`
	Cells         int     `json:"cells"`
	Segments      int     `json:"segments"`
	FullSegments  int     `json:"full_segments"`
	MeanSize      float64 `json:"mean_size"`
	TotalSegments uint64  `json:"total_segments"`
}

type Aggregator struct {
	mu    sync.Mutex
	stats CoverageStats
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddResults folds one rendered frame into the statistics.
func (a *Aggregator) AddResults(seq uint64, results []grid.CellResult) {
	segments := 0
	full := 0
	sum := 0.0
	for i := range results {
		seg := results[i].Segment
		switch seg.Kind {
		case thumb.FullSegment:
			full++
			segments++
			sum += seg.Size
		case thumb.PartialSegment:
			segments++
			sum += seg.Size
		}
	}
	mean := 0.0
	if segments > 0 {
		mean = sum / float64(segments)
	}

	a.mu.Lock()
	a.stats.Frames++
	a.stats.LastSeq = seq
	a.stats.Cells = len(results)
	a.stats.Segments = segments
	a.stats.FullSegments = full
	a.stats.MeanSize = mean
	a.stats.TotalSegments += uint64(segments)
	a.mu.Unlock()
}

func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.stats = CoverageStats{}
	a.mu.Unlock()
}

func (a *Aggregator) Snapshot() CoverageStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
