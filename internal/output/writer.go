package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"scrollcam-go/internal/grid"
	"scrollcam-go/internal/surface"
)

// WriteRuns stores the per-cell detection results of one frame as CSV and
// returns the file path.
func WriteRuns(
	outputDir string,
	runTimestamp string,
	seq uint64,
	layout surface.Layout,
	threshold float64,
	results []grid.CellResult,
) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_runs_%06d.csv", runTimestamp, seq))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)

	_, _ = fmt.Fprintf(w, "# frame=%d size=%dx%d stride=%d grid=%dx%d threshold=%.1f\n",
		seq, layout.FrameWidth, layout.FrameHeight, layout.SampleStride, layout.Cols, layout.Rows, threshold)
	_, _ = fmt.Fprintln(w, "row, col, start, length, segment, fraction_offset, fraction_size")
	for _, res := range results {
		_, _ = fmt.Fprintf(
			w,
			"%d, %d, %d, %d, %s, %.6f, %.6f\n",
			res.Cell.Row,
			res.Cell.Col,
			res.Run.Start,
			res.Run.Length,
			res.Segment.Kind,
			res.Fraction.Offset,
			res.Fraction.Size,
		)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return filename, nil
}
