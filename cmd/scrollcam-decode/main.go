package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"scrollcam-go/internal/config"
	"scrollcam-go/internal/grid"
	"scrollcam-go/internal/ingest"
	"scrollcam-go/internal/output"
	"scrollcam-go/internal/processing"
	"scrollcam-go/internal/surface"
	"scrollcam-go/internal/thumb"
	"scrollcam-go/internal/types"
)

type options struct {
	stride      int
	rows        int
	displaySize int
	threshold   float64
	all         bool
	csvDir      string
}

func main() {
	path := flag.String("path", "", "Path to a .cbor frame file, a directory of them, or a rawlog .bin file")
	limit := flag.Int("limit", 5, "Max number of image messages to decode")
	var opts options
	flag.IntVar(&opts.stride, "sample-stride", config.DefaultSampleStride, "Pixels between sample points")
	flag.IntVar(&opts.rows, "rows", config.DefaultRows, "Grid rows")
	flag.IntVar(&opts.displaySize, "display-size", config.DefaultDisplaySize, "Widget width in display pixels")
	flag.Float64Var(&opts.threshold, "threshold", config.DefaultThreshold, "Darkness threshold (0-255)")
	flag.BoolVar(&opts.all, "all", false, "Print cells without a dark run too")
	flag.StringVar(&opts.csvDir, "csv-dir", "", "Also write each decoded frame's runs as CSV here")
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -path")
	}

	payloads, err := readPayloads(*path)
	if err != nil {
		log.Fatalf("read %s: %v", *path, err)
	}

	counts := map[string]int{}
	ts := processing.Timestamp()
	for _, p := range payloads {
		f, err := ingest.DecodeFrame(p.data)
		if errors.Is(err, ingest.ErrNotImage) {
			raw, _ := ingest.Decode(p.data)
			counts[raw.Type]++
			fmt.Printf("%s: %s message\n", p.name, raw.Type)
			continue
		}
		if err != nil {
			counts["invalid"]++
			log.Printf("decode %s: %v", p.name, err)
			continue
		}
		counts["image"]++
		if counts["image"] > *limit {
			f.Release()
			continue
		}
		if err := describe(p.name, f, opts, ts); err != nil {
			log.Printf("%s: %v", p.name, err)
		}
		f.Release()
	}

	fmt.Printf("summary: image=%d other=%d invalid=%d\n", counts["image"], len(payloads)-counts["image"]-counts["invalid"], counts["invalid"])
}

func describe(name string, f *types.Frame, opts options, ts string) error {
	table := surface.NewTable()
	g := grid.New(opts.stride, opts.rows, opts.displaySize)
	if err := g.Init(f.Width, f.Height, table); err != nil {
		return err
	}
	if err := g.Render(f, opts.threshold); err != nil {
		return err
	}
	layout := g.Layout()
	fmt.Printf("image: %s frame=%d %dx%d grid=%dx%d\n", name, f.Seq, f.Width, f.Height, layout.Cols, layout.Rows)

	found := 0
	for _, res := range g.Results() {
		if res.Segment.Kind == thumb.NoSegment && !opts.all {
			continue
		}
		if res.Segment.Kind != thumb.NoSegment {
			found++
		}
		fmt.Printf("  cell r%d c%d: run start=%d length=%d %s thumb=(%.3f, %.3f)\n",
			res.Cell.Row, res.Cell.Col, res.Run.Start, res.Run.Length, res.Segment.Kind, res.Fraction.Offset, res.Fraction.Size)
	}
	fmt.Printf("  %d of %d cells hold a dark run\n", found, layout.Cells())

	if opts.csvDir != "" {
		path, err := output.WriteRuns(opts.csvDir, ts, f.Seq, layout, opts.threshold, g.Results())
		if err != nil {
			return err
		}
		fmt.Printf("  wrote %s\n", path)
	}
	return nil
}

type payload struct {
	name string
	data []byte
}

func readPayloads(path string) ([]payload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() && filepath.Ext(path) == ".bin" {
		return readRawLog(path)
	}
	files, err := listFiles(path, info)
	if err != nil {
		return nil, err
	}
	out := make([]payload, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			log.Printf("read %s: %v", file, err)
			continue
		}
		out = append(out, payload{name: file, data: data})
	}
	return out, nil
}

func readRawLog(path string) ([]payload, error) {
	reader, err := output.OpenRawLog(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	var out []payload
	for i := 0; ; i++ {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, payload{name: fmt.Sprintf("%s#%d", filepath.Base(path), i), data: record.Payload})
	}
}

func listFiles(path string, info os.FileInfo) ([]string, error) {
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".cbor" {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
