package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/schollz/progressbar/v3"

	"scrollcam-go/internal/output"
)

const recordHeaderSize = 12

func main() {
	var (
		path     = flag.String("path", "", "Path to rawlog .bin file")
		limit    = flag.Int("limit", 1, "Number of records to print (0 = all)")
		skip     = flag.Int("skip", 0, "Records to skip before printing")
		progress = flag.Bool("progress", true, "Show a progress bar on stderr")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("path is required")
	}

	info, err := os.Stat(*path)
	if err != nil {
		log.Fatalf("stat rawlog: %v", err)
	}
	reader, err := output.OpenRawLog(*path)
	if err != nil {
		log.Fatalf("open rawlog: %v", err)
	}
	defer reader.Close()

	var bar *progressbar.ProgressBar
	if *progress {
		bar = progressbar.NewOptions64(info.Size()-int64(len(output.RawLogMagic)),
			progressbar.OptionSetDescription("rawlog"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	counts := map[string]int{}
	index := 0
	printed := 0
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("record %d: %v", index, err)
		}
		if bar != nil {
			_ = bar.Add(recordHeaderSize + len(record.Payload))
		}

		var decoded any
		if err := cbor.Unmarshal(record.Payload, &decoded); err != nil {
			log.Printf("record %d: CBOR decode error: %v", index, err)
			counts["invalid"]++
			index++
			continue
		}
		normalized := output.NormalizeJSONValue(decoded)
		kind := "unknown"
		if m, ok := normalized.(map[string]any); ok {
			if s, ok := m["type"].(string); ok {
				kind = s
			}
		}
		counts[kind]++

		if index >= *skip && (*limit <= 0 || printed < *limit) {
			pretty, err := output.MarshalJSON(normalized, "  ")
			if err != nil {
				log.Printf("record %d: JSON encode error: %v", index, err)
			} else {
				fmt.Printf("# record %d timestamp=%s size=%d\n", index, record.Time.Format(time.RFC3339Nano), len(record.Payload))
				fmt.Println(string(pretty))
				printed++
			}
		}
		index++
	}
	if bar != nil {
		_ = bar.Finish()
	}

	summary, _ := output.MarshalJSON(counts, "")
	fmt.Printf("# %d records: %s\n", index, summary)
}
