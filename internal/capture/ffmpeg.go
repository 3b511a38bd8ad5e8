package capture

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log"
	"os/exec"
	"strings"
	"time"

	"scrollcam-go/internal/types"
)

const megabyte = 1024 * 1024

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJpeg is a bufio.SplitFunc yielding one JPEG image per token from an
// MJPEG byte stream. Bytes outside SOI..EOI are skipped.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// FFmpegSource decodes any input ffmpeg understands, scaled to Width x Height.
type FFmpegSource struct {
	Binary      string
	Input       string
	InputFormat string
	Width       int
	Height      int
	FPS         float64
	// Realtime paces file inputs at their native rate (-re).
	Realtime bool
}

func (s *FFmpegSource) args() []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	if s.Realtime {
		args = append(args, "-re")
	}
	if s.InputFormat != "" {
		args = append(args, "-f", s.InputFormat)
	}
	filter := fmt.Sprintf("scale=%d:%d", s.Width, s.Height)
	if s.FPS > 0 {
		filter += fmt.Sprintf(",fps=%g", s.FPS)
	}
	return append(args, "-i", s.Input, "-vf", filter, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
}

func (s *FFmpegSource) Frames(ctx context.Context) (<-chan *types.Frame, error) {
	if s.Input == "" {
		return nil, fmt.Errorf("ffmpeg: no input")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg: invalid frame size %dx%d", s.Width, s.Height)
	}
	bin := s.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, s.args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	log.Printf("ffmpeg capture started: %s %dx%d", s.Input, s.Width, s.Height)

	out := make(chan *types.Frame, 1)
	go func() {
		defer close(out)

		pool := types.NewFramePool(s.Width, s.Height)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, megabyte), 64*megabyte)
		scanner.Split(SplitJpeg)

		var seq uint64
		var decodeErrors int
		for scanner.Scan() {
			f := pool.Get()
			if err := DecodeJPEG(scanner.Bytes(), f); err != nil {
				f.Release()
				decodeErrors++
				if decodeErrors == 1 || decodeErrors%100 == 0 {
					log.Printf("ffmpeg frame decode failed (%d total): %v", decodeErrors, err)
				}
				continue
			}
			seq++
			f.Seq = seq
			f.Timestamp = time.Now()
			if !types.OfferLatest(ctx, out, f) {
				break
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			log.Printf("ffmpeg read error: %v", err)
		}
		// unblock ffmpeg if we stopped reading early
		stdout.Close()
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			log.Printf("ffmpeg exited: %v: %s", err, strings.TrimSpace(stderr.String()))
		} else {
			log.Printf("ffmpeg capture finished after %d frames", seq)
		}
	}()
	return out, nil
}

// DecodeJPEG decodes one JPEG image into f.
func DecodeJPEG(data []byte, f *types.Frame) error {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return drawInto(f, img)
}
