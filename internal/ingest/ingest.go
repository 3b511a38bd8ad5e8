package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"scrollcam-go/internal/processing"
	"scrollcam-go/internal/types"
)

const recvTimeout = 250 * time.Millisecond

// maxDimension bounds width and height of incoming images.
const maxDimension = 1 << 14

// RawRecorder receives every message exactly as it came off the socket.
type RawRecorder interface {
	Record(payload []byte) error
}

var decMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
)

func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

func DecodeTiming() (uint64, uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

// Source pulls CBOR frame messages from a ZMQ PUSH peer.
// Expected message shape:
// { "type": "image", "frame_id": <int>, "timestamp": <float>, "width": <int>,
//   "height": <int>, "format": "rgba"|"rgb"|"gray", "pixels": <bytes or tag 40> }
type Source struct {
	Endpoint string
	LogEvery int
	Recorder RawRecorder
}

func (s *Source) Frames(ctx context.Context) (<-chan *types.Frame, error) {
	logEvery := s.LogEvery
	if logEvery < 1 {
		logEvery = 1
	}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("create zmq socket: %w", err)
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("set receive timeout: %w", err)
	}
	if err := socket.Connect(s.Endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connect %s: %w", s.Endpoint, err)
	}

	out := make(chan *types.Frame, 1)
	go func() {
		defer close(out)
		defer socket.Close()

		conv := newConverter(logEvery)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				logEveryN(logEvery, "ingest recv error: %v", err)
				continue
			}
			if s.Recorder != nil {
				if err := s.Recorder.Record(msg); err != nil {
					logEveryN(logEvery, "ingest raw record failed: %v", err)
				}
			}

			frame, ok := conv.convert(msg)
			if !ok {
				continue
			}
			if !types.OfferLatest(ctx, out, frame) {
				return
			}
		}
	}()

	return out, nil
}

// converter turns encoded messages into pooled frames. The pool is created
// from the first image that converts; later images of another size are dropped.
type converter struct {
	logEvery int
	pool     *types.FramePool
}

func newConverter(logEvery int) *converter {
	return &converter{logEvery: logEvery}
}

func (c *converter) convert(msg []byte) (*types.Frame, bool) {
	start := time.Now()
	raw, ok := decodeMessage(msg, c.logEvery)
	decodeCount.Add(1)
	decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	if !ok {
		decodeFailures.Add(1)
		return nil, false
	}
	if raw.Type != "image" {
		log.Printf("ingest %s message: %v", raw.Type, raw.Meta)
		return nil, false
	}
	pool := c.pool
	if pool == nil {
		pool = types.NewFramePool(raw.Image.Width, raw.Image.Height)
	}
	frame, err := processing.ProcessRawFrame(raw.Image, pool)
	if err != nil {
		decodeFailures.Add(1)
		logEveryN(c.logEvery, "ingest frame dropped: %v", err)
		return nil, false
	}
	c.pool = pool
	return frame, true
}

var ErrNotImage = errors.New("not an image message")

func decodeMessage(msg []byte, logEvery int) (types.RawMessage, bool) {
	raw, err := Decode(msg)
	if err != nil {
		logEveryN(logEvery, "ingest %v", err)
		return types.RawMessage{}, false
	}
	return raw, true
}

// Decode parses one wire message. Messages other than images carry their
// whole map in Meta.
func Decode(msg []byte) (types.RawMessage, error) {
	var payload map[string]any
	if err := decMode.Unmarshal(msg, &payload); err != nil {
		return types.RawMessage{}, fmt.Errorf("CBOR decode error: %w", err)
	}

	msgType, _ := payload["type"].(string)
	if msgType != "image" {
		if msgType == "" {
			return types.RawMessage{}, errors.New("message without type")
		}
		return types.RawMessage{Type: msgType, Meta: payload}, nil
	}

	frameID, err := toInt(payload["frame_id"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid frame_id: %w", err)
	}
	timestamp, err := toFloat(payload["timestamp"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	width, err := toInt(payload["width"])
	if err != nil || width < 1 || width > maxDimension {
		return types.RawMessage{}, fmt.Errorf("invalid width: %v", payload["width"])
	}
	height, err := toInt(payload["height"])
	if err != nil || height < 1 || height > maxDimension {
		return types.RawMessage{}, fmt.Errorf("invalid height: %v", payload["height"])
	}
	format, _ := payload["format"].(string)

	pixels, err := decodePixels(payload["pixels"])
	if err != nil {
		return types.RawMessage{}, fmt.Errorf("invalid pixels: %w", err)
	}

	return types.RawMessage{
		Type: "image",
		Image: types.RawFrame{
			FrameID:   frameID,
			Timestamp: timestamp,
			Width:     width,
			Height:    height,
			Format:    format,
			Pixels:    pixels,
		},
	}, nil
}

// DecodeFrame decodes an image message into a standalone frame.
func DecodeFrame(msg []byte) (*types.Frame, error) {
	raw, err := Decode(msg)
	if err != nil {
		return nil, err
	}
	if raw.Type != "image" {
		return nil, fmt.Errorf("%w: %q", ErrNotImage, raw.Type)
	}
	pool := types.NewFramePool(raw.Image.Width, raw.Image.Height)
	return processing.ProcessRawFrame(raw.Image, pool)
}

func decodePixels(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case cbor.Tag:
		if v.Number == tagMultiDimArray {
			return decodeMultiDimArray(v)
		}
		return decodeTypedArray(v)
	case []any:
		return v, nil
	case nil:
		return nil, errors.New("missing pixels")
	default:
		return nil, fmt.Errorf("unsupported pixels type %T", value)
	}
}

// EncodeFrame produces the wire form of f.
func EncodeFrame(f *types.Frame) ([]byte, error) {
	ts := float64(f.Timestamp.UnixNano()) / 1e9
	if f.Timestamp.IsZero() {
		ts = 0
	}
	msg := map[string]any{
		"type":      "image",
		"frame_id":  f.Seq,
		"timestamp": ts,
		"width":     f.Width,
		"height":    f.Height,
		"format":    processing.FormatRGBA,
		"pixels":    encodeImageArray(f.Pix[:f.Width*f.Height*types.BytesPerPixel], f.Width, f.Height, types.BytesPerPixel),
	}
	return cbor.Marshal(msg)
}

// EncodeMeta produces a non-image message such as "start" or "end".
func EncodeMeta(kind string, meta map[string]any) ([]byte, error) {
	msg := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		msg[k] = v
	}
	msg["type"] = kind
	return cbor.Marshal(msg)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int(n), nil
	case uint64:
		if n > math.MaxInt {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		if math.IsNaN(n) || n > 1<<53 || n < -(1<<53) {
			return 0, fmt.Errorf("integer %v out of range", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

var logCounter atomic.Uint64

func logEveryN(n int, format string, args ...any) {
	count := logCounter.Add(1)
	if n <= 1 || count%uint64(n) == 1 {
		log.Printf(format, args...)
	}
}
