package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	RawLogMagic     = "SCAMRAW1"
	rawRecordHeader = 12
	maxRecordSize   = 256 << 20
)

// RawLogWriter appends length-prefixed payloads to a file:
// magic, then per record an 8-byte unix-nanos timestamp and a 4-byte length,
// both little-endian, followed by the payload.
type RawLogWriter struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

func NewRawLogWriter(outputDir string, prefix string) (*RawLogWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.bin", timestamp, prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(RawLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RawLogWriter{
		f:    f,
		w:    w,
		path: filename,
	}, nil
}

func (r *RawLogWriter) Path() string {
	return r.path
}

func (r *RawLogWriter) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [rawRecordHeader]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *RawLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

var ErrBadMagic = errors.New("not a raw log")

// RawRecord is one entry read back from a raw log.
type RawRecord struct {
	Time    time.Time
	Payload []byte
}

type RawLogReader struct {
	r io.Reader
	c io.Closer
}

func OpenRawLog(path string) (*RawLogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := NewRawLogReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	reader.c = f
	return reader, nil
}

// NewRawLogReader checks the magic and positions r at the first record.
func NewRawLogReader(r io.Reader) (*RawLogReader, error) {
	br := bufio.NewReaderSize(r, 1024*1024)
	header := make([]byte, len(RawLogMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(header) != RawLogMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, string(header))
	}
	return &RawLogReader{r: br}, nil
}

// Next returns the next record, or io.EOF after the last complete record.
// A truncated trailing record is reported as io.EOF too.
func (r *RawLogReader) Next() (RawRecord, error) {
	var meta [rawRecordHeader]byte
	if _, err := io.ReadFull(r.r, meta[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return RawRecord{}, io.EOF
		}
		return RawRecord{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(meta[:8]))
	size := binary.LittleEndian.Uint32(meta[8:12])
	if size > maxRecordSize {
		return RawRecord{}, fmt.Errorf("record of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return RawRecord{}, io.EOF
		}
		return RawRecord{}, err
	}
	return RawRecord{Time: time.Unix(0, ts), Payload: payload}, nil
}

func (r *RawLogReader) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
