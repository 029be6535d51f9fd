package compress

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
)

// GZip is the default audit-topic codec. It is slower than lz4 but readable
// with standard tooling.
type GZip struct {
	level int
}

// NewGZip returns the codec at gzip's default level.
func NewGZip() GZip {
	return GZip{level: gzip.DefaultCompression}
}

func (g GZip) Name() string {
	return "gzip"
}

func (g GZip) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("gzip level %d: %w", g.level, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode rejects payloads that do not start with a gzip header.
func (g GZip) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip payload: %w", err)
	}
	defer r.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
