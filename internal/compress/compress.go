package compress

import "fmt"

// Compress encodes payloads before they leave the process and decodes them on
// the way back.
type Compress interface {
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// New returns the codec registered under name. An empty name is the nop codec.
func New(name string) (Compress, error) {
	switch name {
	case "", "nop", "none":
		return NewNop(), nil
	case "gzip":
		return NewGZip(), nil
	case "lz4":
		return NewLZ4(), nil
	case "br", "brotli":
		return NewBrotli(), nil
	default:
		return nil, fmt.Errorf("unknown compression codec %q", name)
	}
}
