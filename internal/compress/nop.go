package compress

// Nop is the codec used when no compression is configured. Records go on the
// wire as plain JSON.
type Nop struct{}

func NewNop() Nop { return Nop{} }

func (Nop) Name() string { return "nop" }

func (Nop) Encode(data []byte) ([]byte, error) { return data, nil }

func (Nop) Decode(data []byte) ([]byte, error) { return data, nil }
