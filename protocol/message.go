package protocol

import (
	"github.com/criyle/go-guestfsd/pkg/xdr"
)

// BodyFunc encodes a message body after the header
type BodyFunc func(e *xdr.Encoder)

// EncodeMessage encodes header h followed by body into a frame payload
// bounded by MessageMax
func EncodeMessage(h Header, body BodyFunc) ([]byte, error) {
	e := xdr.NewEncoder(MessageMax)
	h.Encode(e)
	if body != nil {
		body(e)
	}
	return e.Bytes()
}

// ErrorReply is the body of a reply with StatusError
type ErrorReply struct {
	// Errno is the C errno name (e.g. "ENOENT"), empty if not an OS error
	Errno string

	// Message is the human readable message
	Message string
}

// Encode appends the error reply to e, truncating over-long fields
func (r *ErrorReply) Encode(e *xdr.Encoder) {
	e.String(truncate(r.Errno, ErrnoLen), ErrnoLen)
	e.String(truncate(r.Message, ErrorLen), ErrorLen)
}

// DecodeErrorReply decodes an error reply body
func DecodeErrorReply(d *xdr.Decoder) (ErrorReply, error) {
	r := ErrorReply{
		Errno:   d.String(ErrnoLen),
		Message: d.String(ErrorLen),
	}
	if err := d.Err(); err != nil {
		return ErrorReply{}, protocolErrorf("could not decode error reply: %v", err)
	}
	return r, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Chunk is one unit of a streamed file transfer. An empty non-cancel chunk
// ends the stream, a cancel chunk aborts it and carries no data.
type Chunk struct {
	Cancel bool
	Data   []byte
}

// IsEOF returns whether the chunk marks a normal end of stream
func (c *Chunk) IsEOF() bool {
	return !c.Cancel && len(c.Data) == 0
}

// EncodeChunk encodes c into a frame payload
func EncodeChunk(c Chunk) ([]byte, error) {
	if c.Cancel && len(c.Data) > 0 {
		return nil, protocolErrorf("cancel chunk with %d bytes of data", len(c.Data))
	}
	e := xdr.NewEncoder(MaxChunkSize + 8)
	var cancel int32
	if c.Cancel {
		cancel = 1
	}
	e.Int32(cancel)
	e.Opaque(c.Data, MaxChunkSize)
	return e.Bytes()
}

// DecodeChunk decodes a chunk frame payload. Data aliases b.
func DecodeChunk(b []byte) (Chunk, error) {
	d := xdr.NewDecoder(b)
	c := Chunk{
		Cancel: d.Int32() != 0,
		Data:   d.Opaque(MaxChunkSize),
	}
	if err := d.Err(); err != nil {
		return Chunk{}, protocolErrorf("could not decode chunk: %v", err)
	}
	if c.Cancel {
		c.Data = nil
	}
	return c, nil
}

// Progress is the body following a ProgressFlag
type Progress struct {
	Proc     int32
	Serial   uint32
	Position uint64
	Total    uint64
}

// Encode appends the progress body to e
func (p *Progress) Encode(e *xdr.Encoder) {
	e.Int32(p.Proc)
	e.Uint32(p.Serial)
	e.Uint64(p.Position)
	e.Uint64(p.Total)
}

// DecodeProgress decodes a progress body
func DecodeProgress(b []byte) (Progress, error) {
	d := xdr.NewDecoder(b)
	p := Progress{
		Proc:     d.Int32(),
		Serial:   d.Uint32(),
		Position: d.Uint64(),
		Total:    d.Uint64(),
	}
	if err := d.Err(); err != nil {
		return Progress{}, protocolErrorf("could not decode progress: %v", err)
	}
	return p, nil
}

// ProgressFrame returns the complete progress message including the leading
// ProgressFlag. It has a fixed size of 4 + ProgressLen bytes.
func ProgressFrame(p Progress) []byte {
	e := xdr.NewEncoder(4 + ProgressLen)
	e.Uint32(ProgressFlag)
	p.Encode(e)
	b, _ := e.Bytes() // fixed size, cannot overflow
	return b
}
