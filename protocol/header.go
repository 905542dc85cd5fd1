package protocol

import (
	"fmt"

	"github.com/criyle/go-guestfsd/pkg/xdr"
)

// Header starts every call and reply message
type Header struct {
	Program   uint32
	Version   uint32
	Direction Direction
	Status    Status
	Proc      int32
	Serial    uint32

	// ProgressHint is the caller's estimate of the size of an upcoming
	// FileIn stream, 0 if unknown
	ProgressHint uint64

	// OptargsBitmask has one bit set per optional argument present
	OptargsBitmask uint64
}

// ReplyHeader creates the reply header for call h with given status
func ReplyHeader(h Header, status Status) Header {
	return Header{
		Program:   Program,
		Version:   ProtocolVersion,
		Direction: DirectionReply,
		Status:    status,
		Proc:      h.Proc,
		Serial:    h.Serial,
	}
}

// Encode appends the header to e
func (h *Header) Encode(e *xdr.Encoder) {
	e.Uint32(h.Program)
	e.Uint32(h.Version)
	e.Int32(int32(h.Direction))
	e.Int32(int32(h.Status))
	e.Int32(h.Proc)
	e.Uint32(h.Serial)
	e.Uint64(h.ProgressHint)
	e.Uint64(h.OptargsBitmask)
}

// DecodeHeader decodes a header from d. Failure to decode is a ProtocolError
// since the procedure and serial to reply to are unknown.
func DecodeHeader(d *xdr.Decoder) (Header, error) {
	h := Header{
		Program:        d.Uint32(),
		Version:        d.Uint32(),
		Direction:      Direction(d.Int32()),
		Status:         Status(d.Int32()),
		Proc:           d.Int32(),
		Serial:         d.Uint32(),
		ProgressHint:   d.Uint64(),
		OptargsBitmask: d.Uint64(),
	}
	if err := d.Err(); err != nil {
		return Header{}, protocolErrorf("could not decode message header: %v", err)
	}
	return h, nil
}

// Validate checks the header of an incoming call. Unknown optargs bits are
// not checked here, every procedure only looks at the bits it knows.
func (h *Header) Validate() error {
	if h.Program != Program {
		return &HeaderError{Msg: fmt.Sprintf("wrong program (%d)", h.Program)}
	}
	if h.Version != ProtocolVersion {
		return &HeaderError{Msg: fmt.Sprintf("wrong protocol version (%d)", h.Version)}
	}
	if h.Direction != DirectionCall {
		return &HeaderError{Msg: fmt.Sprintf("unexpected message direction (%d)", h.Direction)}
	}
	if h.Status != StatusOK {
		return &HeaderError{Msg: fmt.Sprintf("unexpected message status (%d)", h.Status)}
	}
	return nil
}

func (h Header) String() string {
	return fmt.Sprintf("header[prog=%#x,vers=%d,%v,%v,proc=%d,serial=%d]",
		h.Program, h.Version, h.Direction, h.Status, h.Proc, h.Serial)
}
