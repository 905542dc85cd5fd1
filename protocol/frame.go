package protocol

import (
	"encoding/binary"
	"io"
)

// Frame is a single unit read from the channel. Flag is non-zero for the
// reserved out-of-band length words, in which case Body is empty except for
// ProgressFlag where it holds the Progress body.
type Frame struct {
	Flag uint32
	Body []byte
}

// IsCancel reports whether the frame is a bare cancellation flag
func (f *Frame) IsCancel() bool {
	return f.Flag == CancelFlag
}

// ReadFrame reads the next frame from r. A declared length over MessageMax
// is a ProtocolError and a short read is an IOError, both fatal.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return Frame{}, &IOError{Op: "read length", Err: err}
	}
	n := binary.BigEndian.Uint32(lenbuf[:])

	switch n {
	case CancelFlag, LaunchFlag:
		return Frame{Flag: n}, nil

	case ProgressFlag:
		body := make([]byte, ProgressLen)
		if _, err := io.ReadFull(r, body); err != nil {
			return Frame{}, &IOError{Op: "read progress", Err: err}
		}
		return Frame{Flag: n, Body: body}, nil
	}

	if n > MessageMax {
		return Frame{}, protocolErrorf("incoming message is too long (%d bytes)", n)
	}
	if n == 0 {
		return Frame{}, protocolErrorf("incoming message has zero length")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, &IOError{Op: "read body", Err: err}
	}
	return Frame{Body: body}, nil
}

// AppendFrame appends the length word and body to dst
func AppendFrame(dst, body []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(body)))
	return append(dst, body...)
}

// WriteFrame writes body with its length word in a single write. Any failure
// is an IOError since the peer may have seen part of the frame.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) == 0 || len(body) > MessageMax {
		return protocolErrorf("outgoing message has invalid length (%d bytes)", len(body))
	}
	return writeFull(w, AppendFrame(make([]byte, 0, 4+len(body)), body), "write frame")
}

// WriteFlag writes a bare reserved length word
func WriteFlag(w io.Writer, flag uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], flag)
	return writeFull(w, b[:], "write flag")
}

func writeFull(w io.Writer, b []byte, op string) error {
	n, err := w.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &IOError{Op: op, Err: err}
	}
	return nil
}
