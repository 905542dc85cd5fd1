package protocol

import "fmt"

// ProtocolError is a malformed or oversized message. The peer cannot be
// resynchronized after it, so the connection must be dropped.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol: " + e.Msg
}

func protocolErrorf(f string, v ...interface{}) error {
	return &ProtocolError{Msg: fmt.Sprintf(f, v...)}
}

// IOError is a failed or short read / write on the channel. A frame may have
// been partially transferred, so the connection is unusable afterwards.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// HeaderError is a well formed header that this daemon does not accept.
// It is reported to the caller with an ErrorReply, the connection stays usable.
type HeaderError struct {
	Msg string
}

func (e *HeaderError) Error() string {
	return e.Msg
}
