package chroot

import (
	"errors"
	"syscall"

	"github.com/fxamacker/cbor/v2"
)

type request struct {
	Name    string          `cbor:"1,keyasint"`
	Root    string          `cbor:"2,keyasint"`
	Seccomp bool            `cbor:"3,keyasint"`
	Arg     cbor.RawMessage `cbor:"4,keyasint"`
}

type envelope struct {
	OK    bool            `cbor:"1,keyasint"`
	Value cbor.RawMessage `cbor:"2,keyasint,omitempty"`
	Err   *envelopeError  `cbor:"3,keyasint,omitempty"`
}

type envelopeError struct {
	Errno   int    `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
}

func newErrorEnvelope(err error) envelope {
	e := &envelopeError{Message: err.Error()}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e.Errno = int(errno)
	}
	return envelope{Err: e}
}

func (e *envelope) err(name string) error {
	if e.OK {
		return nil
	}
	if e.Err == nil {
		return &RemoteError{Func: name, Message: name + ": unknown error"}
	}
	return &RemoteError{
		Func:    name,
		Errno:   syscall.Errno(e.Err.Errno),
		Message: e.Err.Message,
	}
}
