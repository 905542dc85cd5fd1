// Package xdr provides a bounded XDR (RFC 4506) encoder and decoder for the
// fixed message layouts used on the daemon channel.
//
// Both sides keep the first error and turn every later call into a no-op, so
// callers encode or decode a whole structure and check Err once at the end.
package xdr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrShortBuffer is returned when decoding runs past the end of input
	ErrShortBuffer = errors.New("xdr: short buffer")

	// ErrOverflow is returned when encoding exceeds the encoder limit
	ErrOverflow = errors.New("xdr: encoded size exceeds limit")

	// ErrTooLong is returned when a variable length field exceeds its bound
	ErrTooLong = errors.New("xdr: variable length field too long")
)

// pad returns the number of zero bytes following n bytes of opaque data
func pad(n int) int {
	return (4 - n%4) % 4
}

// Encoder appends XDR encoded values into a buffer of at most Max bytes
type Encoder struct {
	buf []byte
	max int
	err error
}

// NewEncoder creates an encoder which fails with ErrOverflow beyond max bytes
func NewEncoder(max int) *Encoder {
	return &Encoder{max: max}
}

func (e *Encoder) grow(n int) []byte {
	if e.err != nil {
		return nil
	}
	if len(e.buf)+n > e.max {
		e.err = ErrOverflow
		return nil
	}
	l := len(e.buf)
	e.buf = append(e.buf, make([]byte, n)...)
	return e.buf[l:]
}

// Uint32 encodes an unsigned int
func (e *Encoder) Uint32(v uint32) {
	if b := e.grow(4); b != nil {
		binary.BigEndian.PutUint32(b, v)
	}
}

// Int32 encodes a signed int (also used for enums)
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Uint64 encodes an unsigned hyper
func (e *Encoder) Uint64(v uint64) {
	if b := e.grow(8); b != nil {
		binary.BigEndian.PutUint64(b, v)
	}
}

// Int64 encodes a hyper
func (e *Encoder) Int64(v int64) {
	e.Uint64(uint64(v))
}

// Bool encodes a boolean as int 0 / 1
func (e *Encoder) Bool(v bool) {
	var i uint32
	if v {
		i = 1
	}
	e.Uint32(i)
}

// Opaque encodes variable length opaque data bounded by max
func (e *Encoder) Opaque(v []byte, max int) {
	if e.err != nil {
		return
	}
	if len(v) > max {
		e.err = fmt.Errorf("%w: %d > %d", ErrTooLong, len(v), max)
		return
	}
	e.Uint32(uint32(len(v)))
	if b := e.grow(len(v) + pad(len(v))); b != nil {
		copy(b, v)
	}
}

// String encodes a string bounded by max bytes
func (e *Encoder) String(v string, max int) {
	e.Opaque([]byte(v), max)
}

// Strings encodes a variable length array of strings, each bounded by max
func (e *Encoder) Strings(v []string, max int) {
	e.Uint32(uint32(len(v)))
	for _, s := range v {
		e.String(s, max)
	}
}

// Len returns the number of bytes encoded so far
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Err returns the first error encountered
func (e *Encoder) Err() error {
	return e.err
}

// Bytes returns the encoded bytes or the first error encountered
func (e *Encoder) Bytes() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.buf, nil
}

// Decoder reads XDR encoded values from a byte slice
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder creates a decoder over b
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

func (d *Decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = ErrShortBuffer
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Uint32 decodes an unsigned int
func (d *Decoder) Uint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// Int32 decodes a signed int
func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

// Uint64 decodes an unsigned hyper
func (d *Decoder) Uint64() uint64 {
	if b := d.next(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

// Int64 decodes a hyper
func (d *Decoder) Int64() int64 {
	return int64(d.Uint64())
}

// Bool decodes a boolean, any value other than 0 / 1 is an error
func (d *Decoder) Bool() bool {
	v := d.Uint32()
	if d.err == nil && v > 1 {
		d.err = fmt.Errorf("xdr: invalid bool value %d", v)
	}
	return v == 1
}

// Opaque decodes variable length opaque data bounded by max.
// The returned slice aliases the input buffer.
func (d *Decoder) Opaque(max int) []byte {
	n := d.Uint32()
	if d.err != nil {
		return nil
	}
	if uint64(n) > uint64(max) {
		d.err = fmt.Errorf("%w: %d > %d", ErrTooLong, n, max)
		return nil
	}
	b := d.next(int(n) + pad(int(n)))
	if b == nil {
		return nil
	}
	return b[:n]
}

// String decodes a string bounded by max bytes
func (d *Decoder) String(max int) string {
	return string(d.Opaque(max))
}

// Strings decodes a variable length array of strings, each bounded by max.
// The array length is bounded by the remaining input.
func (d *Decoder) Strings(max int) []string {
	n := d.Uint32()
	if d.err != nil {
		return nil
	}
	// every element takes at least its length word
	if uint64(n)*4 > uint64(len(d.buf)-d.off) {
		d.err = ErrShortBuffer
		return nil
	}
	v := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s := d.String(max)
		if d.err != nil {
			return nil
		}
		v = append(v, s)
	}
	return v
}

// Offset returns the number of bytes consumed
func (d *Decoder) Offset() int {
	return d.off
}

// Remaining returns the undecoded part of the input
func (d *Decoder) Remaining() []byte {
	return d.buf[d.off:]
}

// Err returns the first error encountered
func (d *Decoder) Err() error {
	return d.err
}
