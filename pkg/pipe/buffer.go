// Package pipe provides a wrapper to create a pipe and
// collect at most max bytes from the reader side
package pipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Buffer is a writable pipe whose read end is collected into memory, keeping
// at most Max bytes
type Buffer struct {
	W   *os.File
	Max int64

	buffer    bytes.Buffer
	total     int64
	done      chan struct{}
	readError error
}

// NewBuffer creates a os pipe and starts collecting its read end.
// The caller need to close W in the parent once it is handed to a child,
// otherwise Wait never returns.
func NewBuffer(max int64) (*Buffer, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		W:    w,
		Max:  max,
		done: make(chan struct{}),
	}
	go b.collect(r)
	return b, nil
}

func (b *Buffer) collect(r *os.File) {
	defer close(b.done)
	defer r.Close()

	n, err := io.CopyN(&b.buffer, r, b.Max)
	b.total = n
	if err != nil {
		if err != io.EOF {
			b.readError = err
		}
		return
	}
	// drain the rest so the writer never blocks or gets SIGPIPE
	n, err = io.Copy(io.Discard, r)
	b.total += n
	b.readError = err
}

// Done is closed once the write end is closed by every holder
func (b *Buffer) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the write end is closed and returns the collected bytes
func (b *Buffer) Wait() ([]byte, error) {
	<-b.done
	return b.buffer.Bytes(), b.readError
}

// Truncated reports whether more than Max bytes were written.
// It is valid after Wait returns.
func (b *Buffer) Truncated() bool {
	return b.total > b.Max
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer[%d/%d]", b.buffer.Len(), b.Max)
}
