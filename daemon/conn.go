package daemon

import (
	"encoding/binary"
	"io"
	"sync"
	"syscall"

	"github.com/criyle/go-guestfsd/protocol"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Conn is the channel to the library. Reads are unbuffered so a readiness
// poll reflects exactly what is pending. Writes are serialized so progress
// frames from other goroutines never interleave with a frame.
type Conn struct {
	r   io.Reader
	w   io.Writer
	raw syscall.RawConn // nil disables cancel polling
	log logrus.FieldLogger

	mu  sync.Mutex
	err error // first failed write
}

// NewConn wraps rw. If rw implements syscall.Conn its descriptor is used to
// poll for cancellation during FileOut transfers.
func NewConn(rw io.ReadWriter, log logrus.FieldLogger) *Conn {
	if log == nil {
		log = logrus.WithField("subsystem", "conn")
	}
	c := &Conn{r: rw, w: rw, log: log}
	if sc, ok := rw.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			c.raw = raw
		}
	}
	return c
}

// ReadFrame reads the next frame
func (c *Conn) ReadFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(c.r)
}

// WriteFrame writes body as one length prefixed frame
func (c *Conn) WriteFrame(body []byte) error {
	if len(body) == 0 || len(body) > protocol.MessageMax {
		// rejected before anything is written
		return protocol.WriteFrame(c.w, body)
	}
	return c.write(protocol.AppendFrame(make([]byte, 0, 4+len(body)), body), "write frame")
}

// WriteFlag writes a bare reserved length word
func (c *Conn) WriteFlag(flag uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], flag)
	return c.write(b[:], "write flag")
}

// write writes b in full. A failure is sticky since the peer may have seen
// part of b.
func (c *Conn) write(b []byte, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	n, err := c.w.Write(b)
	if err == nil && n != len(b) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.err = &protocol.IOError{Op: op, Err: err}
	}
	return c.err
}

// Err returns the first write failure
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// PollCancel checks without blocking whether the library sent something.
// If so it must be a cancel flag, anything else is logged and dropped.
func (c *Conn) PollCancel() (bool, error) {
	if c.raw == nil {
		return false, nil
	}
	var (
		ready   bool
		pollErr error
	)
	err := c.raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, 0)
			if err == unix.EINTR {
				continue
			}
			pollErr = err
			ready = n > 0
			return
		}
	})
	if err == nil {
		err = pollErr
	}
	if err != nil {
		c.log.WithError(err).Warn("poll for cancellation")
		return false, nil
	}
	if !ready {
		return false, nil
	}

	var b [4]byte
	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		return false, &protocol.IOError{Op: "read cancel", Err: err}
	}
	if flag := binary.BigEndian.Uint32(b[:]); flag != protocol.CancelFlag {
		c.log.Warnf("check for cancellation: read %#x from library, expected %#x", flag, protocol.CancelFlag)
		return false, nil
	}
	return true, nil
}
