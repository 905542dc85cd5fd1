package daemon

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/criyle/go-guestfsd/daemon/daemontest"
	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/protocol"
	"github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/sys/unix"
)

const (
	procPing int32 = iota + 1
	procEcho
	procENOENT
	procBig
	procUpload
	procUploadFail
	procUploadEarlyFail
	procDownload
	procDownloadForever
	procProgress
	procPulse
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

type endless struct{}

func (endless) Read(b []byte) (int, error) {
	for i := range b {
		b[i] = 'x'
	}
	return len(b), nil
}

// testProcedures is a procedure table exercising every part of a call
func testProcedures(clock *fakeClock) map[int32]Procedure {
	return map[int32]Procedure{
		procPing: {Name: "ping", Handler: func(ctx context.Context, c *Call) error {
			return nil
		}},
		procEcho: {Name: "echo", Handler: func(ctx context.Context, c *Call) error {
			s := c.Args.String(protocol.MessageMax)
			if c.Args.Err() != nil {
				return ErrDecodeArgs
			}
			return c.Reply(func(e *xdr.Encoder) {
				e.String(s, protocol.MessageMax)
			})
		}},
		procENOENT: {Name: "enoent", Handler: func(ctx context.Context, c *Call) error {
			return &os.PathError{Op: "open", Path: "/missing", Err: unix.ENOENT}
		}},
		procBig: {Name: "big", Handler: func(ctx context.Context, c *Call) error {
			return c.Reply(func(e *xdr.Encoder) {
				e.Opaque(make([]byte, protocol.MessageMax), protocol.MessageMax)
			})
		}},
		procUpload: {Name: "upload", FileIn: true, Handler: func(ctx context.Context, c *Call) error {
			var buf bytes.Buffer
			n, err := c.ReceiveFile(func(b []byte) error {
				buf.Write(b)
				return nil
			})
			if err != nil {
				return err
			}
			if n != int64(buf.Len()) {
				return io.ErrShortWrite
			}
			return c.Reply(func(e *xdr.Encoder) {
				e.Opaque(buf.Bytes(), protocol.MessageMax)
			})
		}},
		procUploadFail: {Name: "upload-fail", FileIn: true, Handler: func(ctx context.Context, c *Call) error {
			chunks := 0
			_, err := c.ReceiveFile(func(b []byte) error {
				chunks++
				if chunks > 2 {
					return unix.ENOSPC
				}
				return nil
			})
			return err
		}},
		procUploadEarlyFail: {Name: "upload-early-fail", FileIn: true, Handler: func(ctx context.Context, c *Call) error {
			return unix.EACCES
		}},
		procDownload: {Name: "download", Handler: func(ctx context.Context, c *Call) error {
			size := c.Args.Uint32()
			if c.Args.Err() != nil {
				return ErrDecodeArgs
			}
			if err := c.Reply(nil); err != nil {
				return err
			}
			_, err := c.SendFile(uint64(size)).Copy(bytes.NewReader(pattern(int(size))))
			return err
		}},
		procDownloadForever: {Name: "download-forever", Handler: func(ctx context.Context, c *Call) error {
			if err := c.Reply(nil); err != nil {
				return err
			}
			_, err := c.SendFile(0).Copy(endless{})
			return err
		}},
		procProgress: {Name: "progress", Handler: func(ctx context.Context, c *Call) error {
			// total 10, one step of 500ms each
			for i := uint64(1); i <= 10; i++ {
				clock.advance(500 * time.Millisecond)
				c.NotifyProgress(i, 10)
			}
			return nil
		}},
		procPulse: {Name: "pulse", Handler: func(ctx context.Context, c *Call) error {
			wait := c.Args.Uint32()
			p := c.StartPulse()
			time.Sleep(time.Duration(wait) * time.Millisecond)
			p.End()
			return nil
		}},
	}
}

// lib is a client with the server it talks to
type lib struct {
	*daemontest.Client
	errc chan error
}

func startServer(t *testing.T, s *Server) *lib {
	t.Helper()
	if s.Log == nil {
		log, _ := test.NewNullLogger()
		s.Log = log
	}
	d, c := daemontest.SocketPair(t)
	l := &lib{Client: daemontest.NewClient(t, c), errc: make(chan error, 1)}
	go func() {
		l.errc <- s.Serve(context.Background(), d)
	}()
	l.Launched()
	return l
}

func (l *lib) serveErr() error {
	l.T.Helper()
	select {
	case err := <-l.errc:
		return err
	case <-time.After(10 * time.Second):
		l.T.Fatal("server did not return")
		return nil
	}
}
