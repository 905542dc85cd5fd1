package daemon

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/protocol"
	"github.com/sirupsen/logrus"
)

// Handler handles one call. It decodes its arguments from c.Args and either
// replies itself or returns. Returning nil without a reply sends an empty
// success reply, returning an error without a reply sends an error reply.
type Handler func(ctx context.Context, c *Call) error

// Procedure is a registered procedure
type Procedure struct {
	Name    string
	Handler Handler
	// FileIn procedures are followed by a chunk stream, which is drained if
	// the handler fails without consuming it
	FileIn bool
}

// Server serves calls on a channel
type Server struct {
	Procedures map[int32]Procedure

	// Verbose logs the time taken by every call
	Verbose bool

	ProgressDelay  time.Duration
	ProgressPeriod time.Duration

	Log logrus.FieldLogger

	// clock, time.Now if nil
	clock func() time.Time
}

func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.WithField("subsystem", "daemon")
	}
	return s.Log
}

func (s *Server) progressDelay() time.Duration {
	if s.ProgressDelay == 0 {
		return DefaultProgressDelay
	}
	return s.ProgressDelay
}

func (s *Server) progressPeriod() time.Duration {
	if s.ProgressPeriod == 0 {
		return DefaultProgressPeriod
	}
	return s.ProgressPeriod
}

// Serve sends the launch flag and then handles calls on rw until the
// channel fails. It only returns on a fatal error, which includes the
// library closing the channel.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	conn := NewConn(rw, s.log().WithField("subsystem", "conn"))
	if err := conn.WriteFlag(protocol.LaunchFlag); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.serveOne(ctx, conn); err != nil {
			return err
		}
	}
}

func (s *Server) serveOne(ctx context.Context, conn *Conn) error {
	f, err := conn.ReadFrame()
	if err != nil {
		return err
	}
	switch {
	case f.IsCancel():
		// left over from a transfer that already ended
		s.log().Debug("discarding stray cancel flag")
		return nil
	case f.Flag != 0:
		return &protocol.ProtocolError{Msg: fmt.Sprintf("unexpected flag %#x", f.Flag)}
	}

	d := xdr.NewDecoder(f.Body)
	h, err := protocol.DecodeHeader(d)
	if err != nil {
		return err
	}
	c := newCall(s, conn, h, d)
	if err := h.Validate(); err != nil {
		return s.finish(c, err)
	}
	p, ok := s.Procedures[h.Proc]
	if !ok {
		return s.finish(c, fmt.Errorf("dispatch_incoming_message: unknown procedure number %d, set LIBGUESTFS_PATH to point to the matching libguestfs appliance directory", h.Proc))
	}
	c.fileIn = p.FileIn
	c.log = c.log.WithField("name", p.Name)

	err = p.Handler(ctx, c)
	if err == nil && !c.replied {
		err = c.Reply(nil)
	}
	if err := s.finish(c, err); err != nil {
		return err
	}
	if s.Verbose {
		elapsed := s.now().Sub(c.start)
		c.log.Infof("proc %d (%s) took %d.%02d seconds", h.Proc, p.Name,
			int(elapsed/time.Second), int(elapsed/(10*time.Millisecond))%100)
	}
	return nil
}

// finish makes sure the call got exactly one reply and its FileIn stream was
// consumed. It returns only fatal errors.
func (s *Server) finish(c *Call, err error) error {
	if cerr := c.conn.Err(); cerr != nil {
		return cerr
	}
	if err != nil && IsFatal(err) {
		return err
	}
	if cerr := c.CancelReceive(); cerr != nil {
		return cerr
	}
	if err == nil {
		return nil
	}
	if c.replied {
		c.log.WithError(err).Debug("call failed after reply")
		return nil
	}
	if rerr := c.ReplyError(err); rerr != nil {
		return rerr
	}
	return nil
}
