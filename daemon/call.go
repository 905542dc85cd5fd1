package daemon

import (
	"errors"
	"syscall"
	"time"

	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/protocol"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Call is the state of the call being handled. It lives from decoding the
// header until the reply is written and is only used by the handler and
// the goroutines it starts.
type Call struct {
	Header protocol.Header
	// Args decodes the procedure arguments following the header
	Args *xdr.Decoder

	conn     *Conn
	progress *progress
	log      logrus.FieldLogger
	start    time.Time

	replied  bool
	fileIn   bool // call carries a FileIn stream
	received bool // FileIn stream consumed to its end
}

func newCall(s *Server, conn *Conn, h protocol.Header, args *xdr.Decoder) *Call {
	now := s.now()
	return &Call{
		Header:   h,
		Args:     args,
		conn:     conn,
		progress: newProgress(h, now, s.now, s.progressDelay(), s.progressPeriod()),
		log:      s.log().WithFields(logrus.Fields{"proc": h.Proc, "serial": h.Serial}),
		start:    now,
	}
}

// Proc returns the procedure number
func (c *Call) Proc() int32 {
	return c.Header.Proc
}

// ProgressHint returns the expected size of the FileIn stream, 0 if unknown
func (c *Call) ProgressHint() uint64 {
	return c.Header.ProgressHint
}

// Optarg reports whether optional argument i is present
func (c *Call) Optarg(i uint) bool {
	return c.Header.OptargsBitmask&(1<<i) != 0
}

// Log returns the logger of the call
func (c *Call) Log() logrus.FieldLogger {
	return c.log
}

// Replied reports whether a reply or error reply was sent
func (c *Call) Replied() bool {
	return c.replied
}

// Reply sends the success reply with body. A body that does not fit in a
// message is replaced by an error reply and ErrReplyTooLarge is returned.
func (c *Call) Reply(body protocol.BodyFunc) error {
	if c.replied {
		return errAlreadyReplied
	}
	b, err := protocol.EncodeMessage(protocol.ReplyHeader(c.Header, protocol.StatusOK), body)
	if err != nil {
		c.log.WithError(err).Warn("encode reply")
		if err := c.ReplyError(ErrReplyTooLarge); err != nil {
			return err
		}
		return ErrReplyTooLarge
	}
	c.replied = true
	return c.conn.WriteFrame(b)
}

// ReplyError sends an error reply for err. The errno name is filled in when
// err wraps a syscall.Errno.
func (c *Call) ReplyError(err error) error {
	if c.replied {
		return errAlreadyReplied
	}
	c.log.Warnf("guestfsd: error: %v", err)
	r := NewErrorReply(err)
	b, encErr := protocol.EncodeMessage(protocol.ReplyHeader(c.Header, protocol.StatusError), r.Encode)
	if encErr != nil {
		// bounded fields, cannot exceed MessageMax
		return &protocol.ProtocolError{Msg: "failed to encode error message: " + encErr.Error()}
	}
	c.replied = true
	return c.conn.WriteFrame(b)
}

// NewErrorReply converts err into an error reply body
func NewErrorReply(err error) protocol.ErrorReply {
	r := protocol.ErrorReply{Message: err.Error()}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		r.Errno = unix.ErrnoName(errno)
	}
	return r
}
