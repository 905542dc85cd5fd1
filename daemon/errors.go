package daemon

import (
	"errors"
	"fmt"

	"github.com/criyle/go-guestfsd/protocol"
)

var (
	// ErrDecodeArgs is returned by procedures whose arguments do not decode
	ErrDecodeArgs = errors.New("daemon failed to decode procedure arguments")

	// ErrReplyTooLarge is sent instead of a reply exceeding MessageMax
	ErrReplyTooLarge = errors.New("guestfsd: failed to encode reply body\n(maybe the reply exceeds the maximum message size in the protocol?)")

	// ErrCancelled matches every CancelError
	ErrCancelled = errors.New("file transfer cancelled")

	errAlreadyReplied = errors.New("reply already sent")
	errNotReplied     = errors.New("file out before reply")
)

// Origin is the side that cancelled a transfer
type Origin int

// Origins
const (
	Local Origin = iota
	Remote
)

func (o Origin) String() string {
	if o == Remote {
		return "remote"
	}
	return "local"
}

// CancelError is a file transfer that ended by cancellation
type CancelError struct {
	Origin Origin
	// Err is the local failure that caused a Local cancellation
	Err error
}

func (e *CancelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("file transfer cancelled (%v): %v", e.Origin, e.Err)
	}
	return fmt.Sprintf("file transfer cancelled (%v)", e.Origin)
}

func (e *CancelError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCancelled) hold
func (e *CancelError) Is(target error) bool {
	return target == ErrCancelled
}

// IsRemoteCancel reports whether err is a cancellation by the library
func IsRemoteCancel(err error) bool {
	var ce *CancelError
	return errors.As(err, &ce) && ce.Origin == Remote
}

// IsFatal reports whether err leaves the channel unusable
func IsFatal(err error) bool {
	var ioErr *protocol.IOError
	var protoErr *protocol.ProtocolError
	return errors.As(err, &ioErr) || errors.As(err, &protoErr)
}
