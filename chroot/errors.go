package chroot

import (
	"fmt"
	"syscall"
)

// RemoteError is an error returned by a closure inside the child
type RemoteError struct {
	Func    string
	Errno   syscall.Errno
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap returns the errno reported by the closure, if any
func (e *RemoteError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return e.Errno
}

// SandboxFailure is the child exiting abnormally
type SandboxFailure struct {
	Func     string
	ExitCode int            // -1 if signalled
	Signal   syscall.Signal // valid if ExitCode is -1
	Err      error          // failure in the parent, if any
}

func (e *SandboxFailure) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("chroot: %s: %v", e.Func, e.Err)
	case e.ExitCode < 0:
		return fmt.Sprintf("chroot: %s: child killed by signal %d", e.Func, e.Signal)
	default:
		return fmt.Sprintf("chroot: %s: child exited with status %d", e.Func, e.ExitCode)
	}
}

func (e *SandboxFailure) Unwrap() error {
	return e.Err
}
