package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/criyle/go-guestfsd/chroot"
	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/protocol"
	"github.com/criyle/go-guestfsd/sysroot"
	"github.com/sirupsen/logrus"
)

// maxString bounds string arguments and results, the frame limit applies
// anyway
const maxString = protocol.MessageMax

// Guest reaches paths of the mounted guest filesystem, resolving them as
// seen from inside the guest
type Guest interface {
	OpenFile(ctx context.Context, path string, flag int, perm os.FileMode) (*os.File, error)
	Realpath(ctx context.Context, path string) (string, error)
}

// ChrootGuest resolves guest paths in a forked child chrooted into the
// sysroot
type ChrootGuest struct {
	Runner  *chroot.Runner
	Sysroot *sysroot.Sysroot
}

var _ Guest = &ChrootGuest{}

// OpenFile opens path inside the sysroot
func (g *ChrootGuest) OpenFile(ctx context.Context, path string, flag int, perm os.FileMode) (*os.File, error) {
	return chroot.OpenFile(ctx, g.Runner, g.Sysroot.Path(), path, flag, perm)
}

// Realpath resolves path inside the sysroot
func (g *ChrootGuest) Realpath(ctx context.Context, path string) (string, error) {
	return chroot.Realpath(ctx, g.Runner, g.Sysroot.Path(), path)
}

// Daemon is the state shared by all procedures
type Daemon struct {
	Sysroot *sysroot.Sysroot
	// Command runs appliance tools such as mount outside the guest
	Command command.Runner
	// Sandbox runs guest commands inside the sysroot
	Sandbox *command.Sandbox
	Guest   Guest
	// Mounts opens the mount table, sysroot.DefaultMounts if nil
	Mounts func() (io.ReadCloser, error)
	Log    logrus.FieldLogger
}

func (d *Daemon) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.WithField("subsystem", "actions")
	}
	return d.Log
}

func (d *Daemon) openMounts() (io.ReadCloser, error) {
	if d.Mounts != nil {
		return d.Mounts()
	}
	return os.Open(sysroot.DefaultMounts)
}

// RefreshMounted reads the mount state of the sysroot from the mount table
func (d *Daemon) RefreshMounted() error {
	r, err := d.openMounts()
	if err != nil {
		return err
	}
	defer r.Close()
	return d.Sysroot.Refresh(r)
}

// mountPoints lists the mount points on or below the sysroot
func (d *Daemon) mountPoints() ([]string, error) {
	r, err := d.openMounts()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return d.Sysroot.MountPoints(r)
}

// guestPath validates a path argument naming a file in the guest
func (d *Daemon) guestPath(fn, path string) error {
	if err := d.Sysroot.NeedRoot(fn); err != nil {
		return err
	}
	return sysroot.AbsPath(fn, path)
}

// open opens a device of the appliance directly or a path in the guest
func (d *Daemon) open(ctx context.Context, fn, path string, flag int, perm os.FileMode) (*os.File, error) {
	if sysroot.IsDevice(path) {
		f, err := os.OpenFile(path, flag|syscall.O_CLOEXEC, perm)
		if err != nil {
			return nil, perror(path, err)
		}
		return f, nil
	}
	if err := d.guestPath(fn, path); err != nil {
		return nil, err
	}
	f, err := d.Guest.OpenFile(ctx, path, flag, perm)
	if err != nil {
		return nil, perror(path, err)
	}
	return f, nil
}

// perror formats err as "prefix: strerror", keeping the errno for the reply
func perror(prefix string, err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fmt.Errorf("%s: %w", prefix, errno)
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

// decoded checks that the arguments decoded completely
func decoded(c *daemon.Call) error {
	if err := c.Args.Err(); err != nil {
		c.Log().WithError(err).Debug("decode arguments")
		return daemon.ErrDecodeArgs
	}
	return nil
}

func replyString(c *daemon.Call, s string) error {
	return c.Reply(func(e *xdr.Encoder) {
		e.String(s, maxString)
	})
}

func (d *Daemon) pingDaemon(ctx context.Context, c *daemon.Call) error {
	return nil
}
