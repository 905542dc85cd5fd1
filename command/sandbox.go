package command

import (
	"context"

	"github.com/criyle/go-guestfsd/pkg/mount"
	"github.com/criyle/go-guestfsd/sysroot"
	"github.com/sirupsen/logrus"
)

// Sandbox runs commands chrooted into the mounted guest root with the
// pseudo filesystems of the appliance bind mounted into it
type Sandbox struct {
	Sysroot *sysroot.Sysroot
	Runner  Runner
	// Mounter performs the bind mounts, nil for mount.Syscall
	Mounter mount.Mounter
	Log     logrus.FieldLogger
}

// Run runs c with Root set to the guest root. It fails with
// sysroot.ErrNotReady when no guest root is mounted.
func (s *Sandbox) Run(ctx context.Context, c *Cmd) (*Result, error) {
	root, ok := s.Sysroot.Root()
	if !ok {
		return nil, sysroot.ErrNotReady
	}
	if len(c.Args) == 0 {
		return nil, ErrEmptyArgs
	}
	log := s.Log
	if log == nil {
		log = logrus.WithField("subsystem", "sandbox")
	}

	set := mount.NewSet(s.Mounter, log)
	defer set.Unmount()
	// failed bind mounts leave a degraded sandbox
	set.Mount(mount.NewSandboxBuilder(root).Mounts...)

	cc := *c
	cc.Root = root
	return s.Runner.Run(ctx, &cc)
}

// Output runs c inside the sandbox and returns its stdout on success
func (s *Sandbox) Output(ctx context.Context, c *Cmd) ([]byte, error) {
	return Output(ctx, s, c)
}
