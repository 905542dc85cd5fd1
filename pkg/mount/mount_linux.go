package mount

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Mounter performs mount and unmount syscalls
type Mounter interface {
	Mount(m Mount) error
	Unmount(target string) error
}

// Syscall is the Mounter backed by mount(2) and umount2(2)
type Syscall struct{}

var _ Mounter = Syscall{}

// Mount calls mount syscall
func (Syscall) Mount(m Mount) error {
	return m.Mount()
}

// Unmount calls umount2 syscall
func (Syscall) Unmount(target string) error {
	return unix.Unmount(target, 0)
}

// Mount calls mount syscall. The target must exist, it is never created.
func (m *Mount) Mount() error {
	if _, err := os.Lstat(m.Target); err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			err = pe.Err
		}
		return &os.PathError{Op: "mount", Path: m.Target, Err: err}
	}
	if err := unix.Mount(m.Source, m.Target, m.FsType, m.Flags, m.Data); err != nil {
		return &os.PathError{Op: "mount", Path: m.Target, Err: err}
	}
	// Read-only bind mount need to be remounted
	const bindRo = unix.MS_BIND | unix.MS_RDONLY
	if m.Flags&bindRo == bindRo {
		if err := unix.Mount("", m.Target, m.FsType, m.Flags|unix.MS_REMOUNT, m.Data); err != nil {
			return &os.PathError{Op: "remount", Path: m.Target, Err: err}
		}
	}
	return nil
}
