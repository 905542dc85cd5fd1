// Package sysroot tracks the mount point of the guest root filesystem inside
// the appliance and whether a guest root is currently mounted there.
package sysroot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultPath is where the guest root device is mounted
const DefaultPath = "/sysroot"

// ErrNotReady is returned by operations that need a mounted guest root
var ErrNotReady = errors.New("you must call 'mount' first to mount the root filesystem")

// Sysroot is the guest root mount state. It is owned by the single call
// thread of the daemon and is not safe for concurrent use.
type Sysroot struct {
	path    string
	mounted bool
}

// New creates a sysroot at path (DefaultPath if empty), initially unmounted
func New(path string) *Sysroot {
	if path == "" {
		path = DefaultPath
	}
	return &Sysroot{path: filepath.Clean(path)}
}

// Path returns the sysroot mount point
func (s *Sysroot) Path() string {
	return s.path
}

// Mounted reports whether the guest root is mounted
func (s *Sysroot) Mounted() bool {
	return s.mounted
}

// SetMounted records the guest root mount state
func (s *Sysroot) SetMounted(m bool) {
	s.mounted = m
}

// Root returns the path and mount state together
func (s *Sysroot) Root() (string, bool) {
	return s.path, s.mounted
}

// Join turns "/path" into "/sysroot/path"
func (s *Sysroot) Join(path string) string {
	return s.path + filepath.Clean("/"+path)
}

// NeedRoot returns ErrNotReady prefixed by fn if no guest root is mounted
func (s *Sysroot) NeedRoot(fn string) error {
	if !s.mounted {
		return fmt.Errorf("%s: %w", fn, ErrNotReady)
	}
	return nil
}

// AbsPath checks that path is absolute
func AbsPath(fn, path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%s: path must start with a / character", fn)
	}
	return nil
}

// IsDevice reports whether path names an appliance device rather than a
// file in the guest filesystem
func IsDevice(path string) bool {
	return strings.HasPrefix(path, "/dev/")
}
