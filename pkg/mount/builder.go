package mount

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const bind = unix.MS_BIND | unix.MS_PRIVATE

// Builder builds an ordered list of mounts
type Builder struct {
	Mounts []Mount
}

// NewBuilder creates new mount builder instance
func NewBuilder() *Builder {
	return &Builder{}
}

// NewSandboxBuilder creates the builder for the pseudo filesystems bind
// mounted under root before a command is run chrooted into it
func NewSandboxBuilder(root string) *Builder {
	b := NewBuilder()
	for _, p := range []string{"/dev", "/dev/pts", "/proc", "/sys"} {
		b.WithBind(p, filepath.Join(root, p), false)
	}
	return b
}

// WithBind adds a bind mount to builder
func (b *Builder) WithBind(source, target string, readonly bool) *Builder {
	var flags uintptr = bind
	if readonly {
		flags |= unix.MS_RDONLY | unix.MS_NOSUID
	}
	b.Mounts = append(b.Mounts, Mount{
		Source: source,
		Target: target,
		Flags:  flags,
	})
	return b
}

func (b Builder) String() string {
	var sb strings.Builder
	sb.WriteString("Mounts: ")
	for i, m := range b.Mounts {
		sb.WriteString(m.String())
		if i != len(b.Mounts)-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
