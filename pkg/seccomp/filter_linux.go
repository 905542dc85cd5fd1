// Package seccomp builds and installs seccomp filters for processes that run
// chrooted into the guest root
package seccomp

import (
	"fmt"
	"syscall"
	"unsafe"

	seccompbpf "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Filter is the BPF seccomp filter value
type Filter []syscall.SockFilter

// SockFprog converts Filter to SockFprog for seccomp syscall
func (f Filter) SockFprog() *syscall.SockFprog {
	b := []syscall.SockFilter(f)
	return &syscall.SockFprog{
		Len:    uint16(len(b)),
		Filter: &b[0],
	}
}

// Builder is used to build a filter applying Action to the named syscalls
// and Default to everything else
type Builder struct {
	Default Action
	Action  Action
	Names   []string
}

// Build assembles the filter for the native architecture
func (b *Builder) Build() (Filter, error) {
	p := seccompbpf.Policy{
		DefaultAction: toBPFAction(b.Default),
		Syscalls: []seccompbpf.SyscallGroup{
			{
				Action: toBPFAction(b.Action),
				Names:  b.Names,
			},
		},
	}
	insts, err := p.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble %v", err)
	}
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: bpf %v", err)
	}
	f := make(Filter, 0, len(raw))
	for _, r := range raw {
		f = append(f, syscall.SockFilter{Code: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K})
	}
	return f, nil
}

// EscapeSyscalls are the syscalls that could move a chrooted process out of
// its root or change the mount table under it
var EscapeSyscalls = []string{
	"chroot", "pivot_root", "mount", "umount2", "unshare", "setns",
}

// NewEscapeFilter returns the filter that fails EscapeSyscalls with EPERM
func NewEscapeFilter() (Filter, error) {
	b := Builder{
		Default: ActionAllow,
		Action:  ActionErrno.WithReturnCode(int16(unix.EPERM)),
		Names:   EscapeSyscalls,
	}
	return b.Build()
}

// Load installs the filter on every thread of the calling process
func Load(f Filter) error {
	if len(f) == 0 {
		return fmt.Errorf("seccomp: empty filter")
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: no_new_privs %v", err)
	}
	prog := f.SockFprog()
	_, _, errno := unix.Syscall(unix.SYS_SECCOMP, unix.SECCOMP_SET_MODE_FILTER,
		unix.SECCOMP_FILTER_FLAG_TSYNC, uintptr(unsafe.Pointer(prog)))
	if errno != 0 {
		return fmt.Errorf("seccomp: set_mode_filter %v", errno)
	}
	return nil
}
