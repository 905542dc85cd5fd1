package seccomp

import (
	"encoding/binary"
	"runtime"
	"testing"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

func TestAction(t *testing.T) {
	a := ActionErrno.WithReturnCode(1)
	if a.Action() != ActionErrno || a.ReturnCode() != 1 {
		t.Errorf("unexpected action %x", a)
	}
}

func TestEscapeFilter(t *testing.T) {
	if runtime.GOARCH != "amd64" {
		t.Skip("syscall numbers checked for amd64 only")
	}
	f, err := NewEscapeFilter()
	if err != nil {
		t.Fatal(err)
	}
	if prog := f.SockFprog(); int(prog.Len) != len(f) {
		t.Fatalf("SockFprog len = %d, want %d", prog.Len, len(f))
	}

	raw := make([]bpf.RawInstruction, 0, len(f))
	for _, s := range f {
		raw = append(raw, bpf.RawInstruction{Op: s.Code, Jt: s.Jt, Jf: s.Jf, K: s.K})
	}
	insts, ok := bpf.Disassemble(raw)
	if !ok {
		t.Fatal("filter contains instructions the vm cannot run")
	}
	vm, err := bpf.NewVM(insts)
	if err != nil {
		t.Fatal(err)
	}

	run := func(nr int) int {
		// seccomp_data, loaded as 32 bit words by the vm
		data := make([]byte, 64)
		binary.BigEndian.PutUint32(data[0:], uint32(nr))
		binary.BigEndian.PutUint32(data[4:], unix.AUDIT_ARCH_X86_64)
		ret, err := vm.Run(data)
		if err != nil {
			t.Fatal(err)
		}
		return ret
	}
	const (
		retAllow = 0x7fff0000
		retErrno = 0x00050000
	)
	if got := run(unix.SYS_READ); got != retAllow {
		t.Errorf("read: got %#x, want allow", got)
	}
	if got := run(unix.SYS_CHROOT); got != retErrno|int(unix.EPERM) {
		t.Errorf("chroot: got %#x, want errno EPERM", got)
	}
	if got := run(unix.SYS_MOUNT); got != retErrno|int(unix.EPERM) {
		t.Errorf("mount: got %#x, want errno EPERM", got)
	}
}
