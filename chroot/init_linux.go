package chroot

import (
	"fmt"
	"os"

	"github.com/criyle/go-guestfsd/pkg/seccomp"
	"github.com/criyle/go-guestfsd/pkg/unixsocket"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sys/unix"
)

const initArg = "guestfsd-chroot-init"

// socketFd is ExtraFiles[0] in the child
const socketFd = 3

// Init runs the closure requested by the parent and exits if the process
// was started by Run, otherwise it is noop
func Init() {
	if len(os.Args) < 2 || os.Args[1] != initArg {
		return
	}
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "chroot: panic: %v\n", err)
			os.Exit(1)
		}
	}()
	os.Exit(child())
}

func child() int {
	sock, err := unixsocket.NewSocketFile(os.NewFile(socketFd, "chroot-socket"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "chroot: socket: %v\n", err)
		return 1
	}
	defer sock.Close()

	msg, _, err := sock.RecvFiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chroot: receive request: %v\n", err)
		return 1
	}
	var req request
	if err := cbor.Unmarshal(msg, &req); err != nil {
		fmt.Fprintf(os.Stderr, "chroot: decode request: %v\n", err)
		return 1
	}

	env, files := handle(&req)
	b, err := cbor.Marshal(env)
	if err != nil {
		b, _ = cbor.Marshal(newErrorEnvelope(fmt.Errorf("%s: encode result: %w", req.Name, err)))
		files = nil
	}
	if err := sock.SendFiles(b, files...); err != nil {
		fmt.Fprintf(os.Stderr, "chroot: send result: %v\n", err)
		return 1
	}
	for _, f := range files {
		f.Close()
	}
	return 0
}

func handle(req *request) (envelope, []*os.File) {
	fn, ok := lookup(req.Name)
	if !ok {
		return newErrorEnvelope(fmt.Errorf("chroot: %s: no such function", req.Name)), nil
	}
	if req.Root != "" {
		if err := enterRoot(req.Root); err != nil {
			return newErrorEnvelope(err), nil
		}
	}
	if req.Seccomp {
		f, err := seccomp.NewEscapeFilter()
		if err == nil {
			err = seccomp.Load(f)
		}
		if err != nil {
			return newErrorEnvelope(err), nil
		}
	}

	v, files, err := fn(req.Arg)
	if err != nil {
		return newErrorEnvelope(err), nil
	}
	raw, err := cbor.Marshal(v)
	if err != nil {
		for _, f := range files {
			f.Close()
		}
		return newErrorEnvelope(fmt.Errorf("%s: encode result: %w", req.Name, err)), nil
	}
	return envelope{OK: true, Value: raw}, files
}

func enterRoot(root string) error {
	if err := unix.Chdir(root); err != nil {
		return &os.PathError{Op: "chdir", Path: root, Err: err}
	}
	if err := unix.Chroot("."); err != nil {
		return &os.PathError{Op: "chroot", Path: root, Err: err}
	}
	return unix.Chdir("/")
}
