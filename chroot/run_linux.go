package chroot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/criyle/go-guestfsd/pkg/unixsocket"
	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"
)

// DefaultExec is the binary re-executed for the child
const DefaultExec = "/proc/self/exe"

// Runner starts closure children
type Runner struct {
	// Exec is the binary calling Init, empty for DefaultExec
	Exec string
	// Seccomp denies syscalls leaving the root inside the child
	Seccomp bool
	// Stderr receives the child diagnostics, nil for os.Stderr
	Stderr io.Writer
	Log    logrus.FieldLogger
}

// Result is the value returned by a closure
type Result struct {
	Value cbor.RawMessage
	Files []*os.File
}

// Close closes the returned files
func (r *Result) Close() {
	for _, f := range r.Files {
		f.Close()
	}
}

// Run runs the closure registered as name with arg inside root. An empty
// root runs the closure in the current root.
func (r *Runner) Run(ctx context.Context, root, name string, arg any) (*Result, error) {
	log := r.Log
	if log == nil {
		log = logrus.WithField("subsystem", "chroot")
	}
	rawArg, err := cbor.Marshal(arg)
	if err != nil {
		return nil, fmt.Errorf("chroot: %s: encode argument: %w", name, err)
	}
	req, err := cbor.Marshal(request{Name: name, Root: root, Seccomp: r.Seccomp, Arg: rawArg})
	if err != nil {
		return nil, fmt.Errorf("chroot: %s: encode request: %w", name, err)
	}

	ins, outs, err := unixsocket.NewSocketPair()
	if err != nil {
		return nil, &SandboxFailure{Func: name, Err: err}
	}
	defer ins.Close()

	outf, err := outs.File()
	outs.Close()
	if err != nil {
		return nil, &SandboxFailure{Func: name, Err: fmt.Errorf("dup socket %v", err)}
	}

	exe := r.Exec
	if exe == "" {
		exe = DefaultExec
	}
	stderr := r.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	cmd := exec.CommandContext(ctx, exe, initArg)
	cmd.Env = []string{}
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{outf}
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	start := time.Now()
	err = cmd.Start()
	outf.Close()
	if err != nil {
		return nil, &SandboxFailure{Func: name, Err: err}
	}

	var (
		env     envelope
		files   []*os.File
		recvErr error
	)
	if err := ins.SendMsg(req, unixsocket.Msg{}); err != nil {
		recvErr = fmt.Errorf("send request %v", err)
	} else {
		var msg []byte
		msg, files, recvErr = ins.RecvFiles()
		if recvErr == nil && len(msg) == 0 {
			recvErr = io.EOF
		}
		if recvErr == nil {
			if err := cbor.Unmarshal(msg, &env); err != nil {
				recvErr = fmt.Errorf("decode envelope %v", err)
			}
		}
	}
	if recvErr != nil {
		// the child cannot make progress without the socket
		cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	res := &Result{Value: env.Value, Files: files}
	log.WithFields(logrus.Fields{
		"func": name,
		"root": root,
		"time": time.Since(start),
	}).Debug("chroot: closure finished")

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		res.Close()
		f := &SandboxFailure{Func: name, ExitCode: exitErr.ExitCode()}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			f.Signal = ws.Signal()
		}
		if ctx.Err() != nil {
			f.Err = ctx.Err()
		}
		return nil, f
	default:
		res.Close()
		return nil, &SandboxFailure{Func: name, Err: waitErr}
	}
	if recvErr != nil {
		res.Close()
		return nil, &SandboxFailure{Func: name, Err: recvErr}
	}
	if err := env.err(name); err != nil {
		res.Close()
		return nil, err
	}
	return res, nil
}

// Call runs the closure registered as name and decodes its value
func Call[R any](ctx context.Context, r *Runner, root, name string, arg any) (R, error) {
	var ret R
	res, err := r.Run(ctx, root, name, arg)
	if err != nil {
		return ret, err
	}
	defer res.Close()
	if err := cbor.Unmarshal(res.Value, &ret); err != nil {
		return ret, &SandboxFailure{Func: name, Err: fmt.Errorf("decode value %v", err)}
	}
	return ret, nil
}

// CallFile runs the closure registered as name and returns the first file
// it handed back
func CallFile(ctx context.Context, r *Runner, root, name string, arg any) (*os.File, error) {
	res, err := r.Run(ctx, root, name, arg)
	if err != nil {
		return nil, err
	}
	if len(res.Files) == 0 {
		return nil, &SandboxFailure{Func: name, Err: errors.New("no file returned")}
	}
	for _, f := range res.Files[1:] {
		f.Close()
	}
	return res.Files[0], nil
}
