package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/criyle/go-guestfsd/pkg/pipe"
	"github.com/sirupsen/logrus"
)

// DefaultCaptureLimit bounds stdout and stderr each
const DefaultCaptureLimit = 4 << 20

var (
	// ErrEmptyArgs is returned for a command without program
	ErrEmptyArgs = errors.New("passed an empty list")

	// ErrOutputTooLarge is returned by Output when stdout exceeded the limit
	ErrOutputTooLarge = errors.New("command output too large")
)

// Cmd is an external command
type Cmd struct {
	// Args holds the program and its arguments, Args[0] is looked up in PATH
	Args []string
	// Env is the environment, nil inherits the daemon environment
	Env []string
	// Dir is the working directory, relative to Root when set
	Dir string
	// Root is the directory the child chroots into before exec
	Root string
	// Stdin is the child stdin, nil for /dev/null
	Stdin *os.File
	// FoldStdoutOnStderr sends stdout into the stderr capture
	FoldStdoutOnStderr bool
}

func (c *Cmd) String() string {
	return strings.Join(c.Args, " ")
}

// Result is the outcome of a command that was started
type Result struct {
	Stdout []byte
	Stderr []byte

	ExitCode int            // -1 if signalled
	Signal   syscall.Signal // signal that terminated the command
	// Truncated reports that stdout exceeded the capture limit
	Truncated bool

	Time time.Duration
}

// Success reports exit status 0
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Err returns nil on success or an *ExitError carrying stderr
func (r *Result) Err(args []string) error {
	if r.Success() {
		return nil
	}
	return &ExitError{
		Args:     args,
		ExitCode: r.ExitCode,
		Signal:   r.Signal,
		Stderr:   string(r.Stderr),
	}
}

// ExitError is a command that ran and failed
type ExitError struct {
	Args     []string
	ExitCode int
	Signal   syscall.Signal
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	name := "command"
	if len(e.Args) > 0 {
		name = e.Args[0]
	}
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: killed by signal %d", name, e.Signal)
	}
	return fmt.Sprintf("%s: exit status %d", name, e.ExitCode)
}

// Runner runs a command to completion
type Runner interface {
	Run(ctx context.Context, c *Cmd) (*Result, error)
}

// Exec is the Runner backed by os/exec
type Exec struct {
	// CaptureLimit bounds each of stdout and stderr, 0 for DefaultCaptureLimit
	CaptureLimit int64
	Log          logrus.FieldLogger
}

var _ Runner = &Exec{}

// Run starts c and waits for it. A command that starts and exits non-zero is
// not an error, see Result.Err.
func (e *Exec) Run(ctx context.Context, c *Cmd) (*Result, error) {
	if len(c.Args) == 0 {
		return nil, ErrEmptyArgs
	}
	log := e.Log
	if log == nil {
		log = logrus.WithField("subsystem", "command")
	}
	limit := e.CaptureLimit
	if limit <= 0 {
		limit = DefaultCaptureLimit
	}

	env := c.Env
	if env == nil {
		env = os.Environ()
	}
	path, err := LookPath(c.Root, c.Args[0], getenv(env, "PATH"))
	if err != nil {
		return nil, err
	}

	stdout, err := pipe.NewBuffer(limit)
	if err != nil {
		return nil, fmt.Errorf("command: pipe %v", err)
	}
	stderr, err := pipe.NewBuffer(limit)
	if err != nil {
		stdout.W.Close()
		return nil, fmt.Errorf("command: pipe %v", err)
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Args = c.Args
	cmd.Env = env
	cmd.Dir = c.Dir
	cmd.Stdout = stdout.W
	cmd.Stderr = stderr.W
	if c.FoldStdoutOnStderr {
		cmd.Stdout = stderr.W
	}
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	if c.Root != "" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Chroot: c.Root}
		if cmd.Dir == "" {
			cmd.Dir = "/"
		}
	}

	log.WithField("root", c.Root).Debugf("command: %s", c)
	start := time.Now()
	err = cmd.Start()
	// the child holds its own copies
	stdout.W.Close()
	stderr.W.Close()
	if err != nil {
		stdout.Wait()
		stderr.Wait()
		return nil, err
	}
	waitErr := cmd.Wait()
	outBytes, _ := stdout.Wait()
	errBytes, _ := stderr.Wait()

	r := &Result{
		Stdout:    outBytes,
		Stderr:    []byte(strings.TrimRight(string(errBytes), "\n")),
		Truncated: stdout.Truncated(),
		Time:      time.Since(start),
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
	default:
		return nil, waitErr
	}
	r.ExitCode = cmd.ProcessState.ExitCode()
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		r.Signal = ws.Signal()
	}
	log.WithFields(logrus.Fields{
		"exit": r.ExitCode,
		"time": r.Time,
	}).Debugf("command: %s finished", c.Args[0])
	return r, nil
}

// Output runs c and returns its stdout if it exits 0, otherwise the
// failure with stderr as message
func Output(ctx context.Context, r Runner, c *Cmd) ([]byte, error) {
	res, err := r.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := res.Err(c.Args); err != nil {
		return nil, err
	}
	if res.Truncated {
		return nil, ErrOutputTooLarge
	}
	return res.Stdout, nil
}

func getenv(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(env[i], key+"="); ok {
			return v
		}
	}
	return ""
}
