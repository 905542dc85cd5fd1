package actions

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/daemon/daemontest"
	"github.com/criyle/go-guestfsd/pkg/mount"
	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/sysroot"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and answers them with run
type fakeRunner struct {
	mu   sync.Mutex
	cmds []command.Cmd
	run  func(c *command.Cmd) (*command.Result, error)
}

func (r *fakeRunner) Run(ctx context.Context, c *command.Cmd) (*command.Result, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, *c)
	run := r.run
	r.mu.Unlock()
	if run != nil {
		return run(c)
	}
	return &command.Result{}, nil
}

func (r *fakeRunner) setRun(run func(c *command.Cmd) (*command.Result, error)) {
	r.mu.Lock()
	r.run = run
	r.mu.Unlock()
}

func (r *fakeRunner) args() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var args [][]string
	for _, c := range r.cmds {
		args = append(args, c.Args)
	}
	return args
}

func (r *fakeRunner) last() command.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmds[len(r.cmds)-1]
}

func output(stdout string) func(c *command.Cmd) (*command.Result, error) {
	return func(c *command.Cmd) (*command.Result, error) {
		return &command.Result{Stdout: []byte(stdout)}, nil
	}
}

func failure(code int, stderr string) func(c *command.Cmd) (*command.Result, error) {
	return func(c *command.Cmd) (*command.Result, error) {
		return &command.Result{ExitCode: code, Stderr: []byte(stderr)}, nil
	}
}

type nopMounter struct{}

func (nopMounter) Mount(m mount.Mount) error     { return nil }
func (nopMounter) Unmount(target string) error { return nil }

// dirGuest maps guest paths into a directory
type dirGuest struct {
	dir string
}

func (g *dirGuest) OpenFile(ctx context.Context, path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(filepath.Join(g.dir, path), flag, perm)
}

func (g *dirGuest) Realpath(ctx context.Context, path string) (string, error) {
	p, err := filepath.EvalSymlinks(filepath.Join(g.dir, path))
	if err != nil {
		return "", err
	}
	return "/" + strings.TrimPrefix(strings.TrimPrefix(p, g.dir), "/"), nil
}

type env struct {
	*daemontest.Client
	dir   string
	tools *fakeRunner
	guest *fakeRunner

	mu         sync.Mutex
	mountTable string
}

func newEnv(t *testing.T, mounted bool) *env {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	e := &env{
		dir:   dir,
		tools: &fakeRunner{},
		guest: &fakeRunner{},
	}
	log, _ := test.NewNullLogger()
	sr := sysroot.New("")
	sr.SetMounted(mounted)
	d := &Daemon{
		Sysroot: sr,
		Command: e.tools,
		Sandbox: &command.Sandbox{Sysroot: sr, Runner: e.guest, Mounter: nopMounter{}, Log: log},
		Guest:   &dirGuest{dir: dir},
		Mounts: func() (io.ReadCloser, error) {
			e.mu.Lock()
			defer e.mu.Unlock()
			return io.NopCloser(strings.NewReader(e.mountTable)), nil
		},
		Log: log,
	}
	s := &daemon.Server{Procedures: d.Procedures(), Log: log}
	srv, cli := daemontest.SocketPair(t)
	go s.Serve(context.Background(), srv)

	e.Client = daemontest.NewClient(t, cli)
	e.Launched()
	return e
}

func (e *env) setMountTable(s string) {
	e.mu.Lock()
	e.mountTable = s
	e.mu.Unlock()
}

func (e *env) writeFile(name string, data []byte) {
	e.T.Helper()
	require.NoError(e.T, os.WriteFile(filepath.Join(e.dir, name), data, 0644))
}

func (e *env) readFile(name string) []byte {
	e.T.Helper()
	b, err := os.ReadFile(filepath.Join(e.dir, name))
	require.NoError(e.T, err)
	return b
}

func strArgs(v ...string) func(e *xdr.Encoder) {
	return func(e *xdr.Encoder) {
		for _, s := range v {
			e.String(s, maxString)
		}
	}
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*13 + i/509)
	}
	return b
}
