package command

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/criyle/go-guestfsd/pkg/memfd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sh(script string) *Cmd {
	return &Cmd{Args: []string{"sh", "-c", script}}
}

func TestExecCapture(t *testing.T) {
	e := &Exec{}
	r, err := e.Run(context.Background(), sh("echo out; echo err >&2; echo >&2; exit 3"))
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(r.Stdout))
	assert.Equal(t, "err", string(r.Stderr))
	assert.Equal(t, 3, r.ExitCode)
	assert.False(t, r.Success())

	var exitErr *ExitError
	require.True(t, errors.As(r.Err([]string{"sh"}), &exitErr))
	assert.Equal(t, "err", exitErr.Error())
}

func TestExecExitMessage(t *testing.T) {
	e := &Exec{}
	_, err := Output(context.Background(), e, sh("exit 2"))
	require.Error(t, err)
	assert.Equal(t, "sh: exit status 2", err.Error())
}

func TestExecFold(t *testing.T) {
	e := &Exec{}
	c := sh("echo out; echo err >&2")
	c.FoldStdoutOnStderr = true
	r, err := e.Run(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, r.Stdout)
	assert.Equal(t, "out\nerr", string(r.Stderr))
}

func TestExecStdin(t *testing.T) {
	f, err := memfd.Secret("stdin", []byte("from stdin"))
	require.NoError(t, err)
	defer f.Close()

	c := &Cmd{Args: []string{"cat"}, Stdin: f}
	out, err := Output(context.Background(), &Exec{}, c)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", string(out))

	// default stdin is /dev/null
	out, err = Output(context.Background(), &Exec{}, &Cmd{Args: []string{"cat"}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecTruncated(t *testing.T) {
	e := &Exec{CaptureLimit: 4}
	r, err := e.Run(context.Background(), sh("echo 0123456789"))
	require.NoError(t, err)
	assert.True(t, r.Truncated)
	assert.Equal(t, "0123", string(r.Stdout))

	_, err = Output(context.Background(), e, sh("echo 0123456789"))
	assert.ErrorIs(t, err, ErrOutputTooLarge)
}

func TestExecSignal(t *testing.T) {
	r, err := (&Exec{}).Run(context.Background(), sh("kill -9 $$"))
	require.NoError(t, err)
	assert.Equal(t, -1, r.ExitCode)
	assert.Contains(t, r.Err([]string{"sh"}).Error(), "killed by signal 9")
}

func TestExecErrors(t *testing.T) {
	_, err := (&Exec{}).Run(context.Background(), &Cmd{})
	assert.ErrorIs(t, err, ErrEmptyArgs)

	_, err = (&Exec{}).Run(context.Background(), &Cmd{Args: []string{"guestfsd-no-such-program"}})
	assert.ErrorIs(t, err, exec.ErrNotFound)
}

func TestExecContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Exec{}).Run(ctx, sh("sleep 10"))
	assert.Error(t, err)
}

func TestLookPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "usr/bin/tool"), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bin/data"), []byte("x"), 0644))
	require.NoError(t, os.Symlink("/usr/bin/tool", filepath.Join(root, "bin/link")))

	p, err := LookPath(root, "tool", "/bin:/usr/bin")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/tool", p)

	p, err = LookPath(root, "link", "/bin:/usr/bin")
	require.NoError(t, err)
	assert.Equal(t, "/bin/link", p)

	_, err = LookPath(root, "data", "/bin:/usr/bin")
	assert.ErrorIs(t, err, exec.ErrNotFound)

	_, err = LookPath(root, "tool", "relative::/bin")
	assert.ErrorIs(t, err, exec.ErrNotFound)

	p, err = LookPath(root, "./x", "")
	require.NoError(t, err)
	assert.Equal(t, "./x", p)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"\n", []string{""}},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\nb", []string{"a", "b"}},
		{"a\n\nb\n", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitLines(tt.in), "SplitLines(%q)", tt.in)
	}
}

func TestGetenv(t *testing.T) {
	env := []string{"PATH=/a", "HOME=/root", "PATH=/b"}
	assert.Equal(t, "/b", getenv(env, "PATH"))
	assert.Equal(t, "", getenv(env, "SHELL"))
}
