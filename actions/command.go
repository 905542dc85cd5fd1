package actions

import (
	"context"

	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/pkg/xdr"
)

func shellArgs(cmd string) []string {
	return []string{"/bin/sh", "-c", cmd}
}

// runGuest runs argv inside the guest and returns its stdout
func (d *Daemon) runGuest(ctx context.Context, fn string, argv []string) (string, error) {
	if err := d.Sysroot.NeedRoot(fn); err != nil {
		return "", err
	}
	out, err := d.Sandbox.Output(ctx, &command.Cmd{Args: argv})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func replyLines(c *daemon.Call, out string) error {
	lines := command.SplitLines(out)
	return c.Reply(func(e *xdr.Encoder) {
		e.Strings(lines, maxString)
	})
}

func (d *Daemon) command(ctx context.Context, c *daemon.Call) error {
	argv := c.Args.Strings(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	out, err := d.runGuest(ctx, "command", argv)
	if err != nil {
		return err
	}
	return replyString(c, out)
}

func (d *Daemon) commandLines(ctx context.Context, c *daemon.Call) error {
	argv := c.Args.Strings(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	out, err := d.runGuest(ctx, "command_lines", argv)
	if err != nil {
		return err
	}
	return replyLines(c, out)
}

func (d *Daemon) sh(ctx context.Context, c *daemon.Call) error {
	cmd := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	out, err := d.runGuest(ctx, "sh", shellArgs(cmd))
	if err != nil {
		return err
	}
	return replyString(c, out)
}

func (d *Daemon) shLines(ctx context.Context, c *daemon.Call) error {
	cmd := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	out, err := d.runGuest(ctx, "sh_lines", shellArgs(cmd))
	if err != nil {
		return err
	}
	return replyLines(c, out)
}
