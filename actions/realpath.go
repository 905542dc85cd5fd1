package actions

import (
	"context"

	"github.com/criyle/go-guestfsd/daemon"
)

func (d *Daemon) realpath(ctx context.Context, c *daemon.Call) error {
	path := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	if err := d.guestPath("realpath", path); err != nil {
		return err
	}
	r, err := d.Guest.Realpath(ctx, path)
	if err != nil {
		return perror(path, err)
	}
	return replyString(c, r)
}
