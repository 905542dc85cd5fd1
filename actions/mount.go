package actions

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/sysroot"
)

// Optional argument bits of umount
const (
	umountForce = 0
	umountLazy  = 1
)

func (d *Daemon) mount(ctx context.Context, c *daemon.Call) error {
	mountable := c.Args.String(maxString)
	mountpoint := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	return d.mountVFSAt(ctx, "mount", "", "", mountable, mountpoint)
}

func (d *Daemon) mountRO(ctx context.Context, c *daemon.Call) error {
	mountable := c.Args.String(maxString)
	mountpoint := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	return d.mountVFSAt(ctx, "mount_ro", "ro", "", mountable, mountpoint)
}

func (d *Daemon) mountOptions(ctx context.Context, c *daemon.Call) error {
	options := c.Args.String(maxString)
	mountable := c.Args.String(maxString)
	mountpoint := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	return d.mountVFSAt(ctx, "mount_options", options, "", mountable, mountpoint)
}

func (d *Daemon) mountVFS(ctx context.Context, c *daemon.Call) error {
	options := c.Args.String(maxString)
	vfstype := c.Args.String(maxString)
	mountable := c.Args.String(maxString)
	mountpoint := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	return d.mountVFSAt(ctx, "mount_vfs", options, vfstype, mountable, mountpoint)
}

// mountVFSAt mounts device on mountpoint below the sysroot with the mount
// tool. Anything but / needs the guest root mounted first.
func (d *Daemon) mountVFSAt(ctx context.Context, fn, options, vfstype, device, mountpoint string) error {
	if err := sysroot.AbsPath(fn, mountpoint); err != nil {
		return err
	}
	if mountpoint != "/" {
		if err := d.Sysroot.NeedRoot(fn); err != nil {
			return err
		}
	}
	args := []string{"mount", "-o", options}
	if vfstype != "" {
		args = append(args, "-t", vfstype)
	}
	args = append(args, device, d.Sysroot.Join(mountpoint))
	if _, err := command.Output(ctx, d.Command, &command.Cmd{Args: args}); err != nil {
		return fmt.Errorf("%s on %s (options: '%s'): %w", device, mountpoint, options, err)
	}
	d.Sysroot.SetMounted(true)
	return nil
}

func (d *Daemon) umount(ctx context.Context, c *daemon.Call) error {
	target := c.Args.String(maxString)
	force := c.Args.Bool()
	lazy := c.Args.Bool()
	if err := decoded(c); err != nil {
		return err
	}

	path := target
	if !sysroot.IsDevice(target) {
		if err := sysroot.AbsPath("umount", target); err != nil {
			return err
		}
		path = d.Sysroot.Join(target)
	}
	args := []string{"umount"}
	if force && c.Optarg(umountForce) {
		args = append(args, "-f")
	}
	if lazy && c.Optarg(umountLazy) {
		args = append(args, "-l")
	}
	args = append(args, path)

	_, err := command.Output(ctx, d.Command, &command.Cmd{Args: args})
	d.refreshMounted()
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	return nil
}

func (d *Daemon) umountAll(ctx context.Context, c *daemon.Call) error {
	dirs, err := d.mountPoints()
	if err != nil {
		return fmt.Errorf("umount_all: %w", err)
	}
	// submounts before their parents
	slices.SortStableFunc(dirs, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})
	defer d.refreshMounted()
	for _, dir := range dirs {
		if _, err := command.Output(ctx, d.Command, &command.Cmd{Args: []string{"umount", dir}}); err != nil {
			return fmt.Errorf("umount: %s: %w", dir, err)
		}
	}
	return nil
}

func (d *Daemon) refreshMounted() {
	if err := d.RefreshMounted(); err != nil {
		d.log().WithError(err).Warn("refresh sysroot mount state")
	}
}
