package actions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/pkg/memfd"
	"github.com/criyle/go-guestfsd/sysroot"
)

const mapperPrefix = "/dev/mapper/"

var errLuksClose = errors.New("luks_close: you must call this on the /dev/mapper device created by luks_open")

func (d *Daemon) luksOpen(ctx context.Context, c *daemon.Call) error {
	return d.luksOpenMode(ctx, c, "luks_open", false)
}

func (d *Daemon) luksOpenRO(ctx context.Context, c *daemon.Call) error {
	return d.luksOpenMode(ctx, c, "luks_open_ro", true)
}

func (d *Daemon) luksOpenMode(ctx context.Context, c *daemon.Call, fn string, readonly bool) error {
	device := c.Args.String(maxString)
	key := c.Args.String(maxString)
	mapname := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	if err := checkDevice(fn, device); err != nil {
		return err
	}
	if strings.Contains(mapname, "/") {
		return fmt.Errorf("%s: mapname cannot contain '/' characters", mapname)
	}

	args := []string{"cryptsetup", "-d", "-"}
	if readonly {
		args = append(args, "--readonly")
	}
	args = append(args, "luksOpen", device, mapname)
	if err := d.cryptsetup(ctx, key, args); err != nil {
		return err
	}
	d.udevSettle(ctx)
	return nil
}

func (d *Daemon) luksClose(ctx context.Context, c *daemon.Call) error {
	device := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	mapname, ok := strings.CutPrefix(device, mapperPrefix)
	if !ok || mapname == "" {
		return errLuksClose
	}
	if _, err := command.Output(ctx, d.Command, &command.Cmd{Args: []string{"cryptsetup", "luksClose", mapname}}); err != nil {
		return err
	}
	d.udevSettle(ctx)
	return nil
}

func (d *Daemon) luksFormat(ctx context.Context, c *daemon.Call) error {
	device := c.Args.String(maxString)
	key := c.Args.String(maxString)
	keyslot := c.Args.Int32()
	if err := decoded(c); err != nil {
		return err
	}
	return d.luksFormatCipher(ctx, "luks_format", device, key, keyslot, "")
}

func (d *Daemon) luksFormatWithCipher(ctx context.Context, c *daemon.Call) error {
	device := c.Args.String(maxString)
	key := c.Args.String(maxString)
	keyslot := c.Args.Int32()
	cipher := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	return d.luksFormatCipher(ctx, "luks_format_cipher", device, key, keyslot, cipher)
}

func (d *Daemon) luksFormatCipher(ctx context.Context, fn, device, key string, keyslot int32, cipher string) error {
	if err := checkDevice(fn, device); err != nil {
		return err
	}
	args := []string{"cryptsetup", "-q"}
	if cipher != "" {
		args = append(args, "--cipher", cipher)
	}
	args = append(args, "--key-slot", strconv.Itoa(int(keyslot)), "luksFormat", device, "-")
	if err := d.cryptsetup(ctx, key, args); err != nil {
		return err
	}
	d.udevSettle(ctx)
	return nil
}

func (d *Daemon) luksKillSlot(ctx context.Context, c *daemon.Call) error {
	device := c.Args.String(maxString)
	key := c.Args.String(maxString)
	keyslot := c.Args.Int32()
	if err := decoded(c); err != nil {
		return err
	}
	if err := checkDevice("luks_kill_slot", device); err != nil {
		return err
	}
	return d.cryptsetup(ctx, key, []string{
		"cryptsetup", "-q", "-d", "-", "luksKillSlot", device, strconv.Itoa(int(keyslot)),
	})
}

// cryptsetup runs args with key on stdin. The key lives in a sealed memfd
// so it is never written to a filesystem.
func (d *Daemon) cryptsetup(ctx context.Context, key string, args []string) error {
	f, err := memfd.Secret("luks-key", []byte(key))
	if err != nil {
		return perror("memfd", err)
	}
	defer f.Close()
	_, err = command.Output(ctx, d.Command, &command.Cmd{Args: args, Stdin: f})
	return err
}

// udevSettle waits for device nodes of new mappings, failures are ignored
func (d *Daemon) udevSettle(ctx context.Context) {
	if _, err := command.Output(ctx, d.Command, &command.Cmd{Args: []string{"udevadm", "settle"}}); err != nil {
		d.log().WithError(err).Debug("udevadm settle")
	}
}

func checkDevice(fn, device string) error {
	if !sysroot.IsDevice(device) {
		return fmt.Errorf("%s: %s: not a device name", fn, device)
	}
	return nil
}
