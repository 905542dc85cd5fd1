package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/criyle/go-guestfsd/daemon"
	"github.com/criyle/go-guestfsd/pkg/xdr"
)

var errUploadCancelled = errors.New("file upload cancelled")

func (d *Daemon) upload(ctx context.Context, c *daemon.Call) error {
	path := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	return d.receive(ctx, c, "upload", path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|syscall.O_NOCTTY, 0)
}

func (d *Daemon) uploadOffset(ctx context.Context, c *daemon.Call) error {
	path := c.Args.String(maxString)
	offset := c.Args.Int64()
	if err := decoded(c); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("%s: offset in file is negative", path)
	}
	return d.receive(ctx, c, "upload_offset", path, os.O_WRONLY|os.O_CREATE|syscall.O_NOCTTY, offset)
}

// receive writes the FileIn stream of c to path from offset. The stream is
// drained by the server when receive fails before consuming it.
func (d *Daemon) receive(ctx context.Context, c *daemon.Call, fn, path string, flag int, offset int64) error {
	f, err := d.open(ctx, fn, path, flag, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return perror("lseek: "+path, err)
		}
	}

	hint := c.ProgressHint()
	var written uint64
	_, err = c.ReceiveFile(func(b []byte) error {
		if _, err := f.Write(b); err != nil {
			return err
		}
		written += uint64(len(b))
		if hint > 0 {
			c.NotifyProgress(min(written, hint), hint)
		}
		return nil
	})
	switch {
	case err == nil:
	case daemon.IsRemoteCancel(err):
		return errUploadCancelled
	case errors.Is(err, daemon.ErrCancelled):
		c.Log().WithError(err).Warn("upload write error")
		return fmt.Errorf("write error: %s", path)
	default:
		return err
	}
	if err := f.Close(); err != nil {
		return perror("close: "+path, err)
	}
	return nil
}

func (d *Daemon) download(ctx context.Context, c *daemon.Call) error {
	path := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	f, err := d.open(ctx, "download", path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	total, err := fileSize(f, path)
	if err != nil {
		return err
	}
	// no error reply is possible once the stream started
	if err := c.Reply(nil); err != nil {
		return err
	}
	_, err = c.SendFile(total).Copy(f)
	return err
}

func (d *Daemon) downloadOffset(ctx context.Context, c *daemon.Call) error {
	path := c.Args.String(maxString)
	offset := c.Args.Int64()
	size := c.Args.Int64()
	if err := decoded(c); err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("%s: offset in file is negative", path)
	}
	if size < 0 {
		return fmt.Errorf("%s: size is negative", path)
	}
	f, err := d.open(ctx, "download_offset", path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return perror("lseek: "+path, err)
		}
	}
	if err := c.Reply(nil); err != nil {
		return err
	}
	// a file shorter than size ends the stream early
	_, err = c.SendFile(uint64(size)).Copy(io.LimitReader(f, size))
	return err
}

func (d *Daemon) blockdevGetsize64(ctx context.Context, c *daemon.Call) error {
	device := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	if err := checkDevice("blockdev_getsize64", device); err != nil {
		return err
	}
	f, err := d.open(ctx, "blockdev_getsize64", device, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	size, err := fileSize(f, device)
	if err != nil {
		return err
	}
	return c.Reply(func(e *xdr.Encoder) {
		e.Int64(int64(size))
	})
}

// fileSize returns the size of a regular file, or of a block device by
// seeking to its end
func fileSize(f *os.File, path string) (uint64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, perror(path, err)
	}
	if fi.Mode().IsRegular() {
		return uint64(fi.Size()), nil
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, perror("lseek: "+path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, perror("lseek: "+path, err)
	}
	return uint64(end), nil
}
