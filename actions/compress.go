package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/criyle/go-guestfsd/daemon"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"
)

// compressLevel is the optional argument bit of level
const compressLevel = 0

var errCompressType = errors.New("unknown compression type")

var lz4Levels = []lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// compressor creates the writer for ctype at level, -1 for the default level
func compressor(ctype string, level int) (func(io.Writer) (io.WriteCloser, error), error) {
	badLevel := fmt.Errorf("%s: incorrect value for level parameter", ctype)
	switch ctype {
	case "gzip":
		if level == -1 {
			level = gzip.DefaultCompression
		} else if level < 1 || level > 9 {
			return nil, badLevel
		}
		return func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, level)
		}, nil

	case "zstd":
		opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
		if level != -1 {
			if level < 1 || level > 22 {
				return nil, badLevel
			}
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		return func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, opts...)
		}, nil

	case "lz4":
		opts := []lz4.Option{lz4.ConcurrencyOption(1)}
		if level != -1 {
			if level < 1 || level > len(lz4Levels) {
				return nil, badLevel
			}
			opts = append(opts, lz4.CompressionLevelOption(lz4Levels[level-1]))
		}
		return func(w io.Writer) (io.WriteCloser, error) {
			zw := lz4.NewWriter(w)
			if err := zw.Apply(opts...); err != nil {
				return nil, err
			}
			return zw, nil
		}, nil
	}
	return nil, errCompressType
}

func (d *Daemon) compressOut(ctx context.Context, c *daemon.Call) error {
	return d.compress(ctx, c, "compress_out", false)
}

func (d *Daemon) compressDeviceOut(ctx context.Context, c *daemon.Call) error {
	return d.compress(ctx, c, "compress_device_out", true)
}

// compress streams the compressed content of a file or device as FileOut
func (d *Daemon) compress(ctx context.Context, c *daemon.Call, fn string, device bool) error {
	ctype := c.Args.String(maxString)
	path := c.Args.String(maxString)
	level := int(c.Args.Int32())
	if err := decoded(c); err != nil {
		return err
	}
	if !c.Optarg(compressLevel) {
		level = -1
	}
	newWriter, err := compressor(ctype, level)
	if err != nil {
		return err
	}
	if device {
		if err := checkDevice(fn, path); err != nil {
			return err
		}
	}
	f, err := d.open(ctx, fn, path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := c.Reply(nil); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	var g errgroup.Group
	g.Go(func() error {
		zw, err := newWriter(pw)
		if err == nil {
			_, err = io.Copy(zw, f)
			if cerr := zw.Close(); err == nil {
				err = cerr
			}
		}
		if err != nil {
			c.Log().WithError(err).Warnf("%s: %s", fn, path)
		}
		pw.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		_, err := c.SendFile(0).Copy(pr)
		// stops the compressor when the library cancelled
		pr.CloseWithError(err)
		return err
	})
	return g.Wait()
}
