package chroot

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
)

// OpenArgs is the argument of the open closure
type OpenArgs struct {
	Path string      `cbor:"1,keyasint"`
	Flag int         `cbor:"2,keyasint"`
	Perm os.FileMode `cbor:"3,keyasint"`
}

const (
	openFunc     = "open"
	realpathFunc = "realpath"
)

func init() {
	RegisterFile(openFunc, func(a OpenArgs) (*os.File, error) {
		return os.OpenFile(a.Path, a.Flag|syscall.O_CLOEXEC, a.Perm)
	})
	RegisterFunc(realpathFunc, func(path string) (string, error) {
		p, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", err
		}
		return filepath.Abs(p)
	})
}

// OpenFile opens path as seen from inside root, so symlinks in the guest
// resolve within the guest
func OpenFile(ctx context.Context, r *Runner, root, path string, flag int, perm os.FileMode) (*os.File, error) {
	return CallFile(ctx, r, root, openFunc, OpenArgs{Path: path, Flag: flag, Perm: perm})
}

// Realpath resolves path as seen from inside root
func Realpath(ctx context.Context, r *Runner, root, path string) (string, error) {
	return Call[string](ctx, r, root, realpathFunc, path)
}
