package command

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// LookPath searches file in the colon separated list path as seen from
// inside root. The returned path is relative to root. Symlinks are accepted
// without resolving them, since absolute targets only make sense after
// chroot.
func LookPath(root, file, path string) (string, error) {
	if strings.Contains(file, "/") {
		return file, nil
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}
		p := filepath.Join(dir, file)
		if err := findExecutable(filepath.Join(root, p)); err == nil {
			return p, nil
		}
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func findExecutable(file string) error {
	fi, err := os.Lstat(file)
	if err != nil {
		return err
	}
	m := fi.Mode()
	if m&os.ModeSymlink != 0 {
		return nil
	}
	if !m.IsDir() && m&0111 != 0 {
		return nil
	}
	return os.ErrPermission
}
