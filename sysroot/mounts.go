package sysroot

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultMounts is the kernel mount table
const DefaultMounts = "/proc/mounts"

// MountPoints returns the mount directories in the mount table r that are
// the sysroot itself or below it, in table order
func (s *Sysroot) MountPoints(r io.Reader) ([]string, error) {
	var dirs []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		dir := unescape(fields[1])
		if dir == s.path || strings.HasPrefix(dir, s.path+"/") {
			dirs = append(dirs, dir)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read mount table: %w", err)
	}
	return dirs, nil
}

// Refresh sets the mount state from the mount table r. Anything mounted on
// or below the sysroot counts.
func (s *Sysroot) Refresh(r io.Reader) error {
	dirs, err := s.MountPoints(r)
	if err != nil {
		return err
	}
	s.mounted = len(dirs) > 0
	return nil
}

// unescape decodes the octal escapes of the mount table, e.g. \040 for space
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
