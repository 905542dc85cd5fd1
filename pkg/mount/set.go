package mount

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// Set records which mounts of a batch succeeded so exactly those are
// unmounted later, in reverse order
type Set struct {
	mounter Mounter
	log     logrus.FieldLogger
	mounted []string
}

// NewSet creates an empty mount set. A nil mounter uses Syscall.
func NewSet(m Mounter, log logrus.FieldLogger) *Set {
	if m == nil {
		m = Syscall{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Set{mounter: m, log: log}
}

// Mount attempts every mount in order. A failed mount is logged and not
// recorded. It returns the joined mount errors, which callers may ignore.
func (s *Set) Mount(mounts ...Mount) error {
	var errs []error
	for _, m := range mounts {
		if err := s.mounter.Mount(m); err != nil {
			s.log.WithError(err).WithField("mount", m.String()).Warn("mount failed")
			errs = append(errs, err)
			continue
		}
		s.mounted = append(s.mounted, m.Target)
	}
	return errors.Join(errs...)
}

// Mounted returns the targets mounted so far, in mount order
func (s *Set) Mounted() []string {
	return append([]string(nil), s.mounted...)
}

// Unmount unmounts every recorded target in reverse order. Failures are
// logged and do not stop the rest. The set is empty afterwards so a second
// call does nothing.
func (s *Set) Unmount() error {
	var errs []error
	for i := len(s.mounted) - 1; i >= 0; i-- {
		if err := s.mounter.Unmount(s.mounted[i]); err != nil {
			s.log.WithError(err).WithField("target", s.mounted[i]).Warn("umount failed")
			errs = append(errs, err)
		}
	}
	s.mounted = nil
	return errors.Join(errs...)
}
