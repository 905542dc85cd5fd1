package mount

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestMount_String(t *testing.T) {
	tests := []struct {
		m    Mount
		want string
	}{
		{
			m:    Mount{Source: "/src", Target: "/dst", Flags: syscall.MS_BIND},
			want: "bind[/src:/dst:rw]",
		},
		{
			m:    Mount{Source: "/src", Target: "/dst", Flags: syscall.MS_BIND | syscall.MS_RDONLY},
			want: "bind[/src:/dst:ro]",
		},
		{
			m:    Mount{Source: "src", Target: "dst", FsType: "other", Data: "data"},
			want: "mount[other,src:dst:0,data]",
		},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Mount.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestSandboxBuilder(t *testing.T) {
	b := NewSandboxBuilder("/sysroot")
	var targets []string
	for _, m := range b.Mounts {
		if !m.IsBindMount() || m.IsReadOnly() {
			t.Errorf("expected rw bind mount: %v", m)
		}
		targets = append(targets, m.Target)
	}
	want := []string{"/sysroot/dev", "/sysroot/dev/pts", "/sysroot/proc", "/sysroot/sys"}
	if !reflect.DeepEqual(targets, want) {
		t.Errorf("targets = %v, want %v", targets, want)
	}
	if b.Mounts[0].Source != "/dev" {
		t.Errorf("source = %q", b.Mounts[0].Source)
	}
}

func TestBuilder_String(t *testing.T) {
	s := NewBuilder().
		WithBind("/src", "/dst", false).
		WithBind("/ro", "/mnt", true).
		String()
	if s != "Mounts: bind[/src:/dst:rw], bind[/ro:/mnt:ro]" {
		t.Errorf("unexpected string: %q", s)
	}
}

type fakeMounter struct {
	fail      map[string]bool
	failUmnt  map[string]bool
	mounted   []string
	unmounted []string
}

func (f *fakeMounter) Mount(m Mount) error {
	if f.fail[m.Target] {
		return syscall.EPERM
	}
	f.mounted = append(f.mounted, m.Target)
	return nil
}

func (f *fakeMounter) Unmount(target string) error {
	f.unmounted = append(f.unmounted, target)
	if f.failUmnt[target] {
		return syscall.EBUSY
	}
	return nil
}

func TestSet_PartialFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	f := &fakeMounter{fail: map[string]bool{"/r/dev/pts": true, "/r/sys": true}}
	s := NewSet(f, log)
	err := s.Mount(NewSandboxBuilder("/r").Mounts...)
	if !errors.Is(err, syscall.EPERM) {
		t.Fatalf("expected EPERM, got %v", err)
	}
	if got, want := s.Mounted(), []string{"/r/dev", "/r/proc"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Mounted() = %v, want %v", got, want)
	}
	if err := s.Unmount(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"/r/proc", "/r/dev"}; !reflect.DeepEqual(f.unmounted, want) {
		t.Errorf("unmounted = %v, want %v", f.unmounted, want)
	}
	if len(hook.Entries) != 2 || hook.LastEntry().Level != logrus.WarnLevel {
		t.Errorf("expected 2 warnings, got %d", len(hook.Entries))
	}
	if err := s.Unmount(); err != nil || len(f.unmounted) != 2 {
		t.Errorf("second Unmount should do nothing")
	}
}

func TestSet_UnmountContinuesOnFailure(t *testing.T) {
	log, _ := test.NewNullLogger()
	f := &fakeMounter{failUmnt: map[string]bool{"/b": true}}
	s := NewSet(f, log)
	s.Mount(Mount{Target: "/a"}, Mount{Target: "/b"}, Mount{Target: "/c"})
	err := s.Unmount()
	if !errors.Is(err, syscall.EBUSY) {
		t.Errorf("expected EBUSY, got %v", err)
	}
	if want := []string{"/c", "/b", "/a"}; !reflect.DeepEqual(f.unmounted, want) {
		t.Errorf("unmounted = %v, want %v", f.unmounted, want)
	}
}

func TestMountMissingTarget(t *testing.T) {
	root := t.TempDir()
	m := Mount{Source: "/dev", Target: filepath.Join(root, "dev"), Flags: bind}
	err := Syscall{}.Mount(m)
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("expected ENOENT, got %v", err)
	}
	if _, err := os.Lstat(m.Target); !os.IsNotExist(err) {
		t.Errorf("target %s was created", m.Target)
	}
}
