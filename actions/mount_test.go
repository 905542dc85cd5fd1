package actions

import (
	"testing"

	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/protocol"
	"github.com/stretchr/testify/assert"
)

func TestPingDaemon(t *testing.T) {
	e := newEnv(t, false)
	e.Call(ProcPingDaemon, 1, nil)
	e.OK()
}

func TestMount(t *testing.T) {
	e := newEnv(t, false)

	// not mounted yet
	e.Call(ProcCommand, 1, func(x *xdr.Encoder) { x.Strings([]string{"true"}, maxString) })
	_, r := e.ErrorReply()
	assert.Equal(t, "command: you must call 'mount' first to mount the root filesystem", r.Message)

	e.Call(ProcMount, 2, strArgs("/dev/sda1", "/"))
	e.OK()
	assert.Equal(t, [][]string{{"mount", "-o", "", "/dev/sda1", "/sysroot/"}}, e.tools.args())

	e.Call(ProcCommand, 3, func(x *xdr.Encoder) { x.Strings([]string{"true"}, maxString) })
	e.OK()
}

func TestMountNeedsRoot(t *testing.T) {
	e := newEnv(t, false)

	e.Call(ProcMountRO, 1, strArgs("/dev/sda2", "/boot"))
	_, r := e.ErrorReply()
	assert.Equal(t, "mount_ro: you must call 'mount' first to mount the root filesystem", r.Message)
	assert.Empty(t, e.tools.args())

	e.Call(ProcMount, 2, strArgs("/dev/sda2", "boot"))
	_, r = e.ErrorReply()
	assert.Equal(t, "mount: path must start with a / character", r.Message)
}

func TestMountVariants(t *testing.T) {
	e := newEnv(t, true)

	e.Call(ProcMountRO, 1, strArgs("/dev/sda2", "/boot"))
	e.OK()
	e.Call(ProcMountOptions, 2, strArgs("noatime", "/dev/sda3", "/home"))
	e.OK()
	e.Call(ProcMountVFS, 3, strArgs("ro,noatime", "ext4", "/dev/sda4", "/srv"))
	e.OK()

	assert.Equal(t, [][]string{
		{"mount", "-o", "ro", "/dev/sda2", "/sysroot/boot"},
		{"mount", "-o", "noatime", "/dev/sda3", "/sysroot/home"},
		{"mount", "-o", "ro,noatime", "-t", "ext4", "/dev/sda4", "/sysroot/srv"},
	}, e.tools.args())
}

func TestMountFailure(t *testing.T) {
	e := newEnv(t, false)
	e.tools.setRun(failure(32, "mount: wrong fs type"))

	e.Call(ProcMount, 1, strArgs("/dev/sda1", "/"))
	_, r := e.ErrorReply()
	assert.Equal(t, "/dev/sda1 on / (options: ''): mount: wrong fs type", r.Message)

	e.Call(ProcCommand, 2, func(x *xdr.Encoder) { x.Strings([]string{"true"}, maxString) })
	e.ErrorReply()
}

func umountArgs(target string, force, lazy bool) func(x *xdr.Encoder) {
	return func(x *xdr.Encoder) {
		x.String(target, maxString)
		x.Bool(force)
		x.Bool(lazy)
	}
}

func TestUmount(t *testing.T) {
	e := newEnv(t, true)
	e.setMountTable("/dev/sda1 /sysroot ext4 rw 0 0\n/dev/sda2 /sysroot/boot ext4 rw 0 0\n")

	e.Call(ProcUmount, 1, umountArgs("/boot", true, true))
	e.OK()
	// still mounted on /
	e.Call(ProcCommand, 2, func(x *xdr.Encoder) { x.Strings([]string{"true"}, maxString) })
	e.OK()

	e.setMountTable("proc /proc proc rw 0 0\n")
	h := e.Header(ProcUmount, 3)
	h.OptargsBitmask = 1<<umountForce | 1<<umountLazy
	e.Send(h, umountArgs("/", true, true))
	e.OK()
	e.Call(ProcCommand, 4, func(x *xdr.Encoder) { x.Strings([]string{"true"}, maxString) })
	e.ErrorReply()

	e.Call(ProcUmount, 5, umountArgs("/dev/sda1", false, false))
	e.OK()

	assert.Equal(t, [][]string{
		{"umount", "/sysroot/boot"},
		{"umount", "-f", "-l", "/sysroot/"},
		{"umount", "/dev/sda1"},
	}, e.tools.args())
}

func TestUmountFailure(t *testing.T) {
	e := newEnv(t, true)
	e.tools.setRun(failure(32, "umount: target is busy"))

	e.Call(ProcUmount, 1, umountArgs("/", false, false))
	_, r := e.ErrorReply()
	assert.Equal(t, "/: umount: target is busy", r.Message)
}

func TestUmountAll(t *testing.T) {
	e := newEnv(t, true)
	e.setMountTable(`proc /proc proc rw 0 0
/dev/sda1 /sysroot ext4 rw 0 0
/dev/sda2 /sysroot/boot ext4 rw 0 0
/dev/sda3 /sysroot/boot/efi vfat rw 0 0
/dev/sdb1 /sysroot2 ext4 rw 0 0
`)

	e.Call(ProcUmountAll, 1, nil)
	h, _ := e.Reply()
	assert.Equal(t, protocol.StatusOK, h.Status)
	assert.Equal(t, [][]string{
		{"umount", "/sysroot/boot/efi"},
		{"umount", "/sysroot/boot"},
		{"umount", "/sysroot"},
	}, e.tools.args())
}
