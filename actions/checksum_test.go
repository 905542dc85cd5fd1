package actions

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/criyle/go-guestfsd/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/zeebo/blake3"
)

func TestChecksum(t *testing.T) {
	data := pattern(50000)
	sum := func(b []byte) string { return hex.EncodeToString(b) }
	md5sum := md5.Sum(data)
	sha1sum := sha1.Sum(data)
	sha224sum := sha256.Sum224(data)
	sha256sum := sha256.Sum256(data)
	sha384sum := sha512.Sum384(data)
	sha512sum := sha512.Sum512(data)
	blake3sum := blake3.Sum256(data)
	want := map[string]string{
		"md5":    sum(md5sum[:]),
		"sha1":   sum(sha1sum[:]),
		"sha224": sum(sha224sum[:]),
		"sha256": sum(sha256sum[:]),
		"sha384": sum(sha384sum[:]),
		"sha512": sum(sha512sum[:]),
		"SHA512": sum(sha512sum[:]),
		"blake3": sum(blake3sum[:]),
	}

	e := newEnv(t, true)
	e.writeFile("file", data)
	var serial uint32
	for csumtype, w := range want {
		serial++
		e.Progress = nil
		e.Call(ProcChecksum, serial, strArgs(csumtype, "/file"))
		assert.Equal(t, w, e.OK().String(maxString), csumtype)

		// pulse mode ends with the terminal notification
		if assert.NotEmpty(t, e.Progress) {
			last := e.Progress[len(e.Progress)-1]
			assert.Equal(t, protocol.Progress{Proc: ProcChecksum, Serial: serial, Position: 1, Total: 1}, last)
		}
	}
}

func TestChecksumCRC(t *testing.T) {
	e := newEnv(t, true)
	e.writeFile("file", []byte("hello\n"))
	e.tools.setRun(output("3015617425 6\n"))

	e.Call(ProcChecksum, 1, strArgs("crc", "/file"))
	assert.Equal(t, "3015617425", e.OK().String(maxString))

	c := e.tools.last()
	assert.Equal(t, []string{"cksum"}, c.Args)
	assert.NotNil(t, c.Stdin)
}

func TestChecksumErrors(t *testing.T) {
	e := newEnv(t, true)
	e.writeFile("file", []byte("x"))

	e.Call(ProcChecksum, 1, strArgs("crc32", "/file"))
	_, r := e.ErrorReply()
	assert.Equal(t, errChecksumType.Error(), r.Message)

	e.Call(ProcChecksum, 2, strArgs("md5", "/missing"))
	_, r = e.ErrorReply()
	assert.Equal(t, "ENOENT", r.Errno)

	e.tools.setRun(failure(1, "cksum: read error"))
	e.Call(ProcChecksum, 3, strArgs("crc", "/file"))
	_, r = e.ErrorReply()
	assert.Equal(t, "cksum: cksum: read error", r.Message)
}

func TestChecksumDevice(t *testing.T) {
	e := newEnv(t, false)

	e.Call(ProcChecksum, 1, strArgs("sha256", "/dev/null"))
	empty := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(empty[:]), e.OK().String(maxString))
}
