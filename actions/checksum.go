package actions

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/criyle/go-guestfsd/command"
	"github.com/criyle/go-guestfsd/daemon"
	"github.com/zeebo/blake3"
)

var errChecksumType = errors.New("unknown checksum type, expecting crc|md5|sha1|sha224|sha256|sha384|sha512|blake3")

var hashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
	"blake3": func() hash.Hash { return blake3.New() },
}

func (d *Daemon) checksum(ctx context.Context, c *daemon.Call) error {
	csumtype := strings.ToLower(c.Args.String(maxString))
	path := c.Args.String(maxString)
	if err := decoded(c); err != nil {
		return err
	}
	f, err := d.open(ctx, "checksum", path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	p := c.StartPulse()
	sum, err := d.sum(ctx, csumtype, path, f)
	if err != nil {
		p.Cancel()
		return err
	}
	p.End()
	return replyString(c, sum)
}

// sum hashes f in process, crc is the POSIX cksum of the appliance tool
func (d *Daemon) sum(ctx context.Context, csumtype, path string, f *os.File) (string, error) {
	if csumtype == "crc" {
		out, err := command.Output(ctx, d.Command, &command.Cmd{Args: []string{"cksum"}, Stdin: f})
		if err != nil {
			return "", fmt.Errorf("cksum: %w", err)
		}
		// checksum, size and no name for stdin
		sum, _, _ := strings.Cut(strings.TrimSpace(string(out)), " ")
		return sum, nil
	}
	newHash, ok := hashes[csumtype]
	if !ok {
		return "", errChecksumType
	}
	h := newHash()
	if _, err := io.Copy(h, f); err != nil {
		return "", perror("read: "+path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
