// Package channel opens the point-to-point connection to the library.
package channel

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
	"golang.org/x/sys/unix"
)

// Kind of the transport
type Kind int

// Kinds of channel
const (
	Device Kind = iota // character device such as a virtio-serial port
	TCP
	Unix
	Vsock
)

var kindNames = []string{"device", "tcp", "unix", "vsock"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Channel is a parsed channel address
type Channel struct {
	Kind Kind
	// Address is the path for Device and Unix and host:port for TCP
	Address string
	// CID and Port address a Vsock channel
	CID  uint32
	Port uint32
}

func (c Channel) String() string {
	switch c.Kind {
	case Device:
		return c.Address
	case Vsock:
		return fmt.Sprintf("vsock://%d:%d", c.CID, c.Port)
	default:
		return c.Kind.String() + "://" + c.Address
	}
}

// Parse parses a channel address. Accepted forms are an absolute device
// path, tcp://host:port, unix://path, vsock://cid:port and the legacy
// host:port.
func Parse(s string) (Channel, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		switch {
		case strings.HasPrefix(s, "/"):
			return Channel{Kind: Device, Address: s}, nil
		case s == "":
			return Channel{}, fmt.Errorf("channel: empty address")
		}
		scheme, rest = "tcp", s
	}
	switch scheme {
	case "file":
		if !strings.HasPrefix(rest, "/") {
			return Channel{}, fmt.Errorf("channel: %s: device path is not absolute", s)
		}
		return Channel{Kind: Device, Address: rest}, nil
	case "tcp":
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return Channel{}, fmt.Errorf("channel: %s: %w", s, err)
		}
		return Channel{Kind: TCP, Address: rest}, nil
	case "unix":
		if rest == "" {
			return Channel{}, fmt.Errorf("channel: %s: empty socket path", s)
		}
		return Channel{Kind: Unix, Address: rest}, nil
	case "vsock":
		cid, port, ok := strings.Cut(rest, ":")
		if !ok {
			return Channel{}, fmt.Errorf("channel: %s: missing port", s)
		}
		c := Channel{Kind: Vsock}
		var err error
		if c.CID, err = parseCID(cid); err != nil {
			return Channel{}, fmt.Errorf("channel: %s: %w", s, err)
		}
		if c.Port, err = parseUint32(port); err != nil {
			return Channel{}, fmt.Errorf("channel: %s: port: %w", s, err)
		}
		return c, nil
	}
	return Channel{}, fmt.Errorf("channel: %s: unknown scheme %q", s, scheme)
}

func parseCID(s string) (uint32, error) {
	switch s {
	case "host":
		return vsock.Host, nil
	case "hypervisor":
		return vsock.Hypervisor, nil
	}
	v, err := parseUint32(s)
	if err != nil {
		return 0, fmt.Errorf("cid: %w", err)
	}
	return v, nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

// Open connects c. The returned connection is a *os.File for a Device and
// a net.Conn otherwise; both expose their descriptor for cancel polling.
func Open(ctx context.Context, c Channel) (io.ReadWriteCloser, error) {
	switch c.Kind {
	case Device:
		f, err := os.OpenFile(c.Address, os.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
		if err != nil {
			return nil, fmt.Errorf("channel: %w", err)
		}
		return f, nil
	case TCP, Unix:
		var d net.Dialer
		conn, err := d.DialContext(ctx, c.Kind.String(), c.Address)
		if err != nil {
			return nil, fmt.Errorf("channel: %w", err)
		}
		return conn, nil
	case Vsock:
		conn, err := vsock.Dial(c.CID, c.Port, nil)
		if err != nil {
			return nil, fmt.Errorf("channel: %s: %w", c, err)
		}
		return conn, nil
	}
	return nil, fmt.Errorf("channel: unknown kind %v", c.Kind)
}
