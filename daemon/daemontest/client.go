// Package daemontest plays the library side of a daemon channel in tests.
package daemontest

import (
	"bytes"
	"net"
	"os"
	"testing"
	"time"

	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/criyle/go-guestfsd/protocol"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Timeout bounds every read by the client
var Timeout = 10 * time.Second

// SocketPair returns both ends of a connected AF_UNIX stream socket, closed
// when the test ends
func SocketPair(t testing.TB) (net.Conn, net.Conn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	conn := func(fd int) net.Conn {
		f := os.NewFile(uintptr(fd), "socketpair")
		defer f.Close()
		c, err := net.FileConn(f)
		require.NoError(t, err)
		return c
	}
	a, b := conn(fds[0]), conn(fds[1])
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// Client sends calls and reads replies, failing the test on any unexpected
// frame
type Client struct {
	T    testing.TB
	Conn net.Conn

	// Progress collects the notifications read while waiting for replies
	Progress []protocol.Progress
}

// NewClient wraps conn
func NewClient(t testing.TB, conn net.Conn) *Client {
	return &Client{T: t, Conn: conn}
}

// Launched reads the launch flag
func (c *Client) Launched() {
	c.T.Helper()
	f := c.Frame()
	require.Equal(c.T, protocol.LaunchFlag, f.Flag, "expected launch flag")
}

// Header returns a valid call header
func (c *Client) Header(proc int32, serial uint32) protocol.Header {
	return protocol.Header{
		Program:   protocol.Program,
		Version:   protocol.ProtocolVersion,
		Direction: protocol.DirectionCall,
		Status:    protocol.StatusOK,
		Proc:      proc,
		Serial:    serial,
	}
}

// Send sends a call with header h
func (c *Client) Send(h protocol.Header, args protocol.BodyFunc) {
	c.T.Helper()
	b, err := protocol.EncodeMessage(h, args)
	require.NoError(c.T, err)
	require.NoError(c.T, protocol.WriteFrame(c.Conn, b))
}

// Call sends a call of proc
func (c *Client) Call(proc int32, serial uint32, args protocol.BodyFunc) {
	c.T.Helper()
	c.Send(c.Header(proc, serial), args)
}

// Flag sends a bare length word
func (c *Client) Flag(flag uint32) {
	c.T.Helper()
	require.NoError(c.T, protocol.WriteFlag(c.Conn, flag))
}

// Chunk sends one file chunk
func (c *Client) Chunk(chunk protocol.Chunk) {
	c.T.Helper()
	b, err := protocol.EncodeChunk(chunk)
	require.NoError(c.T, err)
	require.NoError(c.T, protocol.WriteFrame(c.Conn, b))
}

// Upload sends data as a complete FileIn stream
func (c *Client) Upload(data []byte) {
	c.T.Helper()
	for len(data) > 0 {
		n := min(len(data), protocol.MaxChunkSize)
		c.Chunk(protocol.Chunk{Data: data[:n]})
		data = data[n:]
	}
	c.Chunk(protocol.Chunk{})
}

// Frame reads the next frame
func (c *Client) Frame() protocol.Frame {
	c.T.Helper()
	c.Conn.SetReadDeadline(time.Now().Add(Timeout))
	f, err := protocol.ReadFrame(c.Conn)
	require.NoError(c.T, err)
	return f
}

// Reply reads the next reply, collecting progress frames on the way
func (c *Client) Reply() (protocol.Header, *xdr.Decoder) {
	c.T.Helper()
	for {
		f := c.Frame()
		switch f.Flag {
		case 0:
		case protocol.ProgressFlag:
			p, err := protocol.DecodeProgress(f.Body)
			require.NoError(c.T, err)
			c.Progress = append(c.Progress, p)
			continue
		default:
			c.T.Fatalf("unexpected flag %#x while waiting for reply", f.Flag)
		}
		d := xdr.NewDecoder(f.Body)
		h, err := protocol.DecodeHeader(d)
		require.NoError(c.T, err)
		require.Equal(c.T, protocol.DirectionReply, h.Direction)
		return h, d
	}
}

// OK reads the next reply and requires it to be a success
func (c *Client) OK() *xdr.Decoder {
	c.T.Helper()
	h, d := c.Reply()
	if h.Status != protocol.StatusOK {
		r, _ := protocol.DecodeErrorReply(d)
		c.T.Fatalf("unexpected error reply: %s (%s)", r.Message, r.Errno)
	}
	return d
}

// ErrorReply reads the next reply and requires it to be an error
func (c *Client) ErrorReply() (protocol.Header, protocol.ErrorReply) {
	c.T.Helper()
	h, d := c.Reply()
	require.Equal(c.T, protocol.StatusError, h.Status)
	r, err := protocol.DecodeErrorReply(d)
	require.NoError(c.T, err)
	return h, r
}

// Download reads a FileOut stream to its end and reports whether the daemon
// cancelled it
func (c *Client) Download() ([]byte, bool) {
	c.T.Helper()
	var buf bytes.Buffer
	for {
		f := c.Frame()
		if f.Flag == protocol.ProgressFlag {
			p, err := protocol.DecodeProgress(f.Body)
			require.NoError(c.T, err)
			c.Progress = append(c.Progress, p)
			continue
		}
		require.Zero(c.T, f.Flag)
		chunk, err := protocol.DecodeChunk(f.Body)
		require.NoError(c.T, err)
		if chunk.Cancel {
			return buf.Bytes(), true
		}
		if len(chunk.Data) == 0 {
			return buf.Bytes(), false
		}
		require.LessOrEqual(c.T, len(chunk.Data), protocol.MaxChunkSize)
		buf.Write(chunk.Data)
	}
}
