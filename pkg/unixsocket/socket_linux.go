// Package unixsocket provides wrapper for Linux unix socket to send and recv
// messages together with file descriptors.
package unixsocket

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// oob size default to page size
const oobSize = 4 << 10 // 4kb

// MaxMessage is the largest message RecvMsg accepts. Bigger messages are
// truncated by the kernel and reported as an error.
const MaxMessage = 128 << 10

// Socket wrappers a SOCK_SEQPACKET unix socket connection
type Socket struct {
	*net.UnixConn
	recvBuff []byte
}

// Msg is the oob msg with the message
type Msg struct {
	Fds []int // unix rights
}

func newSocket(conn *net.UnixConn) *Socket {
	return &Socket{
		UnixConn: conn,
		recvBuff: make([]byte, oobSize),
	}
}

// NewSocket creates Socket conn struct using existing unix socket fd
// creates by socketpair and mark it as close_on_exec (avoid fd leak).
// The fd is owned by the returned Socket.
func NewSocket(fd int) (*Socket, error) {
	if fd < 0 {
		return nil, fmt.Errorf("NewSocket: %d is not a valid fd", fd)
	}
	syscall.SetNonblock(fd, true)
	syscall.CloseOnExec(fd)

	file := os.NewFile(uintptr(fd), "unix-socket")
	if file == nil {
		return nil, fmt.Errorf("NewSocket: %d is not a valid fd", fd)
	}
	return NewSocketFile(file)
}

// NewSocketFile creates Socket from an inherited file, e.g. from ExtraFiles.
// The file is closed and the Socket holds its own duplicate.
func NewSocketFile(file *os.File) (*Socket, error) {
	defer file.Close()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, err
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("NewSocket: %s is not a valid unix socket connection", file.Name())
	}
	return newSocket(unixConn), nil
}

// NewSocketPair creates connected unix socketpair using SOCK_SEQPACKET
func NewSocketPair() (*Socket, *Socket, error) {
	fd, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_SEQPACKET|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("NewSocketPair: failed to call socketpair %v", err)
	}

	ins, err := NewSocket(fd[0])
	if err != nil {
		syscall.Close(fd[0])
		syscall.Close(fd[1])
		return nil, nil, fmt.Errorf("NewSocketPair: failed to call NewSocket on sender %v", err)
	}

	outs, err := NewSocket(fd[1])
	if err != nil {
		ins.Close()
		syscall.Close(fd[1])
		return nil, nil, fmt.Errorf("NewSocketPair: failed to call NewSocket receiver %v", err)
	}

	return ins, outs, nil
}

// SendMsg sendmsg to unix socket and encode possible unix rights
func (s *Socket) SendMsg(b []byte, m Msg) error {
	if len(b) > MaxMessage {
		return fmt.Errorf("SendMsg: message size %d exceeds %d", len(b), MaxMessage)
	}
	var oob []byte
	if len(m.Fds) > 0 {
		oob = syscall.UnixRights(m.Fds...)
	}
	_, _, err := s.WriteMsgUnix(b, oob, nil)
	return err
}

// SendFiles sends b with the descriptors of files attached
func (s *Socket) SendFiles(b []byte, files ...*os.File) error {
	fds := make([]int, 0, len(files))
	for _, f := range files {
		fds = append(fds, int(f.Fd()))
	}
	return s.SendMsg(b, Msg{Fds: fds})
}

// RecvMsg recvmsg from unix socket and parse possible unix rights
func (s *Socket) RecvMsg(b []byte) (int, Msg, error) {
	var msg Msg
	n, oobn, flags, _, err := s.ReadMsgUnix(b, s.recvBuff)
	if err != nil {
		return 0, msg, err
	}
	// parse oob msg
	msgs, err := syscall.ParseSocketControlMessage(s.recvBuff[:oobn])
	if err != nil {
		return 0, msg, err
	}
	msg, err = parseMsg(msgs)
	if err != nil {
		return 0, msg, err
	}
	if flags&syscall.MSG_TRUNC != 0 {
		closeFds(msg.Fds)
		return 0, Msg{}, fmt.Errorf("RecvMsg: message truncated to %d bytes", n)
	}
	return n, msg, nil
}

// RecvFiles receives a message of at most MaxMessage bytes and wraps the
// attached descriptors as files
func (s *Socket) RecvFiles() ([]byte, []*os.File, error) {
	b := make([]byte, MaxMessage)
	n, msg, err := s.RecvMsg(b)
	if err != nil {
		return nil, nil, err
	}
	files := make([]*os.File, 0, len(msg.Fds))
	for _, fd := range msg.Fds {
		syscall.CloseOnExec(fd)
		files = append(files, os.NewFile(uintptr(fd), fmt.Sprintf("fd:%d", fd)))
	}
	return b[:n], files, nil
}

func closeFds(fds []int) {
	for _, f := range fds {
		syscall.Close(f)
	}
}

func parseMsg(msgs []syscall.SocketControlMessage) (msg Msg, err error) {
	defer func() {
		if err != nil {
			closeFds(msg.Fds)
			msg.Fds = nil
		}
	}()
	for _, m := range msgs {
		if m.Header.Level != syscall.SOL_SOCKET || m.Header.Type != syscall.SCM_RIGHTS {
			continue
		}
		fds, err := syscall.ParseUnixRights(&m)
		if err != nil {
			return msg, err
		}
		msg.Fds = append(msg.Fds, fds...)
	}
	return msg, nil
}
