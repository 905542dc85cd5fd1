package daemon

import (
	"errors"
	"fmt"
	"io"

	"github.com/criyle/go-guestfsd/protocol"
)

// ReceiveFile reads the FileIn stream of the call and passes each payload to
// sink until the end of the stream. A sink failure cancels the stream and
// returns a Local CancelError wrapping it. A cancel chunk from the library
// returns a Remote CancelError. Other errors are fatal.
func (c *Call) ReceiveFile(sink func([]byte) error) (int64, error) {
	var n int64
	for {
		chunk, err := c.readChunk()
		if err != nil {
			return n, err
		}
		if chunk.Cancel {
			c.log.Debug("receive file: received cancellation from library")
			return n, &CancelError{Origin: Remote}
		}
		if len(chunk.Data) == 0 {
			c.log.Debug("receive file: end of file")
			return n, nil
		}
		if sink == nil {
			continue
		}
		if err := sink(chunk.Data); err != nil {
			c.log.WithError(err).Debug("receive file: write error")
			if cerr := c.CancelReceive(); cerr != nil {
				return n, cerr
			}
			return n, &CancelError{Origin: Local, Err: err}
		}
		n += int64(len(chunk.Data))
	}
}

// readChunk reads the next chunk frame, skipping stray cancel flags. It
// marks the stream consumed on its last chunk.
func (c *Call) readChunk() (protocol.Chunk, error) {
	for {
		f, err := c.conn.ReadFrame()
		if err != nil {
			return protocol.Chunk{}, err
		}
		switch {
		case f.IsCancel():
			continue
		case f.Flag != 0:
			return protocol.Chunk{}, &protocol.ProtocolError{Msg: fmt.Sprintf("unexpected flag %#x in file stream", f.Flag)}
		}
		chunk, err := protocol.DecodeChunk(f.Body)
		if err != nil {
			return protocol.Chunk{}, err
		}
		if chunk.Cancel || len(chunk.Data) == 0 {
			c.received = true
		}
		return chunk, nil
	}
}

// CancelReceive sends a cancel flag to the library and discards the rest of
// the FileIn stream. It does nothing if the stream was already consumed.
func (c *Call) CancelReceive() error {
	if !c.fileIn || c.received {
		return nil
	}
	if err := c.conn.WriteFlag(protocol.CancelFlag); err != nil {
		return err
	}
	for !c.received {
		if _, err := c.readChunk(); err != nil {
			return err
		}
	}
	return nil
}

// FileWriter streams the FileOut payload of a call in chunks of at most
// MaxChunkSize. The reply must be sent before the first Write.
type FileWriter struct {
	call    *Call
	n       int64
	total   uint64
	ended   bool
	scratch [protocol.MaxChunkSize]byte
}

// SendFile returns the writer for the FileOut stream of the call. A non-zero
// total enables progress notifications as bytes are written.
func (c *Call) SendFile(total uint64) *FileWriter {
	return &FileWriter{call: c, total: total}
}

// Write sends b as chunks. If the library asked to cancel, a cancel chunk is
// sent instead and a Remote CancelError returned.
func (w *FileWriter) Write(b []byte) (int, error) {
	if !w.call.replied {
		return 0, errNotReplied
	}
	if w.ended {
		return 0, io.ErrClosedPipe
	}
	written := 0
	for len(b) > 0 {
		cancel, err := w.call.conn.PollCancel()
		if err != nil {
			return written, err
		}
		if cancel {
			w.call.log.Debug("send file: received cancellation from library")
			if err := w.end(true); err != nil {
				return written, err
			}
			return written, &CancelError{Origin: Remote}
		}
		n := min(len(b), protocol.MaxChunkSize)
		if err := w.sendChunk(protocol.Chunk{Data: b[:n]}); err != nil {
			return written, err
		}
		written += n
		w.n += int64(n)
		b = b[n:]
		if w.total > 0 {
			w.call.NotifyProgress(uint64(w.n), w.total)
		}
	}
	return written, nil
}

// ReadFrom streams r until EOF. A read error cancels the stream.
func (w *FileWriter) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	for {
		m, err := r.Read(w.scratch[:])
		if m > 0 {
			if _, werr := w.Write(w.scratch[:m]); werr != nil {
				return n, werr
			}
			n += int64(m)
		}
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			if cerr := w.Cancel(); cerr != nil {
				w.call.log.WithError(cerr).Warn("send file: cannot send cancel chunk")
				return n, cerr
			}
			return n, &CancelError{Origin: Local, Err: err}
		}
	}
}

// Written returns the payload bytes sent so far
func (w *FileWriter) Written() int64 {
	return w.n
}

// Close ends the stream normally
func (w *FileWriter) Close() error {
	if !w.call.replied {
		return errNotReplied
	}
	return w.end(false)
}

// Cancel ends the stream with a cancel chunk. It does nothing if the stream
// already ended.
func (w *FileWriter) Cancel() error {
	if !w.call.replied {
		return errNotReplied
	}
	return w.end(true)
}

func (w *FileWriter) end(cancel bool) error {
	if w.ended {
		return nil
	}
	w.ended = true
	return w.sendChunk(protocol.Chunk{Cancel: cancel})
}

func (w *FileWriter) sendChunk(chunk protocol.Chunk) error {
	b, err := protocol.EncodeChunk(chunk)
	if err != nil {
		return err
	}
	return w.call.conn.WriteFrame(b)
}

// Copy is the usual FileOut body: stream r then end the stream, cancelling
// it on any failure
func (w *FileWriter) Copy(r io.Reader) (int64, error) {
	n, err := w.ReadFrom(r)
	if err == nil {
		return n, w.Close()
	}
	var ce *CancelError
	if errors.As(err, &ce) || IsFatal(err) {
		return n, err
	}
	if cerr := w.Cancel(); cerr != nil {
		w.call.log.WithError(cerr).Warn("send file: cannot send cancel chunk")
		return n, cerr
	}
	return n, err
}
