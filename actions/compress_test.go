package actions

import (
	"bytes"
	"io"
	"testing"

	"github.com/criyle/go-guestfsd/pkg/xdr"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressArgs(ctype, path string, level int32) func(x *xdr.Encoder) {
	return func(x *xdr.Encoder) {
		x.String(ctype, maxString)
		x.String(path, maxString)
		x.Int32(level)
	}
}

func decompress(t *testing.T, ctype string, b []byte) []byte {
	t.Helper()
	var r io.Reader
	switch ctype {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(b))
		require.NoError(t, err)
		r = zr
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(b))
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	case "lz4":
		r = lz4.NewReader(bytes.NewReader(b))
	}
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestCompressOut(t *testing.T) {
	data := bytes.Repeat([]byte("compressible guest data "), 4000)
	tests := []struct {
		ctype string
		level int32 // 0 for the default
	}{
		{"gzip", 0}, {"gzip", 1}, {"gzip", 9},
		{"zstd", 0}, {"zstd", 3}, {"zstd", 19},
		{"lz4", 0}, {"lz4", 1}, {"lz4", 9},
	}
	e := newEnv(t, true)
	e.writeFile("file", data)
	for i, tc := range tests {
		h := e.Header(ProcCompressOut, uint32(i))
		if tc.level != 0 {
			h.OptargsBitmask = 1 << compressLevel
		}
		e.Send(h, compressArgs(tc.ctype, "/file", tc.level))
		e.OK()
		got, cancelled := e.Download()
		require.False(t, cancelled, "%s level %d", tc.ctype, tc.level)
		assert.Less(t, len(got), len(data))
		assert.Equal(t, data, decompress(t, tc.ctype, got), "%s level %d", tc.ctype, tc.level)
	}
}

func TestCompressOutErrors(t *testing.T) {
	e := newEnv(t, true)
	e.writeFile("file", []byte("x"))

	e.Call(ProcCompressOut, 1, compressArgs("bzip3", "/file", 0))
	_, r := e.ErrorReply()
	assert.Equal(t, "unknown compression type", r.Message)

	h := e.Header(ProcCompressOut, 2)
	h.OptargsBitmask = 1 << compressLevel
	e.Send(h, compressArgs("gzip", "/file", 10))
	_, r = e.ErrorReply()
	assert.Equal(t, "gzip: incorrect value for level parameter", r.Message)

	// level ignored without its optarg bit
	e.Call(ProcCompressOut, 3, compressArgs("gzip", "/file", 10))
	e.OK()
	got, _ := e.Download()
	assert.Equal(t, []byte("x"), decompress(t, "gzip", got))

	e.Call(ProcCompressOut, 4, compressArgs("gzip", "/missing", 0))
	_, r = e.ErrorReply()
	assert.Equal(t, "ENOENT", r.Errno)
}

func TestCompressDeviceOut(t *testing.T) {
	e := newEnv(t, false)

	e.Call(ProcCompressDeviceOut, 1, compressArgs("zstd", "/dev/null", 0))
	e.OK()
	got, cancelled := e.Download()
	require.False(t, cancelled)
	assert.Empty(t, decompress(t, "zstd", got))

	e.Call(ProcCompressDeviceOut, 2, compressArgs("zstd", "/file", 0))
	_, r := e.ErrorReply()
	assert.Equal(t, "compress_device_out: /file: not a device name", r.Message)
}
