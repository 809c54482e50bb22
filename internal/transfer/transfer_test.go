package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/urlget/internal/progress"
	"github.com/tanq16/urlget/internal/utils"
)

// serve writes each chunk as its own write on the server end of a pipe and
// closes it afterwards.
func serve(t *testing.T, chunks ...string) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		for _, c := range chunks {
			if _, err := server.Write([]byte(c)); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { client.Close() })
	return client
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDownloadHeaderMode(t *testing.T) {
	conn := serve(t, "HTTP/1.0 200 OK\r\n", "Content-Length: 10\r\n", "\r\n", "0123", "456789")
	var sink bytes.Buffer
	n, err := Download(context.Background(), conn, &sink, make([]byte, utils.BufferSize), Options{
		Size:        -1,
		ParseHeader: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
	assert.Equal(t, "0123456789", sink.String())
}

func TestDownloadIncludeHeader(t *testing.T) {
	conn := serve(t, "HTTP/1.0 200 OK\r\n\r\nbody")
	var sink bytes.Buffer
	n, err := Download(context.Background(), conn, &sink, make([]byte, 64), Options{
		Size:          -1,
		ParseHeader:   true,
		IncludeHeader: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.0 200 OK\n\nbody", sink.String())
	assert.Equal(t, int64(15+2+2+4), n)
}

func TestDownloadRaw(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 3*utils.BufferSize+7)
	conn := serve(t, string(payload))
	var sink, meter bytes.Buffer
	n, err := Download(context.Background(), conn, &sink, make([]byte, utils.BufferSize), Options{
		Size:  int64(len(payload)),
		Meter: progress.New(&meter, false),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, sink.Bytes())
	assert.Contains(t, meter.String(), "100%")
}

func TestDownloadFailOnError(t *testing.T) {
	conn := serve(t, "HTTP/1.0 500 Internal Server Error\r\n\r\noops")
	var sink bytes.Buffer
	_, err := Download(context.Background(), conn, &sink, make([]byte, 64), Options{
		Size:          -1,
		ParseHeader:   true,
		IncludeHeader: true,
		FailOnError:   true,
	})
	assert.Equal(t, utils.CodeHTTPNotFound, utils.CodeOf(err))
	assert.Zero(t, sink.Len())
}

func TestDownloadHeaderOverflow(t *testing.T) {
	conn := serve(t, string(bytes.Repeat([]byte("h"), MaxHeaderLine+1)))
	_, err := Download(context.Background(), conn, io.Discard, make([]byte, 1024), Options{
		Size:        -1,
		ParseHeader: true,
	})
	assert.Equal(t, utils.CodeReadError, utils.CodeOf(err))
}

func TestDownloadSinkFailure(t *testing.T) {
	conn := serve(t, "data")
	_, err := Download(context.Background(), conn, failingWriter{}, make([]byte, 64), Options{Size: -1})
	assert.Equal(t, utils.CodeWriteError, utils.CodeOf(err))
}

func TestDownloadTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	timeout := 300 * time.Millisecond
	start := time.Now()
	_, err := Download(context.Background(), client, io.Discard, make([]byte, 64), Options{
		Size:         -1,
		Timeout:      timeout,
		Start:        start,
		PollInterval: 50 * time.Millisecond,
	})
	elapsed := time.Since(start)
	assert.Equal(t, utils.CodeOperationTimedOut, utils.CodeOf(err))
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)
}

func TestDownloadRateLimited(t *testing.T) {
	payload := bytes.Repeat([]byte("r"), 2*utils.BufferSize)
	conn := serve(t, string(payload))
	var sink bytes.Buffer
	n, err := Download(context.Background(), conn, &sink, make([]byte, utils.BufferSize), Options{
		Size:    -1,
		Limiter: NewLimiter(1 << 30),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Nil(t, NewLimiter(0))
}

func TestUpload(t *testing.T) {
	client, server := net.Pipe()
	received := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(server)
		received <- data
	}()

	payload := bytes.Repeat([]byte("0123456789"), 3000)
	n, err := Upload(context.Background(), client, bytes.NewReader(payload), make([]byte, utils.BufferSize), Options{
		Size: int64(len(payload)),
	})
	require.NoError(t, err)
	client.Close()
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, <-received)
}

func TestUploadWriteFailure(t *testing.T) {
	client, server := net.Pipe()
	server.Close()
	defer client.Close()
	_, err := Upload(context.Background(), client, bytes.NewReader([]byte("abc")), make([]byte, 64), Options{Size: 3})
	assert.Equal(t, utils.CodeFTPWriteError, utils.CodeOf(err))
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("bad sector") }

func TestUploadSourceFailure(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()
	_, err := Upload(context.Background(), client, brokenReader{}, make([]byte, 64), Options{Size: -1})
	assert.Equal(t, utils.CodeReadError, utils.CodeOf(err))
}

func TestUploadTimeout(t *testing.T) {
	// nobody reads the other end, so every write stalls
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	start := time.Now()
	_, err := Upload(context.Background(), client, bytes.NewReader([]byte("stuck")), make([]byte, 64), Options{
		Size:         -1,
		Timeout:      200 * time.Millisecond,
		Start:        start,
		PollInterval: 50 * time.Millisecond,
	})
	assert.Equal(t, utils.CodeOperationTimedOut, utils.CodeOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}
