package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/urlget/internal/utils"
)

// ftpServer scripts a control connection. Handlers override the default
// reply of a verb.
type ftpServer struct {
	t        *testing.T
	listener net.Listener
	data     net.Listener
	banner   string
	payload  []byte
	handlers map[string]func(c *textproto.Conn, args string)

	mu       sync.Mutex
	commands []string
	uploaded []byte
	done     chan struct{}
}

func newFTPServer(t *testing.T) *ftpServer {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	d, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &ftpServer{
		t:        t,
		listener: l,
		data:     d,
		banner:   "220 Service ready",
		handlers: make(map[string]func(*textproto.Conn, string)),
		done:     make(chan struct{}),
	}
	t.Cleanup(s.stop)
	return s
}

func (s *ftpServer) url(path string) string {
	return fmt.Sprintf("ftp://127.0.0.1:%d/%s", s.listener.Addr().(*net.TCPAddr).Port, path)
}

func (s *ftpServer) pasvReply() string {
	port := s.data.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("227 Entering Passive Mode (127,0,0,1,%d,%d).", port/256, port%256)
}

func (s *ftpServer) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// transfer answers a data command: preliminary reply, the data connection,
// then the final reply.
func (s *ftpServer) transfer(c *textproto.Conn, preliminary string, send []byte, final string) {
	_ = c.PrintfLine("%s", preliminary)
	d, err := s.data.Accept()
	if err != nil {
		return
	}
	if send != nil {
		d.Write(send)
	} else {
		got, _ := io.ReadAll(d)
		s.mu.Lock()
		s.uploaded = got
		s.mu.Unlock()
	}
	d.Close()
	_ = c.PrintfLine("%s", final)
}

func (s *ftpServer) start() {
	go func() {
		defer close(s.done)
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if s.banner != "" {
			fmt.Fprintf(conn, "%s\r\n", s.banner)
		}

		c := textproto.NewConn(conn)
		for {
			line, err := c.ReadLine()
			if err != nil {
				return
			}
			cmd, args, _ := strings.Cut(line, " ")
			cmd = strings.ToUpper(cmd)
			s.mu.Lock()
			s.commands = append(s.commands, line)
			s.mu.Unlock()

			if handler, ok := s.handlers[cmd]; ok {
				handler(c, args)
				continue
			}
			switch cmd {
			case "USER":
				_ = c.PrintfLine("331 User name okay, need password.")
			case "PASS":
				_ = c.PrintfLine("230 User logged in, proceed.")
			case "PASV":
				_ = c.PrintfLine("%s", s.pasvReply())
			case "TYPE":
				_ = c.PrintfLine("200 Command okay.")
			case "RETR":
				s.transfer(c, fmt.Sprintf("150 Opening BINARY mode data connection for %s (%d bytes).", args, len(s.payload)), s.payload, "226 Transfer complete.")
			case "LIST", "NLST":
				s.transfer(c, "150 Opening ASCII mode data connection for file list", s.payload, "226 Transfer complete.")
			case "STOR":
				s.transfer(c, "150 Ok to send data.", nil, "226 Transfer complete.")
			default:
				_ = c.PrintfLine("502 Command not implemented.")
			}
		}
	}()
}

func (s *ftpServer) stop() {
	s.listener.Close()
	s.data.Close()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
}

// closed reports whether the client hung up the control connection.
func (s *ftpServer) closed() bool {
	select {
	case <-s.done:
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestFTPRetrieve(t *testing.T) {
	s := newFTPServer(t)
	s.payload = bytes.Repeat([]byte("ftp-data "), 5000)
	s.start()

	req, out := newRequest(s.url("pub/file.bin"))
	n, err := testEngine().Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(len(s.payload)), n)
	assert.Equal(t, s.payload, out.Bytes())
	assert.True(t, s.closed())
	assert.Equal(t, []string{
		"USER anonymous",
		"PASS " + utils.AnonymousPassword,
		"PASV",
		"TYPE I",
		"RETR pub/file.bin",
	}, s.received())
}

func TestFTPExplicitCredentialsAndMultilineBanner(t *testing.T) {
	s := newFTPServer(t)
	s.banner = "220-Welcome\r\n220-to the\r\n220 test server"
	s.payload = []byte("x")
	s.start()

	req, _ := newRequest(strings.Replace(s.url("f"), "ftp://", "ftp://bob:hunter2@", 1))
	_, err := testEngine().Perform(context.Background(), req)
	require.NoError(t, err)
	cmds := s.received()
	assert.Equal(t, "USER bob", cmds[0])
	assert.Equal(t, "PASS hunter2", cmds[1])
}

func TestFTPLoginWithoutPassword(t *testing.T) {
	s := newFTPServer(t)
	s.payload = []byte("abc")
	s.handlers["USER"] = func(c *textproto.Conn, args string) {
		_ = c.PrintfLine("230 Welcome, no password needed.")
	}
	s.start()

	req, out := newRequest(s.url("f"))
	_, err := testEngine().Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.String())
	assert.NotContains(t, s.received(), "PASS "+utils.AnonymousPassword)
}

func TestFTPDirectoryListing(t *testing.T) {
	for _, listOnly := range []bool{false, true} {
		t.Run(fmt.Sprintf("listOnly=%v", listOnly), func(t *testing.T) {
			s := newFTPServer(t)
			s.payload = []byte("a.txt\r\nb.txt\r\n")
			s.start()

			req, out := newRequest(s.url("pub/"))
			req.Options.ListOnly = listOnly
			_, err := testEngine().Perform(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, string(s.payload), out.String())

			cmds := s.received()
			assert.Equal(t, "TYPE A", cmds[3])
			if listOnly {
				assert.Equal(t, "NLST pub/", cmds[4])
			} else {
				assert.Equal(t, "LIST pub/", cmds[4])
			}
		})
	}
}

func TestFTPRootListing(t *testing.T) {
	s := newFTPServer(t)
	s.payload = []byte("pub\r\n")
	s.start()

	req, _ := newRequest(strings.TrimSuffix(s.url(""), "/"))
	_, err := testEngine().Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "LIST /", s.received()[4])
}

func TestFTPPartialFile(t *testing.T) {
	s := newFTPServer(t)
	s.handlers["RETR"] = func(c *textproto.Conn, args string) {
		s.transfer(c, "150 Opening BINARY mode data connection (100 bytes).", bytes.Repeat([]byte("p"), 50), "226 Transfer complete.")
	}
	s.start()

	req, out := newRequest(s.url("short.bin"))
	n, err := testEngine().Perform(context.Background(), req)
	assert.Equal(t, utils.CodeFTPPartialFile, utils.CodeOf(err))
	assert.Equal(t, int64(50), n)
	assert.Equal(t, 50, out.Len())
	assert.True(t, s.closed())
}

func TestFTPUnknownSizeSkipsPartialCheck(t *testing.T) {
	s := newFTPServer(t)
	s.handlers["RETR"] = func(c *textproto.Conn, args string) {
		s.transfer(c, "150 Here it comes.", []byte("whatever"), "226 Transfer complete.")
	}
	s.start()

	req, out := newRequest(s.url("f"))
	_, err := testEngine().Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "whatever", out.String())
}

func TestFTPUpload(t *testing.T) {
	s := newFTPServer(t)
	s.start()

	payload := bytes.Repeat([]byte("upload!"), 4000)
	req, _ := newRequest(s.url("incoming/up.bin"))
	req.Options.Upload = true
	req.Input = bytes.NewReader(payload)
	req.InputSize = int64(len(payload))

	n, err := testEngine().Perform(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.True(t, s.closed())
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, payload, s.uploaded)
	assert.Contains(t, s.commands, "STOR incoming/up.bin")
}

func TestFTPUploadPartial(t *testing.T) {
	s := newFTPServer(t)
	s.start()

	req, _ := newRequest(s.url("up.bin"))
	req.Options.Upload = true
	req.Input = strings.NewReader("short")
	req.InputSize = 10

	n, err := testEngine().Perform(context.Background(), req)
	assert.Equal(t, utils.CodeFTPPartialFile, utils.CodeOf(err))
	assert.Equal(t, int64(5), n)
}

func TestFTPFailures(t *testing.T) {
	reply := func(text string) func(*textproto.Conn, string) {
		return func(c *textproto.Conn, _ string) { _ = c.PrintfLine("%s", text) }
	}
	tests := []struct {
		name     string
		banner   string
		handlers map[string]string
		path     string
		upload   bool
		code     utils.Code
	}{
		{name: "banner", banner: "421 Too many users", code: utils.CodeFTPWeirdServerReply},
		{name: "user denied", handlers: map[string]string{"USER": "530 Not allowed"}, code: utils.CodeFTPAccessDenied},
		{name: "user odd", handlers: map[string]string{"USER": "500 What?"}, code: utils.CodeFTPWeirdUserReply},
		{name: "password wrong", handlers: map[string]string{"PASS": "530 Login incorrect"}, code: utils.CodeFTPUserPasswordIncorrect},
		{name: "password odd", handlers: map[string]string{"PASS": "332 Need account"}, code: utils.CodeFTPWeirdPassReply},
		{name: "pasv odd", handlers: map[string]string{"PASV": "500 No passive"}, code: utils.CodeFTPWeirdPasvReply},
		{name: "pasv format", handlers: map[string]string{"PASV": "227 Entering Passive Mode 127,0,0,1"}, code: utils.CodeFTPWeird227Format},
		{name: "pasv range", handlers: map[string]string{"PASV": "227 Entering Passive Mode (300,0,0,1,4,51)"}, code: utils.CodeFTPWeird227Format},
		{name: "binary", handlers: map[string]string{"TYPE": "504 Not supported"}, code: utils.CodeFTPCouldntSetBinary},
		{name: "ascii", handlers: map[string]string{"TYPE": "504 Not supported"}, path: "dir/", code: utils.CodeFTPCouldntSetASCII},
		{name: "retr", handlers: map[string]string{"RETR": "550 No such file"}, code: utils.CodeFTPCouldntRetrFile},
		{name: "stor", handlers: map[string]string{"STOR": "553 Not allowed"}, upload: true, code: utils.CodeFTPCouldntStorFile},
		{name: "user reply prefix is strict", handlers: map[string]string{"USER": "33 short"}, code: utils.CodeFTPWeirdUserReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newFTPServer(t)
			if tt.banner != "" {
				s.banner = tt.banner
			}
			for verb, text := range tt.handlers {
				s.handlers[verb] = reply(text)
			}
			s.start()

			path := tt.path
			if path == "" {
				path = "file.bin"
			}
			req, _ := newRequest(s.url(path))
			if tt.upload {
				req.Options.Upload = true
				req.Input = strings.NewReader("data")
			}
			_, err := testEngine().Perform(context.Background(), req)
			assert.Equal(t, tt.code, utils.CodeOf(err), "%v", err)
			assert.True(t, s.closed(), "control connection left open")
		})
	}
}

func TestFTPFinalReply(t *testing.T) {
	s := newFTPServer(t)
	s.handlers["RETR"] = func(c *textproto.Conn, args string) {
		s.transfer(c, "150 Here (4 bytes)", []byte("data"), "451 Local error in processing")
	}
	s.start()

	req, _ := newRequest(s.url("f"))
	var msg bytes.Buffer
	req.ErrorOutput = &msg
	_, err := testEngine().Perform(context.Background(), req)
	assert.Equal(t, utils.CodeFTPWriteError, utils.CodeOf(err))
	assert.Equal(t, "Local error in processing", msg.String())
}

func TestFTPDataChannelRefused(t *testing.T) {
	s := newFTPServer(t)
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := closed.Addr().(*net.TCPAddr).Port
	closed.Close()
	s.handlers["PASV"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("227 Entering Passive Mode (127,0,0,1,%d,%d)", port/256, port%256)
	}
	s.start()

	req, _ := newRequest(s.url("f"))
	_, err = testEngine().Perform(context.Background(), req)
	assert.Equal(t, utils.CodeFTPCantReconnect, utils.CodeOf(err))
}

func TestFTPDataChannelClosedOnError(t *testing.T) {
	s := newFTPServer(t)
	s.handlers["RETR"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 Gone")
	}
	s.start()

	req, _ := newRequest(s.url("f"))
	_, err := testEngine().Perform(context.Background(), req)
	require.Equal(t, utils.CodeFTPCouldntRetrFile, utils.CodeOf(err))

	// the data connection the client opened after PASV is waiting in the
	// backlog and must already be closed
	d, err := s.data.Accept()
	require.NoError(t, err)
	defer d.Close()
	d.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = d.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestFTPControlTimeout(t *testing.T) {
	s := newFTPServer(t)
	s.banner = ""
	s.start()

	req, _ := newRequest(s.url("f"))
	req.Timeout = 300 * time.Millisecond
	start := time.Now()
	_, err := testEngine().Perform(context.Background(), req)
	assert.Equal(t, utils.CodeOperationTimedOut, utils.CodeOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}
