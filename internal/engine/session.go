package engine

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/urlget/internal/netconn"
	"github.com/tanq16/urlget/internal/progress"
	"github.com/tanq16/urlget/internal/transfer"
	"github.com/tanq16/urlget/internal/urlparse"
	"github.com/tanq16/urlget/internal/utils"
	"golang.org/x/time/rate"
)

// session is the mutable state of one Perform call. Nothing in it is shared
// with other calls.
type session struct {
	req       *utils.Request
	url       *urlparse.URL
	engine    *Engine
	control   net.Conn
	data      net.Conn
	reader    *bufio.Reader
	buf       []byte
	port      int
	start     time.Time
	log       zerolog.Logger
	meter     *progress.Meter
	limiter   *rate.Limiter
	proxyAuth *urlparse.Credentials
	ctx       context.Context
	stopWait  func() bool
}

func (s *session) close() {
	s.closeData()
	if s.stopWait != nil {
		s.stopWait()
	}
	if s.control != nil {
		s.control.Close()
		s.control = nil
	}
}

func (s *session) closeData() {
	if s.data != nil {
		s.data.Close()
		s.data = nil
	}
}

// attach adopts conn as the control connection. Cancelling ctx unblocks any
// pending control read or write.
func (s *session) attach(ctx context.Context, conn net.Conn) {
	s.control = conn
	s.ctx = ctx
	s.reader = bufio.NewReaderSize(conn, MaxReplyLine)
	s.start = time.Now()
	s.stopWait = context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
}

// deadline bounds control channel I/O by the overall timeout. Once the
// context is done it is already in the past.
func (s *session) deadline() time.Time {
	if s.ctx != nil && s.ctx.Err() != nil {
		return time.Now()
	}
	if s.req.Timeout <= 0 {
		return time.Time{}
	}
	return s.start.Add(s.req.Timeout)
}

func (s *session) send(text string) error {
	if err := s.control.SetWriteDeadline(s.deadline()); err != nil {
		return utils.WrapError(utils.CodeWriteError, err, "Failed sending request")
	}
	if _, err := s.control.Write([]byte(text)); err != nil {
		if isTimeout(err) {
			return utils.WrapError(utils.CodeOperationTimedOut, err, "Operation timed out while sending request")
		}
		return utils.WrapError(utils.CodeWriteError, err, "Failed sending request")
	}
	return nil
}

func (s *session) options(size int64, header bool) transfer.Options {
	return transfer.Options{
		Timeout:       s.req.Timeout,
		Start:         s.start,
		Size:          size,
		ParseHeader:   header,
		IncludeHeader: s.req.Options.IncludeHeader,
		FailOnError:   s.req.Options.FailOnError,
		Meter:         s.meter,
		PollInterval:  s.engine.PollInterval,
		Limiter:       s.limiter,
		Log:           s.log,
	}
}

// connect resolves host and opens a connection to it, classifying failures
// with the given codes.
func (s *session) connect(ctx context.Context, host string, port int, resolveCode, connectCode utils.Code) (net.Conn, error) {
	dialCtx := ctx
	if s.req.Timeout > 0 {
		// before the control connection exists the clock has not started
		deadline := time.Now().Add(s.req.Timeout)
		if !s.start.IsZero() {
			deadline = s.start.Add(s.req.Timeout)
		}
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	addr, err := netconn.Resolve(dialCtx, s.engine.Resolver, host, s.log)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, utils.WrapError(utils.CodeOperationTimedOut, err, "Timed out resolving %s", host)
		}
		return nil, utils.WrapError(resolveCode, err, "Couldn't resolve host '%s'", host)
	}
	conn, err := netconn.Connect(dialCtx, s.engine.Dialer, addr, port)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, utils.WrapError(utils.CodeOperationTimedOut, err, "Timed out connecting to %s", addr)
		}
		return nil, utils.WrapError(connectCode, err, "%s", netconn.ConnectFailure(err))
	}
	s.log.Debug().Str("op", "engine/connect").Msgf("Connected to %s port %d", addr, port)
	return conn, nil
}
