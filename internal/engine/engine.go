// Package engine performs a single URL transfer over HTTP, FTP or Gopher.
package engine

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/urlget/internal/netconn"
	"github.com/tanq16/urlget/internal/output"
	"github.com/tanq16/urlget/internal/progress"
	"github.com/tanq16/urlget/internal/transfer"
	"github.com/tanq16/urlget/internal/urlparse"
	"github.com/tanq16/urlget/internal/utils"
)

// Engine holds the pluggable network pieces. The zero value uses the system
// resolver and dialer. An Engine has no per-transfer state and may be used by
// several goroutines at once.
type Engine struct {
	Resolver     netconn.Resolver
	Dialer       netconn.Dialer
	PollInterval time.Duration
}

func New() *Engine {
	return &Engine{PollInterval: transfer.DefaultPollInterval}
}

// Perform runs req with a default Engine.
func Perform(ctx context.Context, req *utils.Request) (int64, error) {
	return New().Perform(ctx, req)
}

// Perform transfers the resource req names and returns the number of bytes
// written to (or, for uploads, read from) the local side. Every socket it
// opens is closed before it returns. A failure is a *utils.Error whose Code
// classifies it.
func (e *Engine) Perform(ctx context.Context, req *utils.Request) (int64, error) {
	if req == nil {
		return 0, utils.NewError(utils.CodeFailedInit, "no request given")
	}
	log := utils.SessionLogger("engine", req.Options.Verbose)
	n, err := e.perform(ctx, req, log)
	if err != nil {
		report(req, log, err)
	}
	return n, err
}

func (e *Engine) perform(ctx context.Context, req *utils.Request, log zerolog.Logger) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	var explicit *urlparse.Credentials
	if req.UserPassword != "" {
		creds, err := urlparse.ParseCredentials(req.UserPassword)
		if err != nil {
			return 0, err
		}
		explicit = creds
	}
	viaProxy := req.Proxy != ""
	u, err := urlparse.Parse(req.URL, viaProxy, explicit)
	if err != nil {
		return 0, err
	}

	s := &session{
		req:     req,
		url:     u,
		engine:  e,
		buf:     make([]byte, utils.BufferSize),
		log:     log,
		meter:   progress.New(req.ProgressOutput, req.Options.NoProgress),
		limiter: transfer.NewLimiter(req.MaxRate),
	}
	if output.IsTerminal(req.ProgressOutput) {
		s.meter.Style = output.FDebug
	}
	defer s.close()

	host, port := u.Host, req.Port
	resolveCode := utils.CodeCouldntResolveHost
	if viaProxy {
		p, err := parseProxy(req.Proxy, req.Port, req.ProxyUserPassword)
		if err != nil {
			return 0, err
		}
		host, port, resolveCode = p.host, p.port, utils.CodeCouldntResolveProxy
		s.proxyAuth = p.creds
	} else if port == 0 {
		port = u.Port
		if port == 0 {
			port = u.Protocol.DefaultPort()
		}
	}
	s.port = port
	log.Debug().Str("op", "engine/perform").Str("protocol", u.Protocol.String()).
		Str("host", host).Int("port", port).Bool("proxy", viaProxy).Msg("starting transfer")

	conn, err := s.connect(ctx, host, port, resolveCode, utils.CodeCouldntConnect)
	if err != nil {
		return 0, err
	}
	s.attach(ctx, conn)

	var n int64
	switch u.Protocol {
	case utils.ProtocolFTP:
		n, err = s.ftp(ctx)
	case utils.ProtocolGopher:
		n, err = s.gopher(ctx)
	default:
		n, err = s.http(ctx)
	}
	s.meter.End()
	if err != nil {
		return n, err
	}

	if n > 0 {
		secs := int64(time.Since(s.start) / time.Second)
		log.Info().Str("op", "engine/perform").
			Msgf("%d bytes transferred in %d seconds (%d bytes/sec)", n, secs, n/max(secs, 1))
	}
	return n, nil
}

// report hands the failure message to the caller's buffer when there is
// one, and to the log otherwise.
func report(req *utils.Request, log zerolog.Logger, err error) {
	msg := err.Error()
	if req.ErrorOutput != nil {
		io.WriteString(req.ErrorOutput, utils.TruncateMessage(msg, utils.ErrorSize))
		return
	}
	log.Error().Str("op", "engine/perform").Stringer("code", utils.CodeOf(err)).Msg(msg)
}
