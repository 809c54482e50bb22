package utils

import (
	"io"
	"os"
	"time"
)

type Protocol int

const (
	ProtocolHTTP Protocol = iota
	ProtocolFTP
	ProtocolGopher
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP:
		return "HTTP"
	case ProtocolFTP:
		return "FTP"
	case ProtocolGopher:
		return "GOPHER"
	}
	return "UNKNOWN"
}

// DefaultPort returns the well-known port of the protocol.
func (p Protocol) DefaultPort() int {
	switch p {
	case ProtocolFTP:
		return 21
	case ProtocolGopher:
		return 70
	}
	return 80
}

// Options is the set of behaviour switches of a single transfer.
type Options struct {
	Verbose       bool // talk a lot
	NoProgress    bool // never show the progress meter
	IncludeHeader bool // write the HTTP header to the output too
	KeepAlive     bool // send Connection: Keep-Alive
	HeadOnly      bool // HEAD instead of GET
	FailOnError   bool // fail without output on HTTP status >= 300
	Upload        bool // FTP STOR from Request.Input
	ListOnly      bool // NLST instead of LIST for FTP directories
	Post          bool // HTTP POST of Request.PostFields
}

// Request describes one transfer. The engine never modifies it.
type Request struct {
	URL               string
	Port              int    // 0 means the protocol (or proxy) default
	Proxy             string // empty means no proxy
	Options           Options
	UserPassword      string // "user:password" for the origin
	ProxyUserPassword string // "user:password" for the proxy
	Range             string // HTTP byte range, e.g. "0-499"
	PostFields        string
	Referer           string
	Timeout           time.Duration // 0 means no timeout
	MaxRate           int64         // bytes per second, 0 means unlimited

	Input     io.Reader // upload source
	InputSize int64     // -1 if unknown

	Output         io.Writer // defaults to os.Stdout
	ErrorOutput    io.Writer // failure messages go here instead of the log
	ProgressOutput io.Writer // defaults to os.Stderr
}

// NewRequest returns a request for url with the defaults filled in.
func NewRequest(url string) *Request {
	return &Request{
		URL:            url,
		InputSize:      -1,
		Output:         os.Stdout,
		ProgressOutput: os.Stderr,
	}
}

// Validate checks the request once before any network activity.
func (r *Request) Validate() error {
	if r.URL == "" {
		return NewError(CodeURLMalformed, "<url> malformed")
	}
	if r.Port < 0 || r.Port > 65535 {
		return NewError(CodeURLMalformed, "port %d out of range", r.Port)
	}
	if r.Timeout < 0 {
		return NewError(CodeFailedInit, "negative timeout")
	}
	if r.MaxRate < 0 {
		return NewError(CodeFailedInit, "negative transfer rate")
	}
	if r.Options.Upload && r.Input == nil {
		return NewError(CodeReadError, "no upload source given")
	}
	if r.InputSize < -1 {
		return NewError(CodeFailedInit, "invalid upload size %d", r.InputSize)
	}
	if r.Output == nil {
		return NewError(CodeWriteError, "no output given")
	}
	return nil
}

// Job is one unit of work for the scheduler.
type Job struct {
	ID         string
	Label      string
	OutputPath string
	InputPath  string
	Request    *Request
}

// JobResult is what the scheduler reports for a finished job.
type JobResult struct {
	Job      Job
	Bytes    int64
	Err      error
	Duration time.Duration
}
