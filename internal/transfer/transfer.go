// Package transfer moves bytes between a socket and a local stream while
// watching the clock and driving the progress meter.
package transfer

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/urlget/internal/progress"
	"github.com/tanq16/urlget/internal/utils"
	"golang.org/x/time/rate"
)

// DefaultPollInterval is the longest a single read or write may block.
const DefaultPollInterval = 2 * time.Second

// Conn is the part of a net.Conn the loops use.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type Options struct {
	Timeout       time.Duration // 0 means unlimited
	Start         time.Time     // the timeout counts from here
	Size          int64         // expected bytes, -1 if unknown
	ParseHeader   bool
	IncludeHeader bool
	FailOnError   bool
	Meter         *progress.Meter
	PollInterval  time.Duration
	Limiter       *rate.Limiter
	Log           zerolog.Logger
}

// NewLimiter returns a limiter for bytesPerSec, or nil when unlimited.
func NewLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), utils.BufferSize)
}

func (o *Options) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Start.IsZero() {
		o.Start = time.Now()
	}
	if o.Meter == nil {
		o.Meter = progress.New(nil, true)
	}
}

// deadline is the next poll tick, pulled in so that the overall timeout is
// noticed soon after it passes.
func (o *Options) deadline(now time.Time) time.Time {
	next := now.Add(o.PollInterval)
	if o.Timeout > 0 {
		if end := o.Start.Add(o.Timeout + time.Millisecond); end.Before(next) && end.After(now) {
			return end
		}
	}
	return next
}

func (o *Options) expired(now time.Time) bool {
	return o.Timeout > 0 && now.Sub(o.Start) > o.Timeout
}

// wait applies the rate limit to n bytes.
func (o *Options) wait(ctx context.Context, n int) error {
	if o.Limiter == nil {
		return nil
	}
	burst := o.Limiter.Burst()
	for n > 0 {
		k := min(n, burst)
		if err := o.Limiter.WaitN(ctx, k); err != nil {
			return utils.WrapError(utils.CodeOperationTimedOut, err, "Transfer aborted while rate limited")
		}
		n -= k
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func canceled(ctx context.Context, count int64) error {
	if err := ctx.Err(); err != nil {
		return utils.WrapError(utils.CodeOperationTimedOut, err, "Operation aborted with %d bytes transferred", count)
	}
	return nil
}
