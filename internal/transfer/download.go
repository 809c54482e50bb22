package transfer

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tanq16/urlget/internal/utils"
)

// Download reads conn until the peer closes it and writes what arrives to
// sink. In header mode the HTTP head is parsed first and only copied to the
// sink when IncludeHeader is set. It returns the number of bytes accounted to
// the output.
func Download(ctx context.Context, conn Conn, sink io.Writer, buf []byte, opts Options) (int64, error) {
	opts.setDefaults()
	log := opts.Log.With().Str("op", "transfer/download").Logger()

	var (
		count  int64
		size   = opts.Size
		parser *HeaderParser
	)
	if opts.ParseHeader {
		parser = NewHeaderParser(sink, size, opts.IncludeHeader, opts.FailOnError)
	} else {
		opts.Meter.Init(size)
	}
	inHeader := func() bool { return parser != nil && parser.InHeader() }

	for {
		if err := canceled(ctx, count); err != nil {
			return count, err
		}
		if err := conn.SetReadDeadline(opts.deadline(time.Now())); err != nil {
			return count, utils.WrapError(utils.CodeReadError, err, "Failed to arm read deadline")
		}
		n, rerr := conn.Read(buf)
		if n > 0 {
			data := buf[:n]
			if inHeader() {
				before := parser.Count()
				body, err := parser.Feed(data)
				count += parser.Count() - before
				if err != nil {
					return count, err
				}
				if !parser.InHeader() {
					size = parser.Size()
					log.Debug().Int("lines", parser.Lines()).Int64("size", size).Msg("header done")
					opts.Meter.Init(size)
				}
				data = body
			}
			if len(data) > 0 {
				if err := opts.wait(ctx, len(data)); err != nil {
					return count, err
				}
				if _, err := sink.Write(data); err != nil {
					return count, utils.WrapError(utils.CodeWriteError, err, "Failed writing output")
				}
				count += int64(len(data))
			}
		}
		if rerr != nil && !isTimeout(rerr) {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return count, utils.WrapError(utils.CodeReadError, rerr, "Failed reading from server")
		}

		now := time.Now()
		if !inHeader() {
			opts.Meter.Show(count, opts.Start, now)
		}
		if opts.expired(now) {
			return count, utils.NewError(utils.CodeOperationTimedOut,
				"Operation timed out with %d out of %d bytes received", count, size)
		}
	}

	log.Debug().Int64("bytes", count).Msg("peer closed connection")
	return count, nil
}
