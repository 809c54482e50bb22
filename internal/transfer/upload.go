package transfer

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/tanq16/urlget/internal/utils"
)

// Upload copies src to conn until src is exhausted.
func Upload(ctx context.Context, conn Conn, src io.Reader, buf []byte, opts Options) (int64, error) {
	opts.setDefaults()
	log := opts.Log.With().Str("op", "transfer/upload").Logger()
	opts.Meter.Init(opts.Size)

	var count int64
	for {
		if err := canceled(ctx, count); err != nil {
			return count, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			if err := opts.wait(ctx, n); err != nil {
				return count, err
			}
			written, err := writeAll(conn, buf[:n], &opts, count)
			count += int64(written)
			if err != nil {
				return count, err
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return count, utils.WrapError(utils.CodeReadError, rerr, "Failed reading upload source")
		}

		now := time.Now()
		opts.Meter.Show(count, opts.Start, now)
		if opts.expired(now) {
			return count, utils.NewError(utils.CodeOperationTimedOut, "Upload timed out with %d bytes sent", count)
		}
	}

	opts.Meter.Show(count, opts.Start, time.Now())
	log.Debug().Int64("bytes", count).Msg("upload source exhausted")
	return count, nil
}

// writeAll writes p completely, ticking the clock whenever the socket is not
// ready within one poll interval.
func writeAll(conn Conn, p []byte, opts *Options, sent int64) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := conn.SetWriteDeadline(opts.deadline(time.Now())); err != nil {
			return total, utils.WrapError(utils.CodeFTPWriteError, err, "Failed uploading file")
		}
		n, err := conn.Write(p)
		total += n
		p = p[n:]
		if err == nil {
			continue
		}
		if !isTimeout(err) {
			return total, utils.WrapError(utils.CodeFTPWriteError, err, "Failed uploading file")
		}
		now := time.Now()
		opts.Meter.Show(sent+int64(total), opts.Start, now)
		if opts.expired(now) {
			return total, utils.NewError(utils.CodeOperationTimedOut, "Upload timed out with %d bytes sent", sent+int64(total))
		}
	}
	return total, nil
}
