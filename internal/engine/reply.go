package engine

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tanq16/urlget/internal/utils"
)

// MaxReplyLine bounds a single control channel line.
const MaxReplyLine = 4096

var (
	pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)
	sizeRegex = regexp.MustCompile(`\((\d+)(?:\s+bytes)?\)`)
)

// reply is one logical FTP response. Only its last line carries the final
// status.
type reply struct {
	lines []string
}

func (r *reply) last() string {
	if len(r.lines) == 0 {
		return ""
	}
	return r.lines[len(r.lines)-1]
}

// is reports whether the reply starts with the three digit code.
func (r *reply) is(code string) bool {
	return strings.HasPrefix(r.last(), code)
}

// code is the numeric status, 0 if there is none.
func (r *reply) code() int {
	line := r.last()
	if len(line) < 3 {
		return 0
	}
	n, _ := strconv.Atoi(line[:3])
	return n
}

// text is the human readable part of the reply.
func (r *reply) text() string {
	line := r.last()
	if len(line) < 4 {
		return line
	}
	return line[4:]
}

// readReply reads lines until one without the '-' continuation marker at
// index 3. A connection that fails mid reply yields whatever was read so the
// caller rejects it like any other unexpected reply.
func (s *session) readReply() (*reply, error) {
	r := &reply{}
	if err := s.control.SetReadDeadline(s.deadline()); err != nil {
		return r, utils.WrapError(utils.CodeReadError, err, "Failed to arm read deadline")
	}
	for {
		raw, err := s.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return r, utils.NewError(utils.CodeReadError, "Reply line longer than %d bytes", MaxReplyLine)
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if line != "" || err == nil {
			r.lines = append(r.lines, line)
			s.log.Debug().Str("op", "engine/ftp").Msg("< " + line)
		}
		if err != nil {
			if isTimeout(err) {
				return r, utils.WrapError(utils.CodeOperationTimedOut, err, "Timed out waiting for server reply")
			}
			s.log.Debug().Str("op", "engine/ftp").Err(err).Msg("control connection lost")
			return r, nil
		}
		if len(line) <= 3 || line[3] != '-' {
			return r, nil
		}
	}
}

// command sends one control channel command and reads its reply.
func (s *session) command(verb string, args ...string) (*reply, error) {
	line := verb
	if len(args) > 0 {
		line += " " + strings.Join(args, " ")
	}
	shown := line
	if verb == "PASS" {
		shown = "PASS ****"
	}
	s.log.Debug().Str("op", "engine/ftp").Msg("> " + shown)
	if err := s.send(line + "\r\n"); err != nil {
		return nil, err
	}
	return s.readReply()
}

// parsePASV extracts the data channel address of a 227 reply.
func parsePASV(line string) (string, int, error) {
	m := pasvRegex.FindStringSubmatch(line)
	if m == nil {
		return "", 0, fmt.Errorf("no address in %q", line)
	}
	var n [6]int
	for i := range n {
		v, err := strconv.Atoi(m[i+1])
		if err != nil || v < 0 || v > 255 {
			return "", 0, fmt.Errorf("invalid PASV number %s", m[i+1])
		}
		n[i] = v
	}
	host := fmt.Sprintf("%d.%d.%d.%d", n[0], n[1], n[2], n[3])
	return host, n[4]*256 + n[5], nil
}

// parseSize reads the optional "(N bytes)" of a 150 reply, -1 if absent.
func parseSize(line string) int64 {
	all := sizeRegex.FindAllStringSubmatch(line, -1)
	if len(all) == 0 {
		return -1
	}
	n, err := strconv.ParseInt(all[len(all)-1][1], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
