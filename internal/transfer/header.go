package transfer

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/tanq16/urlget/internal/utils"
)

// MaxHeaderLine bounds one accumulated header line.
const MaxHeaderLine = 4096

var (
	statusRegex = regexp.MustCompile(`^HTTP/\d\.\d\s+(\d{3})`)
	lengthRegex = regexp.MustCompile(`(?i)^content-length:\s*(\d+)`)
)

// HeaderParser splits the head of an HTTP response into lines, however the
// bytes were chunked on the wire.
type HeaderParser struct {
	w           io.Writer
	include     bool
	failOnError bool

	line     []byte
	inHeader bool
	lines    int
	count    int64
	size     int64
}

// NewHeaderParser returns a parser that starts with the expected size
// (-1 if unknown). Header lines are copied to w when include is set.
func NewHeaderParser(w io.Writer, size int64, include, failOnError bool) *HeaderParser {
	return &HeaderParser{
		w:           w,
		include:     include,
		failOnError: failOnError,
		inHeader:    true,
		size:        size,
	}
}

// Feed consumes one read and returns the part of it that belongs to the body.
func (p *HeaderParser) Feed(chunk []byte) ([]byte, error) {
	for p.inHeader && len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			if len(p.line)+len(chunk) > MaxHeaderLine {
				return nil, utils.NewError(utils.CodeReadError, "Header line longer than %d bytes", MaxHeaderLine)
			}
			p.line = append(p.line, chunk...)
			return nil, nil
		}
		if len(p.line)+i+1 > MaxHeaderLine {
			return nil, utils.NewError(utils.CodeReadError, "Header line longer than %d bytes", MaxHeaderLine)
		}
		p.line = append(p.line, chunk[:i+1]...)
		chunk = chunk[i+1:]
		if err := p.handle(strings.TrimRight(string(p.line), "\r\n")); err != nil {
			return nil, err
		}
		p.line = p.line[:0]
	}
	if p.inHeader {
		return nil, nil
	}
	return chunk, nil
}

func (p *HeaderParser) handle(line string) error {
	first := p.lines == 0
	p.lines++

	if first && p.failOnError {
		if m := statusRegex.FindStringSubmatch(line); m != nil {
			if code, _ := strconv.Atoi(m[1]); code >= 300 {
				return utils.NewError(utils.CodeHTTPNotFound, "The requested file was not found (HTTP %d)", code)
			}
		}
	}

	if p.include {
		if _, err := fmt.Fprintf(p.w, "%s\n", line); err != nil {
			return utils.WrapError(utils.CodeWriteError, err, "Failed writing output")
		}
		p.count += int64(len(line)) + 2
	}

	if line == "" {
		if p.size != -1 {
			p.size += p.count
		}
		p.inHeader = false
		return nil
	}
	if m := lengthRegex.FindStringSubmatch(line); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			p.size = n
		}
	}
	return nil
}

// InHeader reports whether the blank line has not been seen yet.
func (p *HeaderParser) InHeader() bool { return p.inHeader }

// Size is the expected size of the whole output, header lines included when
// they are copied. -1 if no length was announced.
func (p *HeaderParser) Size() int64 { return p.size }

// Count is the number of header bytes accounted to the output.
func (p *HeaderParser) Count() int64 { return p.count }

// Lines is the number of complete header lines seen.
func (p *HeaderParser) Lines() int { return p.lines }
