package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tanq16/urlget/internal/codec"
	"github.com/tanq16/urlget/internal/transfer"
	"github.com/tanq16/urlget/internal/utils"
)

const acceptTypes = "image/gif, image/x-xbitmap, image/jpeg, image/pjpeg, */*"

// httpRequest renders the request head, and the body for POST.
func (s *session) httpRequest() string {
	req, opts := s.req, s.req.Options
	method := "GET"
	switch {
	case opts.HeadOnly:
		method = "HEAD"
	case opts.Post:
		method = "POST"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.0\r\n", method, s.url.Path)
	if s.proxyAuth != nil {
		fmt.Fprintf(&b, "Proxy-authorization: %s\r\n", codec.BasicAuth(s.proxyAuth.User, s.proxyAuth.Password))
	}
	if s.url.Explicit {
		fmt.Fprintf(&b, "Authorization: %s\r\n", codec.BasicAuth(s.url.User, s.url.Password))
	}
	if opts.KeepAlive {
		b.WriteString("Connection: Keep-Alive\r\n")
	}
	if req.Range != "" {
		fmt.Fprintf(&b, "Range: bytes=%s\r\n", req.Range)
	}
	fmt.Fprintf(&b, "Host: %s\r\n", s.url.HostHeader())
	fmt.Fprintf(&b, "User-Agent: %s\r\n", utils.UserAgent())
	b.WriteString("Pragma: no-cache\r\n")
	fmt.Fprintf(&b, "Accept: %s\r\n", acceptTypes)
	if req.Referer != "" {
		fmt.Fprintf(&b, "Referer: %s\r\n", req.Referer)
	}
	if method == "POST" {
		fmt.Fprintf(&b, "Content-length: %d\r\n", len(req.PostFields))
		b.WriteString("Content-type: application/x-www-form-urlencoded\r\n\r\n")
		b.WriteString(req.PostFields)
	} else {
		b.WriteString("\r\n")
	}
	return b.String()
}

func (s *session) http(ctx context.Context) (int64, error) {
	head := s.httpRequest()
	for _, line := range strings.Split(head, "\r\n") {
		if line == "" {
			break
		}
		s.log.Debug().Str("op", "engine/http").Msg("> " + line)
	}
	if err := s.send(head); err != nil {
		return 0, err
	}
	return transfer.Download(ctx, s.control, s.req.Output, s.buf, s.options(-1, true))
}
