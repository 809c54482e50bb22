// Package urlparse splits urlget style URLs into their parts.
//
//	<url>  ::= [<proto> "://"] <host> [":" <port>] ["/" <path>]
//	<host> ::= [<user> ":" <password> "@"] <host>   (FTP and HTTP only)
package urlparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tanq16/urlget/internal/utils"
)

const (
	MaxProxyURL = 4096
	maxHost     = 256
)

var (
	schemeRegex  = regexp.MustCompile(`^([^\n:/]{1,64})://([^\n/]+)([^\n]*)$`)
	browserRegex = regexp.MustCompile(`^([^\n/]+)([^\n]*)$`)
)

type Credentials struct {
	User     string
	Password string
}

// URL is a decomposed request target.
type URL struct {
	Protocol utils.Protocol
	Host     string
	Port     int    // inline port, 0 if none
	Path     string // request path; for FTP without the leading slash
	User     string
	Password string
	Explicit bool // credentials were given, not defaulted to anonymous
}

// ParseCredentials splits "user:password". The password may be empty but
// the user may not.
func ParseCredentials(s string) (*Credentials, error) {
	user, password, _ := strings.Cut(s, ":")
	if user == "" {
		return nil, utils.NewError(utils.CodeMalformedUser, "USER malformat: user name can't be zero length")
	}
	return &Credentials{User: user, Password: password}, nil
}

// Parse decomposes raw. When viaProxy is set the URL is left intact for the
// proxy to interpret. explicit, if non-nil, takes precedence over any
// credentials embedded in the URL.
func Parse(raw string, viaProxy bool, explicit *Credentials) (*URL, error) {
	if viaProxy {
		if len(raw) > MaxProxyURL {
			return nil, utils.NewError(utils.CodeURLMalformed, "<url> malformed: longer than %d bytes", MaxProxyURL)
		}
		u := &URL{Protocol: utils.ProtocolHTTP, Host: proxiedHost(raw), Path: raw}
		if explicit != nil {
			u.User, u.Password, u.Explicit = explicit.User, explicit.Password, true
		}
		return u, nil
	}

	scheme, host, path, err := split(raw)
	if err != nil {
		return nil, err
	}
	if len(host) > maxHost {
		return nil, utils.NewError(utils.CodeURLMalformed, "<url> malformed: host longer than %d bytes", maxHost)
	}
	if path == "" {
		path = "/"
	}

	u := &URL{Host: host, Path: path}
	switch strings.ToUpper(scheme) {
	case "HTTP":
		u.Protocol = utils.ProtocolHTTP
	case "FTP":
		u.Protocol = utils.ProtocolFTP
		u.Path = strings.TrimPrefix(path, "/")
	case "GOPHER":
		u.Protocol = utils.ProtocolGopher
		u.Path = GopherSelector(path)
	default:
		return nil, utils.NewError(utils.CodeUnsupportedProtocol, "Unsupported protocol: %s", scheme)
	}

	if u.Protocol == utils.ProtocolFTP || u.Protocol == utils.ProtocolHTTP {
		if explicit == nil && strings.HasPrefix(u.Host, ":") {
			return nil, utils.NewError(utils.CodeURLMalformedUser, "URL malformat: user can't be zero length")
		}
		if at := strings.LastIndex(u.Host, "@"); at >= 0 {
			userinfo := u.Host[:at]
			u.Host = u.Host[at+1:]
			if explicit == nil {
				user, password, _ := strings.Cut(userinfo, ":")
				if user == "" {
					return nil, utils.NewError(utils.CodeURLMalformedUser, "URL malformat: user can't be zero length")
				}
				u.User, u.Password, u.Explicit = user, password, true
			}
		}
		if explicit != nil {
			u.User, u.Password, u.Explicit = explicit.User, explicit.Password, true
		} else if !u.Explicit {
			u.User, u.Password = utils.AnonymousUser, utils.AnonymousPassword
		}
	}

	if err := u.splitPort(); err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, utils.NewError(utils.CodeURLMalformed, "<url> malformed: no host")
	}
	return u, nil
}

// split returns scheme, host and path, falling back to browser style input
// without a scheme.
func split(raw string) (string, string, string, error) {
	if m := schemeRegex.FindStringSubmatch(raw); m != nil {
		return m[1], m[2], m[3], nil
	}
	m := browserRegex.FindStringSubmatch(raw)
	if m == nil {
		return "", "", "", utils.NewError(utils.CodeURLMalformed, "<url> malformed")
	}
	host, path := m[1], m[2]
	scheme := "HTTP"
	switch upper := strings.ToUpper(host); {
	case strings.HasPrefix(upper, "FTP"):
		scheme = "FTP"
	case strings.HasPrefix(upper, "GOPHER"):
		scheme = "GOPHER"
	}
	return scheme, host, path, nil
}

func (u *URL) splitPort() error {
	host, port, found := strings.Cut(u.Host, ":")
	if !found {
		return nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return utils.NewError(utils.CodeURLMalformed, "<url> malformed: bad port %q", port)
	}
	u.Host, u.Port = host, n
	return nil
}

// GopherSelector drops a leading "/<item-type>" segment from a gopher path.
func GopherSelector(path string) string {
	if len(path) < 2 || path[1] < '0' || path[1] > '9' {
		return path
	}
	if i := strings.Index(path[1:], "/"); i >= 0 {
		return path[1+i:]
	}
	return path
}

// IsDirectory reports whether an FTP path names a directory listing.
func (u *URL) IsDirectory() bool {
	return u.Path == "" || strings.HasSuffix(u.Path, "/")
}

// HostHeader is the value of the HTTP Host header.
func (u *URL) HostHeader() string {
	if u.Port != 0 {
		return u.Host + ":" + strconv.Itoa(u.Port)
	}
	return u.Host
}

// proxiedHost finds the host of a URL that is otherwise passed through
// untouched, for the Host header only.
func proxiedHost(raw string) string {
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}
	if len(rest) > maxHost {
		rest = rest[:maxHost]
	}
	return rest
}
