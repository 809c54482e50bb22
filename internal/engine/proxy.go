package engine

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tanq16/urlget/internal/urlparse"
	"github.com/tanq16/urlget/internal/utils"
)

// DefaultProxyPort is used when neither the request nor the proxy string
// names a port.
const DefaultProxyPort = 1080

type proxyTarget struct {
	host  string
	port  int
	creds *urlparse.Credentials
}

// parseProxy reads "[scheme://][user:password@]host[:port]". Credentials
// given out of band win over the ones in the string.
func parseProxy(raw string, port int, userPassword string) (*proxyTarget, error) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, utils.WrapError(utils.CodeURLMalformed, err, "Proxy %q malformed", raw)
	}

	p := &proxyTarget{host: u.Hostname(), port: port}
	if p.port == 0 {
		p.port = DefaultProxyPort
		if s := u.Port(); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return nil, utils.NewError(utils.CodeURLMalformed, "Proxy port %q malformed", s)
			}
			p.port = n
		}
	}

	switch {
	case userPassword != "":
		creds, err := urlparse.ParseCredentials(userPassword)
		if err != nil {
			return nil, err
		}
		p.creds = creds
	case u.User != nil:
		if u.User.Username() == "" {
			return nil, utils.NewError(utils.CodeMalformedUser, "Proxy user name can't be zero length")
		}
		password, _ := u.User.Password()
		p.creds = &urlparse.Credentials{User: u.User.Username(), Password: password}
	}
	return p, nil
}
