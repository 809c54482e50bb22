// Package netconn resolves host names and opens TCP connections.
package netconn

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
)

// Resolver is the subset of *net.Resolver used here.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Address is a resolved, connectable host.
type Address struct {
	Name string // canonical name, for logging
	IP   net.IP
}

func (a *Address) String() string {
	return fmt.Sprintf("%s (%s)", a.Name, a.IP)
}

// Resolve turns a host name or a literal address into an Address. Literal
// addresses are only reverse-resolved to find a name to log; a failing
// reverse lookup is not an error.
func Resolve(ctx context.Context, r Resolver, host string, log zerolog.Logger) (*Address, error) {
	if r == nil {
		r = net.DefaultResolver
	}
	if ip := net.ParseIP(host); ip != nil {
		addr := &Address{Name: host, IP: ip}
		names, err := r.LookupAddr(ctx, host)
		if err != nil || len(names) == 0 {
			log.Debug().Str("op", "netconn/resolve").Err(err).Msgf("reverse lookup failed for %s", host)
			return addr, nil
		}
		addr.Name = strings.TrimSuffix(names[0], ".")
		return addr, nil
	}

	// internationalized names are looked up in their punycode form
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		log.Debug().Str("op", "netconn/resolve").Err(err).Msgf("invalid host name %s", host)
		return nil, err
	}
	addrs, err := r.LookupIPAddr(ctx, ascii)
	if err != nil {
		log.Debug().Str("op", "netconn/resolve").Err(err).Msgf("lookup failed for %s", host)
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	chosen := addrs[0].IP
	for _, a := range addrs {
		if a.IP.To4() != nil {
			chosen = a.IP
			break
		}
	}
	return &Address{Name: host, IP: chosen}, nil
}
