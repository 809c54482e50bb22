package netconn

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
)

// Dialer is satisfied by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connect opens a TCP stream to addr:port.
func Connect(ctx context.Context, d Dialer, addr *Address, port int) (net.Conn, error) {
	if d == nil {
		d = &net.Dialer{}
	}
	return d.DialContext(ctx, "tcp", net.JoinHostPort(addr.IP.String(), strconv.Itoa(port)))
}

// IsRefused reports whether a connect failed because nothing listened.
func IsRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// ConnectFailure is the human readable reason of a connect error.
func ConnectFailure(err error) string {
	if IsRefused(err) {
		return "Connection refused"
	}
	return "Can't connect to server"
}
