package forward

import (
	"errors"
	"net"
	"net/url"
	"syscall"
)

// isConnectError reports whether err is a connection-establishment failure:
// upstream unreachable, connection refused, or DNS resolution failure.
// Timeouts do not count: a timed-out request may have reached the upstream
// and produced side effects, so it must not be replayed.
func isConnectError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return isConnectError(urlErr.Err)
	}

	return false
}
