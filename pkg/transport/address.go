package transport

import (
	"fmt"
	"net"
	"strings"
)

const tcpScheme = "tcp://"

// ParseAddress converts "tcp://host:port" or "host:port" into a host:port
// string for the net package. A "*" host means all interfaces when binding
// and localhost when dialing.
func ParseAddress(address string, dial bool) (string, error) {
	addr := strings.TrimSpace(address)
	if i := strings.Index(addr, "://"); i >= 0 {
		if !strings.EqualFold(addr[:i+3], tcpScheme) {
			return "", fmt.Errorf("transport: unsupported scheme in %q", address)
		}
		addr = addr[i+3:]
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("transport: invalid address %q: %w", address, err)
	}
	if port == "" {
		return "", fmt.Errorf("transport: missing port in %q", address)
	}
	if host == "*" {
		host = ""
	}
	if dial && host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port), nil
}
