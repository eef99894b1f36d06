// Package clusteraddr parses the comma-separated server-address list a
// ClientConfig accepts ("host1:port1,host2:port2,...") the way the
// teacher's constant.ServerConfig list is built up from discrete
// Host/Port pairs in pkg/plugin/nacos/config.go, but collapsed into
// the single string idiom this module's ClientConfig exposes.
package clusteraddr

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Parse splits raw on commas, trims whitespace, and validates each
// entry is a host:port pair with a port in 1-65535. It returns the
// addresses in the order given — callers doing round-robin dialing
// rely on a stable order for reproducible tests.
func Parse(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	addrs := make([]string, 0, len(parts))
	for _, part := range parts {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if err := validate(addr); err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("clusteraddr: no server addresses in %q", raw)
	}
	return addrs, nil
}

func validate(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("clusteraddr: %q is not host:port: %w", addr, err)
	}
	if host == "" {
		return fmt.Errorf("clusteraddr: %q is missing a host", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("clusteraddr: %q has a non-numeric port: %w", addr, err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("clusteraddr: %q port must be 1-65535, got %d", addr, port)
	}
	return nil
}
