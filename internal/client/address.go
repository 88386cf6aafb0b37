package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/DoyleJ11/monster-battle-net/internal/types"
)

var ErrBadAddress = errors.New("bad address")

// ParseLine splits "address[:port] [name]" into a dialable host:port and
// the optional display name.
func ParseLine(line string) (addr, name string, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", "", fmt.Errorf("%w: empty", ErrBadAddress)
	}
	addr, err = ParseAddress(fields[0])
	if err != nil {
		return "", "", err
	}
	return addr, strings.Join(fields[1:], " "), nil
}

// ParseAddress accepts host or host:port (IPv6 hosts in brackets) and fills
// in types.DefaultPort when the port is missing.
func ParseAddress(s string) (string, error) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		var addrErr *net.AddrError
		if !errors.As(err, &addrErr) || addrErr.Err != "missing port in address" {
			return "", fmt.Errorf("%w: %q", ErrBadAddress, s)
		}
		host = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		port = strconv.Itoa(int(types.DefaultPort))
	}
	if host == "" || strings.ContainsAny(host, "/ ") {
		return "", fmt.Errorf("%w: %q has no host", ErrBadAddress, s)
	}
	if n, err := strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
		return "", fmt.Errorf("%w: port %q", ErrBadAddress, port)
	}
	return net.JoinHostPort(host, port), nil
}
