package proxy

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Endpoint is one upstream proxy parsed from the proxy list. Immutable after parsing.
type Endpoint struct {
	Host  string
	Port  int
	User  string
	Pass  string
	Label string
}

// URL renders the endpoint as an http proxy URL, with credentials when present.
func (e Endpoint) URL() *url.URL {
	u := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", e.Host, e.Port),
	}
	if e.User != "" && e.Pass != "" {
		u.User = url.UserPassword(e.User, e.Pass)
	}
	return u
}

func (e Endpoint) String() string {
	if e.Label != "" {
		return fmt.Sprintf("%s:%d (%s)", e.Host, e.Port, e.Label)
	}
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// ParseEndpoint parses a single proxy list line. Supported formats:
//
//	host:port
//	host:port:label
//	host:port:user:pass:label
func ParseEndpoint(line string) (Endpoint, error) {
	parts := strings.Split(line, ":")
	if len(parts) < 2 {
		return Endpoint{}, fmt.Errorf("invalid proxy line %q", line)
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port <= 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid proxy port in %q", line)
	}

	ep := Endpoint{Host: parts[0], Port: port}

	switch {
	case len(parts) >= 4:
		ep.User = parts[2]
		ep.Pass = parts[3]
		ep.Label = strings.Join(parts[4:], ":")
	case len(parts) == 3:
		ep.Label = parts[2]
	}

	return ep, nil
}

// LoadFile reads a newline-delimited proxy list. Blank lines and lines starting
// with '#' are ignored.
func LoadFile(path string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy file: %w", err)
	}

	var endpoints []Endpoint
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ep, err := ParseEndpoint(line)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}

	return endpoints, nil
}
