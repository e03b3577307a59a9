// Copyright 2017 Fortio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package endpoint parses and resolves the target URI into an Endpoint,
// the external "endpoint resolver" collaborator spec.md §1 treats as out of
// scope for the load-generation core, implemented here so the repo runs
// end to end.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"fortio.org/log"
)

// Endpoint is a resolved target: scheme, host, port, path and (after
// Resolve) a concrete address to connect to.
type Endpoint struct {
	Scheme string
	Host   string // without brackets, without port
	Port   int
	Path   string

	// ResolvedIP is populated by Resolve(); nil until then.
	ResolvedIP net.IP
}

// Parse parses a URI of the form http|https://HOST[:PORT]/PATH into an
// Endpoint. Host may be a bracketed IPv6 literal. Default ports are 80/443.
func Parse(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid uri %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Endpoint{}, fmt.Errorf("invalid uri %q: unsupported scheme %q (want http or https)", raw, u.Scheme)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("invalid uri %q: missing host", raw)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid uri %q: missing host", raw)
	}
	port := 80
	if scheme == "https" {
		port = 443
	}
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil || p < 1 || p > 65535 {
			return Endpoint{}, fmt.Errorf("invalid uri %q: port %q out of range [1,65535]", raw, portStr)
		}
		port = p
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return Endpoint{Scheme: scheme, Host: host, Port: port, Path: path}, nil
}

// IsValid reports whether the Endpoint's scheme and port are in range; host
// parse validity was already established in Parse.
func (e Endpoint) IsValid() bool {
	return (e.Scheme == "http" || e.Scheme == "https") && e.Port >= 1 && e.Port <= 65535 && e.Host != ""
}

// HostPort returns "host:port", bracketing the host if it is an IPv6 literal.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL reconstructs the original-shape URL string for this endpoint.
func (e Endpoint) URL() string {
	host := e.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	defaultPort := (e.Scheme == "http" && e.Port == 80) || (e.Scheme == "https" && e.Port == 443)
	if defaultPort {
		return fmt.Sprintf("%s://%s%s", e.Scheme, host, e.Path)
	}
	return fmt.Sprintf("%s://%s:%d%s", e.Scheme, host, e.Port, e.Path)
}

// Resolve performs DNS resolution of the endpoint's host (a no-op if Host is
// already an IP literal), populating ResolvedIP. Returns an error on DNS
// failure, which fails the run per spec.md §6/§7 (UnresolvableHost).
func (e *Endpoint) Resolve(ctx context.Context) error {
	if ip := net.ParseIP(e.Host); ip != nil {
		e.ResolvedIP = ip
		return nil
	}
	log.Debugf("resolving host %s", e.Host)
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", e.Host)
	if err != nil {
		return fmt.Errorf("unresolvable host %q: %w", e.Host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("unresolvable host %q: no addresses returned", e.Host)
	}
	if len(ips) > 1 {
		log.Debugf("host %s resolved to %d addresses, using first: %v", e.Host, len(ips), ips)
	}
	e.ResolvedIP = ips[0]
	return nil
}
