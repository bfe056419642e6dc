package http

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/net/proxy"
)

// Route describes how a single request leaves the process: directly, or
// through a proxy, and with which User-Agent.
type Route struct {
	// Scheme is the proxy scheme: "http", "https" or "socks5".
	// Empty means "http".
	Scheme string

	// Address is the proxy host:port. Empty means a direct connection.
	Address string

	// UserAgent overrides the client's default User-Agent when set.
	UserAgent string
}

// Direct reports whether the route bypasses any proxy.
func (r Route) Direct() bool {
	return r.Address == ""
}

func (r Route) scheme() string {
	if r.Scheme == "" {
		return "http"
	}
	return r.Scheme
}

// ProxyURL returns the proxy URL of the route, or nil for direct routes.
func (r Route) ProxyURL() *url.URL {
	if r.Direct() {
		return nil
	}
	return &url.URL{Scheme: r.scheme(), Host: r.Address}
}

func (r Route) String() string {
	if r.Direct() {
		return "direct"
	}
	return r.ProxyURL().String()
}

type routeKey struct{}

// WithRoute attaches a route to ctx. Requests made with the returned
// context are sent through it.
func WithRoute(ctx context.Context, r Route) context.Context {
	return context.WithValue(ctx, routeKey{}, r)
}

// RouteFrom returns the route attached to ctx, if any.
func RouteFrom(ctx context.Context) (Route, bool) {
	r, ok := ctx.Value(routeKey{}).(Route)
	return r, ok
}

// routingTransport sends each request through the route found in its
// context. HTTP(S) proxies share one transport, whose connection pool is
// keyed by proxy URL; every SOCKS5 proxy gets a transport of its own.
type routingTransport struct {
	base    *http.Transport
	timeout time.Duration

	mu    sync.Mutex
	socks map[string]*http.Transport
}

func newRoutingTransport(timeout time.Duration) *routingTransport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = func(req *http.Request) (*url.URL, error) {
		r, ok := RouteFrom(req.Context())
		if !ok || r.Direct() || r.scheme() == "socks5" {
			return nil, nil
		}
		return r.ProxyURL(), nil
	}
	return &routingTransport{
		base:    base,
		timeout: timeout,
		socks:   make(map[string]*http.Transport),
	}
}

func (t *routingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if r, ok := RouteFrom(req.Context()); ok && !r.Direct() && r.scheme() == "socks5" {
		tr, err := t.socksTransport(r.Address)
		if err != nil {
			return nil, err
		}
		return tr.RoundTrip(req)
	}
	return t.base.RoundTrip(req)
}

func (t *routingTransport) socksTransport(addr string) (*http.Transport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tr, ok := t.socks[addr]; ok {
		return tr, nil
	}

	forward := &net.Dialer{Timeout: t.timeout / 2, KeepAlive: 30 * time.Second}
	dialer, err := proxy.SOCKS5("tcp", addr, nil, forward)
	if err != nil {
		return nil, err
	}

	tr := t.base.Clone()
	tr.Proxy = nil
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		tr.DialContext = cd.DialContext
	} else {
		tr.DialContext = func(_ context.Context, network, address string) (net.Conn, error) {
			return dialer.Dial(network, address)
		}
	}
	t.socks[addr] = tr
	return tr, nil
}

// CloseIdleConnections closes idle connections of every transport.
func (t *routingTransport) CloseIdleConnections() {
	t.base.CloseIdleConnections()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tr := range t.socks {
		tr.CloseIdleConnections()
	}
}
