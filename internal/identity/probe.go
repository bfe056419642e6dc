package identity

import (
	"context"
	"time"

	qhttp "github.com/handiism/quicksong/internal/http"
)

// DefaultProbeURL is a lightweight page of the target service.
const DefaultProbeURL = "http://osu.ppy.sh/legal/terms"

// Prober checks that an identity can reach the target service.
type Prober interface {
	Probe(ctx context.Context, id Identity) error
}

// HTTPProber probes with a HEAD request through the identity's proxy.
type HTTPProber struct {
	client  *qhttp.Client
	url     string
	timeout time.Duration
}

// NewHTTPProber creates a prober sending HEAD requests to url.
func NewHTTPProber(client *qhttp.Client, url string, timeout time.Duration) *HTTPProber {
	if url == "" {
		url = DefaultProbeURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPProber{client: client, url: url, timeout: timeout}
}

// Probe returns an error if no response came back through id.
func (p *HTTPProber) Probe(ctx context.Context, id Identity) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.client.Probe(ctx, p.url, id.Route())
}
