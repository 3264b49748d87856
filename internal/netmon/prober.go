package netmon

import (
	"context"
	"io"
	"net/http"
	"time"
)

const defaultProbeTimeout = 10 * time.Second

// HTTPProber checks reachability with a HEAD request against a fixed
// URL. Any response counts as reachable; only transport failures mean
// offline. Servers that reject HEAD are retried once with GET.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber returns a prober for the given URL. timeout <= 0 uses
// a 10 second default.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Probe reports whether the endpoint responded at all. Reachability is
// about the network path, not the endpoint's health, so a 404 still
// counts as online.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	ok, retryWithGet := p.attempt(ctx, http.MethodHead)
	if ok {
		return true
	}
	if retryWithGet {
		ok, _ = p.attempt(ctx, http.MethodGet)
	}
	return ok
}

// attempt reports whether the endpoint responded, and whether a GET
// retry could still succeed because the server rejected the method.
func (p *HTTPProber) attempt(ctx context.Context, method string) (ok, retryWithGet bool) {
	req, err := http.NewRequestWithContext(ctx, method, p.url, nil)
	if err != nil {
		return false, false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return false, true
	}
	return true, false
}
