// Package linkprobe provides a generic HTTP reachability prober used by the
// verification and validation stages.
package linkprobe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Prober checks whether a URL is alive.
type Prober interface {
	// Probe reports whether url answers with a 2xx/3xx status. The returned
	// status code is 0 when the request never completed.
	Probe(ctx context.Context, url string) (bool, int, error)
}

// Option configures the prober.
type Option func(*httpProber)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *httpProber) {
		p.http = hc
	}
}

// WithUserAgent overrides the probe User-Agent header.
func WithUserAgent(ua string) Option {
	return func(p *httpProber) {
		p.userAgent = ua
	}
}

type httpProber struct {
	http      *http.Client
	userAgent string
}

// New creates a Prober with a bounded per-probe timeout and redirect chain.
func New(opts ...Option) Prober {
	p := &httpProber{
		http: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: "Mozilla/5.0 (compatible; profile-cli/1.0)",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Probe issues a HEAD request and falls back to GET for servers that reject
// HEAD. 2xx and 3xx both count as reachable.
func (p *httpProber) Probe(ctx context.Context, url string) (bool, int, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	status, err := p.request(ctx, http.MethodHead, url)
	if err != nil {
		return false, 0, err
	}
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented || status == http.StatusForbidden {
		status, err = p.request(ctx, http.MethodGet, url)
		if err != nil {
			return false, 0, err
		}
	}

	return status >= 200 && status < 400, status, nil
}

func (p *httpProber) request(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, eris.Wrapf(err, "linkprobe: create %s request", method)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, eris.Wrapf(err, "linkprobe: %s %s", method, url)
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
