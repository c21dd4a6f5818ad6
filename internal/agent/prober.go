package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DefaultProbeURL is a small resource that is only reachable once the
// gateway lets the device through.
const DefaultProbeURL = "https://www.google.com/favicon.ico"

// Prober checks outbound reachability. The Agent bounds every call with
// its own timeout through ctx.
type Prober interface {
	Probe(ctx context.Context) error
}

type HTTPProber struct {
	url    string
	client *http.Client
}

func NewHTTPProber(url string, client *http.Client) *HTTPProber {
	if url == "" {
		url = DefaultProbeURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProber{url: url, client: client}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}
