package hcloud

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imamik/stackzner/internal/deploy"
)

// probeTimeout bounds a single probe attempt.
const probeTimeout = 5 * time.Second

// Prober performs single health check attempts against endpoint addresses.
// Streaks, intervals, and observation windows are counted by the caller.
type Prober struct {
	dialer     *net.Dialer
	httpClient *http.Client
}

// NewProber returns a prober with a per-attempt timeout.
func NewProber() *Prober {
	return &Prober{
		dialer:     &net.Dialer{Timeout: probeTimeout},
		httpClient: &http.Client{Timeout: probeTimeout},
	}
}

// Probe performs one attempt. A nil return means the endpoint is healthy.
func (p *Prober) Probe(ctx context.Context, address string, spec deploy.ProbeSpec) error {
	switch spec.Protocol {
	case deploy.ProtocolTCP:
		return p.probeTCP(ctx, address, spec.Port)
	case deploy.ProtocolHTTP:
		return p.probeHTTP(ctx, address, spec)
	default:
		return fmt.Errorf("unsupported probe protocol %q", spec.Protocol)
	}
}

// probeTCP succeeds when a TCP connection can be established.
func (p *Prober) probeTCP(ctx context.Context, address string, port int) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("tcp probe: %w", err)
	}
	return conn.Close()
}

// probeHTTP succeeds when a GET on the probe path returns a non-error status.
func (p *Prober) probeHTTP(ctx context.Context, address string, spec deploy.ProbeSpec) error {
	path := spec.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	url := fmt.Sprintf("http://%s%s", net.JoinHostPort(address, strconv.Itoa(spec.Port)), path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("http probe: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http probe: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("http probe: unexpected status %d", resp.StatusCode)
	}
	return nil
}
