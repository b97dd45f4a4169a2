package hcloud

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/imamik/stackzner/internal/deploy"
)

func TestProber_TCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer func() { _ = listener.Close() }()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	prober := NewProber()
	ctx := context.Background()

	if err := prober.Probe(ctx, "127.0.0.1", deploy.ProbeSpec{Protocol: "tcp", Port: addr.Port}); err != nil {
		t.Errorf("expected probe to succeed, got %v", err)
	}
}

func TestProber_TCPRefused(t *testing.T) {
	// Grab a port and release it again so nothing listens there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	_ = listener.Close()

	prober := NewProber()
	err = prober.Probe(context.Background(), "127.0.0.1", deploy.ProbeSpec{Protocol: "tcp", Port: port})
	if err == nil {
		t.Fatal("expected probe to fail against closed port")
	}
	if !strings.Contains(err.Error(), "tcp probe") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProber_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/redirected":
			w.WriteHeader(http.StatusFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		t.Fatalf("failed to split host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse port: %v", err)
	}

	prober := NewProber()
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "healthy endpoint", path: "/healthz"},
		{name: "path without leading slash", path: "healthz"},
		{name: "non-error status counts as healthy", path: "/redirected"},
		{name: "server error fails", path: "/broken", wantErr: "unexpected status 500"},
		{name: "missing path fails", path: "/missing", wantErr: "unexpected status 404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := prober.Probe(ctx, host, deploy.ProbeSpec{Protocol: "http", Port: port, Path: tt.path})
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected probe to succeed, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected probe to fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestProber_UnsupportedProtocol(t *testing.T) {
	prober := NewProber()
	err := prober.Probe(context.Background(), "127.0.0.1", deploy.ProbeSpec{Protocol: "icmp", Port: 0})
	if err == nil {
		t.Fatal("expected error for unsupported protocol")
	}
	if !strings.Contains(err.Error(), "unsupported probe protocol") {
		t.Errorf("unexpected error: %v", err)
	}
}
