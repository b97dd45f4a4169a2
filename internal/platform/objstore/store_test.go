package objstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imamik/stackzner/internal/artifact"
)

// memoryS3 implements just enough of the S3 protocol for ArtifactStore tests.
// Path-style requests map to "<bucket>/<key>" entries.
type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: make(map[string][]byte)}
}

func (m *memoryS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case r.Method == http.MethodPut && !strings.Contains(path, "/"):
		// Bucket creation.
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		m.objects[path] = body
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		if _, ok := m.objects[path]; ok {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodGet:
		data, ok := m.objects[path]
		if !ok {
			xmlResponse(w, http.StatusNotFound, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (m *memoryS3) object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, ok
}

func TestArtifactStore_PutReturnsLocator(t *testing.T) {
	t.Parallel()

	mem := newMemoryS3()
	client, server := testClient(t, mem)
	defer server.Close()

	store := NewArtifactStore(client, "deploy-artifacts")

	locator, err := store.Put(context.Background(), "assets", "boot.sh", []byte("payload"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if locator != "s3://deploy-artifacts/assets/boot.sh" {
		t.Errorf("unexpected locator: %s", locator)
	}

	data, ok := mem.object("deploy-artifacts", "assets/boot.sh")
	if !ok {
		t.Fatal("expected object to be stored")
	}
	if string(data) != "payload" {
		t.Errorf("expected stored payload, got %q", data)
	}
}

func TestArtifactStore_PutConflict(t *testing.T) {
	t.Parallel()

	mem := newMemoryS3()
	client, server := testClient(t, mem)
	defer server.Close()

	store := NewArtifactStore(client, "deploy-artifacts")

	if _, err := store.Put(context.Background(), "assets", "boot.sh", []byte("v1"), false); err != nil {
		t.Fatalf("unexpected error on first put: %v", err)
	}

	_, err := store.Put(context.Background(), "assets", "boot.sh", []byte("v2"), false)
	var conflict *artifact.AlreadyExistsError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}
	if conflict.Object != "assets/boot.sh" {
		t.Errorf("unexpected conflicting object: %s", conflict.Object)
	}

	data, _ := mem.object("deploy-artifacts", "assets/boot.sh")
	if string(data) != "v1" {
		t.Errorf("conflicting put must not replace the object, got %q", data)
	}
}

func TestArtifactStore_PutOverwrite(t *testing.T) {
	t.Parallel()

	mem := newMemoryS3()
	client, server := testClient(t, mem)
	defer server.Close()

	store := NewArtifactStore(client, "deploy-artifacts")

	if _, err := store.Put(context.Background(), "assets", "boot.sh", []byte("v1"), false); err != nil {
		t.Fatalf("unexpected error on first put: %v", err)
	}
	if _, err := store.Put(context.Background(), "assets", "boot.sh", []byte("v2"), true); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}

	data, _ := mem.object("deploy-artifacts", "assets/boot.sh")
	if string(data) != "v2" {
		t.Errorf("expected overwritten payload, got %q", data)
	}
}

func TestArtifactStore_EnsureContainerWritesMarker(t *testing.T) {
	t.Parallel()

	mem := newMemoryS3()
	client, server := testClient(t, mem)
	defer server.Close()

	store := NewArtifactStore(client, "deploy-artifacts")

	if err := store.EnsureContainer(context.Background(), "assets"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := mem.object("deploy-artifacts", "assets/.container"); !ok {
		t.Error("expected container marker object")
	}
}

func TestArtifactStore_SignedURL(t *testing.T) {
	t.Parallel()

	mem := newMemoryS3()
	client, server := testClient(t, mem)
	defer server.Close()

	store := NewArtifactStore(client, "deploy-artifacts")

	locator, err := store.Put(context.Background(), "assets", "boot.sh", []byte("payload"), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	url, err := store.SignedURL(context.Background(), locator, 30*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"/deploy-artifacts/assets/boot.sh", "X-Amz-Expires=1800", "X-Amz-Signature="} {
		if !strings.Contains(url, want) {
			t.Errorf("signed URL missing %q: %s", want, url)
		}
	}
}

func TestArtifactStore_SignedURLRejectsForeignLocator(t *testing.T) {
	t.Parallel()

	mem := newMemoryS3()
	client, server := testClient(t, mem)
	defer server.Close()

	store := NewArtifactStore(client, "deploy-artifacts")

	tests := []struct {
		name    string
		locator string
	}{
		{"wrong scheme", "file:///tmp/boot.sh"},
		{"missing key", "s3://deploy-artifacts"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.SignedURL(context.Background(), tt.locator, time.Minute); err == nil {
				t.Errorf("expected error for locator %q", tt.locator)
			}
		})
	}
}
