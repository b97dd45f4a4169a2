package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/imamik/stackzner/internal/artifact"
)

// FakeStore is an in-memory artifact.Store. Locators take the form
// "mem://<container>/<name>". Signed URLs carry a serial number and an expiry
// computed from the injected clock, and Fetch enforces that expiry the way a
// real store would at download time.
type FakeStore struct {
	mu  sync.Mutex
	clk clock.Clock
	seq int

	containers map[string]bool
	objects    map[string][]byte
	expiries   map[string]time.Time

	// PutCalls counts uploads, EnsureCalls container ensures.
	PutCalls    int
	EnsureCalls int
}

func NewFakeStore(clk clock.Clock) *FakeStore {
	return &FakeStore{
		clk:        clk,
		containers: make(map[string]bool),
		objects:    make(map[string][]byte),
		expiries:   make(map[string]time.Time),
	}
}

func (s *FakeStore) EnsureContainer(_ context.Context, container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EnsureCalls++
	s.containers[container] = true
	return nil
}

func (s *FakeStore) Put(_ context.Context, container, name string, data []byte, overwrite bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.PutCalls++
	if !s.containers[container] {
		return "", fmt.Errorf("container %s does not exist", container)
	}

	key := container + "/" + name
	if _, exists := s.objects[key]; exists && !overwrite {
		return "", &artifact.AlreadyExistsError{Object: key}
	}
	s.objects[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

func (s *FakeStore) SignedURL(_ context.Context, locator string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := strings.CutPrefix(locator, "mem://")
	if !ok {
		return "", fmt.Errorf("unknown locator scheme: %s", locator)
	}
	if _, exists := s.objects[key]; !exists {
		return "", fmt.Errorf("no object at %s", locator)
	}

	s.seq++
	url := fmt.Sprintf("%s?sig=%d", locator, s.seq)
	s.expiries[url] = s.clk.Now().Add(ttl)
	return url, nil
}

// Fetch downloads through a signed URL, the way a bootstrapping instance
// would. Expired URLs fail with artifact.GrantExpiredError.
func (s *FakeStore) Fetch(url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.expiries[url]
	if !ok {
		return nil, fmt.Errorf("unsigned or unknown url: %s", url)
	}
	if !s.clk.Now().Before(expiry) {
		return nil, &artifact.GrantExpiredError{URI: url, ExpiresAt: expiry}
	}

	key, _ := strings.CutPrefix(url, "mem://")
	key = strings.SplitN(key, "?", 2)[0]
	data, exists := s.objects[key]
	if !exists {
		return nil, fmt.Errorf("no object behind %s", url)
	}
	return append([]byte(nil), data...), nil
}

// Object returns the stored bytes for container/name.
func (s *FakeStore) Object(container, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[container+"/"+name]
	return data, ok
}

// HasContainer reports whether the container was ensured.
func (s *FakeStore) HasContainer(container string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containers[container]
}
