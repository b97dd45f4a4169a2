package artifact

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/juju/clock"

	"github.com/imamik/stackzner/internal/deploy"
)

// DefaultTTL is generously above typical instance boot time so a freshly
// provisioned instance can still fetch its payloads.
const DefaultTTL = time.Hour

// Store is the content-store capability the distributor needs. The
// production implementation lives in internal/platform/objstore.
type Store interface {
	// EnsureContainer makes sure the named container exists.
	EnsureContainer(ctx context.Context, container string) error

	// Put stores data under container/name and returns a locator for it.
	// Without overwrite, putting an existing object fails with
	// AlreadyExistsError.
	Put(ctx context.Context, container, name string, data []byte, overwrite bool) (string, error)

	// SignedURL mints a read-only URL for a stored locator, valid for ttl.
	SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
}

// Payload is one artifact declared by the deployment manifest.
type Payload struct {
	ID        string
	Container string
	Name      string
	Data      []byte
	Overwrite bool
}

// refPattern matches artifact://<payload id> references inside descriptor
// configuration values.
var refPattern = regexp.MustCompile(`artifact://([A-Za-z0-9][A-Za-z0-9._-]*)`)

// References returns the payload ids referenced by artifact:// URIs in s,
// in order of appearance. Manifest validation uses it to reject references
// to undeclared payloads before anything is published.
func References(s string) []string {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// Distributor publishes payloads and substitutes grant URLs into
// descriptor configuration.
type Distributor struct {
	store    Store
	clk      clock.Clock
	ttl      time.Duration
	observer deploy.Observer

	locators map[string]string // payload id -> store locator
	grants   map[string]*Grant // payload id -> grant minted this run
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithClock sets the clock grants are issued against.
func WithClock(clk clock.Clock) Option {
	return func(d *Distributor) {
		d.clk = clk
	}
}

// WithTTL sets the grant lifetime used during substitution.
func WithTTL(ttl time.Duration) Option {
	return func(d *Distributor) {
		d.ttl = ttl
	}
}

// WithObserver sets the observer receiving artifact events.
func WithObserver(obs deploy.Observer) Option {
	return func(d *Distributor) {
		d.observer = obs
	}
}

// NewDistributor creates a Distributor over the given store.
func NewDistributor(store Store, opts ...Option) *Distributor {
	d := &Distributor{
		store:    store,
		clk:      clock.WallClock,
		ttl:      DefaultTTL,
		observer: deploy.NopObserver{},
		locators: make(map[string]string),
		grants:   make(map[string]*Grant),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish uploads all payloads to the content store. A payload whose object
// already exists fails with AlreadyExistsError unless it opted into
// overwriting. Publication happens before any infrastructure is touched.
func (d *Distributor) Publish(ctx context.Context, payloads []Payload) error {
	containers := make(map[string]bool)
	for _, p := range payloads {
		if containers[p.Container] {
			continue
		}
		if err := d.store.EnsureContainer(ctx, p.Container); err != nil {
			return fmt.Errorf("ensuring container %s: %w", p.Container, err)
		}
		containers[p.Container] = true
	}

	for _, p := range payloads {
		locator, err := d.store.Put(ctx, p.Container, p.Name, p.Data, p.Overwrite)
		if err != nil {
			return fmt.Errorf("publishing payload %s: %w", p.ID, err)
		}
		d.locators[p.ID] = locator

		d.observer.Event(deploy.Event{
			Type:     deploy.EventArtifactPublished,
			Phase:    "artifacts",
			Resource: p.ID,
			Message:  fmt.Sprintf("payload stored at %s", locator),
		})
	}
	return nil
}

// Grant mints a read-only grant for a published payload. The grant expires
// exactly ttl after issuance; a zero or negative ttl is rejected.
func (d *Distributor) Grant(ctx context.Context, payloadID string, ttl time.Duration) (*Grant, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("grant ttl must be positive, got %v", ttl)
	}

	locator, ok := d.locators[payloadID]
	if !ok {
		return nil, &UnknownPayloadError{ID: payloadID}
	}

	uri, err := d.store.SignedURL(ctx, locator, ttl)
	if err != nil {
		return nil, fmt.Errorf("signing URL for payload %s: %w", payloadID, err)
	}

	issued := d.clk.Now()
	grant := &Grant{
		PayloadID:   payloadID,
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(ttl),
		Permissions: []Permission{PermissionRead},
		ResourceURI: uri,
	}

	d.observer.Event(deploy.Event{
		Type:     deploy.EventArtifactGranted,
		Phase:    "artifacts",
		Resource: payloadID,
		Message:  fmt.Sprintf("grant valid until %s", grant.ExpiresAt.Format(time.RFC3339)),
	})

	return grant, nil
}

// SubstituteGrants replaces every artifact://<payload id> reference inside
// descriptor configuration values with a granted URL. Each referenced
// payload is granted once per run; two references to the same payload share
// a grant. The input descriptors are not modified.
//
// References to unpublished payload ids fail with UnknownPayloadError. A
// grant that expired between minting and substitution is never written into
// a descriptor.
func (d *Distributor) SubstituteGrants(ctx context.Context, descriptors []deploy.Descriptor) ([]deploy.Descriptor, error) {
	out := make([]deploy.Descriptor, 0, len(descriptors))

	for _, desc := range descriptors {
		replaced := desc.Config
		changed := false

		for key, value := range desc.Config {
			if !refPattern.MatchString(value) {
				continue
			}

			var substErr error
			newValue := refPattern.ReplaceAllStringFunc(value, func(match string) string {
				payloadID := refPattern.FindStringSubmatch(match)[1]
				grant, err := d.grantFor(ctx, payloadID)
				if err != nil {
					if substErr == nil {
						substErr = err
					}
					return match
				}
				if grant.Expired(d.clk.Now()) {
					if substErr == nil {
						substErr = &GrantExpiredError{URI: grant.ResourceURI, ExpiresAt: grant.ExpiresAt}
					}
					return match
				}
				return grant.ResourceURI
			})
			if substErr != nil {
				return nil, fmt.Errorf("descriptor %s, config %s: %w", desc.ID, key, substErr)
			}

			if !changed {
				replaced = copyConfig(desc.Config)
				changed = true
			}
			replaced[key] = newValue
		}

		if changed {
			out = append(out, desc.WithConfig(replaced))
		} else {
			out = append(out, desc)
		}
	}

	return out, nil
}

// grantFor returns the run-scoped grant for a payload, minting it on first use.
func (d *Distributor) grantFor(ctx context.Context, payloadID string) (*Grant, error) {
	if g, ok := d.grants[payloadID]; ok {
		return g, nil
	}
	g, err := d.Grant(ctx, payloadID, d.ttl)
	if err != nil {
		return nil, err
	}
	d.grants[payloadID] = g
	return g, nil
}

func copyConfig(config map[string]string) map[string]string {
	out := make(map[string]string, len(config))
	for k, v := range config {
		out[k] = v
	}
	return out
}
