package objstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/stackzner/internal/artifact"
)

// containerMarker is the zero-byte object that makes a container prefix
// visible in the flat bucket namespace.
const containerMarker = ".container"

// ArtifactStore adapts Client to the artifact store interface. A deployment
// uses a single bucket; container names become key prefixes inside it and
// locators take the form "s3://<bucket>/<container>/<name>".
type ArtifactStore struct {
	client *Client
	bucket string
}

// NewArtifactStore creates a store publishing into the given bucket.
func NewArtifactStore(client *Client, bucket string) *ArtifactStore {
	return &ArtifactStore{client: client, bucket: bucket}
}

// Bucket returns the bucket the store publishes into.
func (s *ArtifactStore) Bucket() string {
	return s.bucket
}

// EnsureContainer creates the deployment bucket if needed and writes the
// container's marker object.
func (s *ArtifactStore) EnsureContainer(ctx context.Context, container string) error {
	if err := s.client.CreateBucket(ctx, s.bucket); err != nil {
		return err
	}
	return s.client.PutObject(ctx, s.bucket, container+"/"+containerMarker, nil)
}

// Put uploads a payload object. Without overwrite, an existing object is a
// conflict.
func (s *ArtifactStore) Put(ctx context.Context, container, name string, data []byte, overwrite bool) (string, error) {
	key := container + "/" + name

	if !overwrite {
		exists, err := s.client.ObjectExists(ctx, s.bucket, key)
		if err != nil {
			return "", err
		}
		if exists {
			return "", &artifact.AlreadyExistsError{Object: key}
		}
	}

	if err := s.client.PutObject(ctx, s.bucket, key, data); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// SignedURL presigns a GET for the object behind the locator.
func (s *ArtifactStore) SignedURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	bucket, key, err := parseLocator(locator)
	if err != nil {
		return "", err
	}
	return s.client.SignedGetURL(ctx, bucket, key, ttl)
}

func parseLocator(locator string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(locator, "s3://")
	if !ok {
		return "", "", fmt.Errorf("locator %q is not an s3 locator", locator)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("locator %q is missing bucket or key", locator)
	}
	return bucket, key, nil
}
