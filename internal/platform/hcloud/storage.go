package hcloud

import (
	"context"
	"fmt"

	"github.com/imamik/stackzner/internal/deploy"
	"github.com/imamik/stackzner/internal/util/naming"
)

// containerMarker is the object written to realize an otherwise empty
// container. Deleting the container removes it along with every blob under
// the container prefix.
const containerMarker = ".container"

// objectStore is the slice of the object storage client the adapter uses.
// objstore.Client satisfies it.
type objectStore interface {
	CreateBucket(ctx context.Context, bucketName string) error
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	ObjectExists(ctx context.Context, bucketName, key string) (bool, error)
	PutObject(ctx context.Context, bucketName, key string, data []byte) error
	DeleteObject(ctx context.Context, bucketName, key string) error
	DeleteAllObjects(ctx context.Context, bucketName, prefix string) error
	DeleteBucket(ctx context.Context, bucketName string) error
}

// Storage kinds are realized on Hetzner Object Storage: a storage-account
// is a bucket, a blob-container a key prefix inside its account's bucket,
// and a blob an object under its container's prefix.

func (a *Adapter) storageExists(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, bool, error) {
	if a.store == nil {
		return "", false, storeUnavailable(desc.Kind, desc.ID)
	}

	switch desc.Kind {
	case deploy.KindStorageAccount:
		bucket := naming.Bucket(a.cfg.Deployment, desc.ID)
		ok, err := a.store.BucketExists(ctx, bucket)
		if err != nil || !ok {
			return "", false, err
		}
		return newHandle(desc.Kind, desc.ID, bucket), true, nil

	case deploy.KindBlobContainer:
		ref := desc.ConfigValue("account")
		if ref == "" {
			return "", false, nil
		}
		bucket := a.bucketForRef(ref)
		ok, err := a.store.ObjectExists(ctx, bucket, containerKey(desc.ID))
		if err != nil || !ok {
			return "", false, err
		}
		return containerHandle(desc.ID, bucket), true, nil

	case deploy.KindBlob:
		bucket, container, ok := a.containerForRef(desc.ConfigValue("container"))
		if !ok {
			return "", false, nil
		}
		key := blobKey(container, blobName(desc))
		exists, err := a.store.ObjectExists(ctx, bucket, key)
		if err != nil || !exists {
			return "", false, err
		}
		return blobHandle(desc.ID, bucket, key), true, nil
	}
	return "", false, deploy.Permanent(fmt.Errorf("unsupported storage kind %q", desc.Kind))
}

func (a *Adapter) storageCreate(ctx context.Context, desc deploy.Descriptor) (deploy.Handle, error) {
	if a.store == nil {
		return "", storeUnavailable(desc.Kind, desc.ID)
	}

	switch desc.Kind {
	case deploy.KindStorageAccount:
		bucket := naming.Bucket(a.cfg.Deployment, desc.ID)
		if err := a.store.CreateBucket(ctx, bucket); err != nil {
			return "", err
		}
		return newHandle(desc.Kind, desc.ID, bucket), nil

	case deploy.KindBlobContainer:
		ref := desc.ConfigValue("account")
		if ref == "" {
			return "", missingConfig(desc, "account")
		}
		bucket := a.bucketForRef(ref)
		if err := a.store.PutObject(ctx, bucket, containerKey(desc.ID), nil); err != nil {
			return "", err
		}
		return containerHandle(desc.ID, bucket), nil

	case deploy.KindBlob:
		ref := desc.ConfigValue("container")
		if ref == "" {
			return "", missingConfig(desc, "container")
		}
		bucket, container, ok := a.containerForRef(ref)
		if !ok {
			return "", unrealizedRef(desc, "container", ref)
		}
		key := blobKey(container, blobName(desc))
		if err := a.store.PutObject(ctx, bucket, key, []byte(desc.ConfigValue("content"))); err != nil {
			return "", err
		}
		return blobHandle(desc.ID, bucket, key), nil
	}
	return "", deploy.Permanent(fmt.Errorf("unsupported storage kind %q", desc.Kind))
}

func (a *Adapter) storageDelete(ctx context.Context, parts handleParts) error {
	if a.store == nil {
		return storeUnavailable(parts.Kind, parts.DescriptorID)
	}

	switch parts.Kind {
	case deploy.KindStorageAccount:
		bucket := parts.ProviderID
		exists, err := a.store.BucketExists(ctx, bucket)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := a.store.DeleteAllObjects(ctx, bucket, ""); err != nil {
			return err
		}
		return a.store.DeleteBucket(ctx, bucket)

	case deploy.KindBlobContainer:
		bucket, container, err := parts.splitProviderID()
		if err != nil {
			return deploy.Permanent(err)
		}
		exists, err := a.store.BucketExists(ctx, bucket)
		if err != nil || !exists {
			return err
		}
		return a.store.DeleteAllObjects(ctx, bucket, container+"/")

	case deploy.KindBlob:
		bucket, key, err := parts.splitProviderID()
		if err != nil {
			return deploy.Permanent(err)
		}
		exists, err := a.store.BucketExists(ctx, bucket)
		if err != nil || !exists {
			return err
		}
		return a.store.DeleteObject(ctx, bucket, key)
	}
	return deploy.Permanent(fmt.Errorf("unsupported storage kind %q", parts.Kind))
}

// bucketForRef resolves a storage-account reference to its bucket name.
// Bucket names are deterministic, so a registry miss falls back to naming.
func (a *Adapter) bucketForRef(ref string) string {
	if h, ok := a.handleFor(ref); ok {
		if parts, err := parseHandle(h); err == nil && parts.Kind == deploy.KindStorageAccount {
			return parts.ProviderID
		}
	}
	return naming.Bucket(a.cfg.Deployment, ref)
}

// containerForRef resolves a blob-container reference through the registry.
// The bucket behind a container depends on the container's account, which
// only the registry knows; dependency-ordered processing keeps it populated.
func (a *Adapter) containerForRef(ref string) (bucket, container string, ok bool) {
	if ref == "" {
		return "", "", false
	}
	h, found := a.handleFor(ref)
	if !found {
		return "", "", false
	}
	parts, err := parseHandle(h)
	if err != nil || parts.Kind != deploy.KindBlobContainer {
		return "", "", false
	}
	bucket, container, err = parts.splitProviderID()
	if err != nil {
		return "", "", false
	}
	return bucket, container, true
}

// blobName returns the object name of a blob descriptor, defaulting to its
// descriptor id.
func blobName(desc deploy.Descriptor) string {
	if name := desc.ConfigValue("name"); name != "" {
		return name
	}
	return desc.ID
}

func containerKey(container string) string {
	return container + "/" + containerMarker
}

func blobKey(container, name string) string {
	return container + "/" + name
}

func storeUnavailable(kind deploy.Kind, id string) error {
	return deploy.Permanent(fmt.Errorf("%s %s: object storage is not configured", kind, id))
}
