// Package objectstore stores batch tables and encoded audio in a NATS JetStream
// object store bucket.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	descFmtBucket  = "seta-tts tables and audio for the %s bucket."
	errFmtBind     = "failed to bind to existing object store bucket '%s': %w"
	errFmtCreate   = "failed to create object store bucket '%s': %w"
	errFmtGet      = "failed to get object '%s' from bucket '%s': %w"
	errFmtRead     = "failed to read object '%s': %w"
	errFmtClose    = "failed to close object '%s': %w"
	errFmtPut      = "failed to put object '%s' to bucket '%s': %w"
	errFmtEmptyKey = "%w: bucket '%s'"
)

// ErrEmptyKey indicates an object key that is empty.
var ErrEmptyKey = errors.New("object key cannot be empty")

// NatsObjectStore implements the core.ObjectStore interface using NATS JetStream.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf(descFmtBucket, bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf(errFmtCreate, bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf(errFmtBind, bucketName, err)
		}
	}

	return &NatsObjectStore{bucket: bucketName, store: store}, nil
}

// Bucket returns the bucket name.
func (n *NatsObjectStore) Bucket() string {
	return n.bucket
}

// Download retrieves an object from the NATS object store.
func (n *NatsObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf(errFmtEmptyKey, ErrEmptyKey, n.bucket)
	}

	obj, err := n.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf(errFmtGet, key, n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf(errFmtRead, key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf(errFmtClose, key, closeErr)
	}

	return data, nil
}

// Upload saves an object to the NATS object store, replacing any previous
// object with the same key.
func (n *NatsObjectStore) Upload(_ context.Context, key string, data []byte) error {
	if key == "" {
		return fmt.Errorf(errFmtEmptyKey, ErrEmptyKey, n.bucket)
	}

	_, err := n.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf(errFmtPut, key, n.bucket, err)
	}

	return nil
}
