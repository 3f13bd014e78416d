// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/book-expert/seta-tts/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-memory NATS server for testing purposes.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func newStore(t *testing.T, bucketName string) (*objectstore.NatsObjectStore, nats.JetStreamContext) {
	t.Helper()

	natsServer, natsConnection := StartTestServer(t)
	t.Cleanup(natsServer.Shutdown)
	t.Cleanup(natsConnection.Close)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, bucketName)
	require.NoError(t, err)

	return store, jetstreamContext
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "test-bucket")
	ctx := context.Background()
	key := "run-1/row1.mp3"
	uploadData := []byte("encoded audio bytes")

	err := store.Upload(ctx, key, uploadData)
	require.NoError(t, err)

	downloadData, err := store.Download(ctx, key)
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)
	assert.Equal(t, "test-bucket", store.Bucket())
}

func TestNatsObjectStore_UploadReplaces(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "replace-bucket")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "tables/cities.csv", []byte("id;city\n1;Roma\n")))
	require.NoError(t, store.Upload(ctx, "tables/cities.csv", []byte("id;city\n2;Milano\n")))

	data, err := store.Download(ctx, "tables/cities.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("id;city\n2;Milano\n"), data)
}

func TestNatsObjectStore_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	first, jetstreamContext := newStore(t, "shared-bucket")
	require.NoError(t, first.Upload(context.Background(), "key", []byte("value")))

	second, err := objectstore.New(jetstreamContext, "shared-bucket")
	require.NoError(t, err)

	data, err := second.Download(context.Background(), "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)
}

func TestNatsObjectStore_Errors(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "error-bucket")
	ctx := context.Background()

	_, err := store.Download(ctx, "missing")
	require.Error(t, err)

	_, err = store.Download(ctx, "")
	require.ErrorIs(t, err, objectstore.ErrEmptyKey)
	require.ErrorIs(t, store.Upload(ctx, "", []byte("x")), objectstore.ErrEmptyKey)
}
