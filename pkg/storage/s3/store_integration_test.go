//go:build integration

package s3

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/fieldops/pkg/storage"
)

// setupMinIO starts a MinIO container and returns a store bound to it
func setupMinIO(t *testing.T) *PhotoStore {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to start MinIO container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate MinIO container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	store, err := NewPhotoStore(ctx, storage.Config{
		S3Endpoint:     "http://" + host + ":" + port.Port(),
		S3Region:       "us-east-1",
		S3Bucket:       "fieldops-photos",
		S3AccessKey:    "minioadmin",
		S3SecretKey:    "minioadmin",
		S3UsePathStyle: true,
	}, nil)
	require.NoError(t, err)
	return store
}

func TestPhotoStore_Integration(t *testing.T) {
	store := setupMinIO(t)
	ctx := context.Background()
	content := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 256)

	require.NoError(t, store.HealthCheck(ctx))
	require.NoError(t, store.Put(ctx, "assessments/7/site.png", bytes.NewReader(content), int64(len(content)), "image/png"))

	rc, err := store.Get(ctx, "assessments/7/site.png")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, store.Delete(ctx, "assessments/7/site.png"))
	require.NoError(t, store.Delete(ctx, "assessments/7/site.png"))

	_, err = store.Get(ctx, "assessments/7/site.png")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
