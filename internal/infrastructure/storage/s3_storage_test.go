package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/marketsync/internal/infrastructure/config"
)

func TestNewS3ArtifactStore_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(&config.StorageConfig{AccessKeyID: "k", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(&config.StorageConfig{Bucket: "b", SecretAccessKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		_, err := NewS3ArtifactStore(&config.StorageConfig{Bucket: "b", AccessKeyID: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates store", func(t *testing.T) {
		store, err := NewS3ArtifactStore(&config.StorageConfig{
			Bucket:          "nfe",
			AccessKeyID:     "k",
			SecretAccessKey: "s",
			Endpoint:        "localhost:9000",
			Prefix:          "/fiscal/",
		}, WithLogger(zaptest.NewLogger(t)), WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, "nfe", store.Bucket())
		assert.Equal(t, "fiscal", store.prefix)
		assert.Equal(t, time.Hour, store.presignExpiration)
	})
}

func TestS3ArtifactStore_DownloadURL(t *testing.T) {
	store, err := NewS3ArtifactStore(&config.StorageConfig{
		Bucket:          "nfe",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		Prefix:          "fiscal",
	})
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, store.presignExpiration)

	t.Run("presigns prefixed key", func(t *testing.T) {
		url, expiresAt, err := store.DownloadURL(context.Background(), "NFe_1.xml", 0)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "http://localhost:9000/nfe/fiscal/NFe_1.xml?"), url)
		assert.Contains(t, url, "X-Amz-Signature=")
		assert.True(t, expiresAt.After(time.Now()))
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		_, _, err := store.DownloadURL(context.Background(), "../x", 0)
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}
