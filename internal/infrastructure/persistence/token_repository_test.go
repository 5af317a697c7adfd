package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/erp/marketsync/internal/infrastructure/secrets"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func mustTokenRecord(t *testing.T, access, refresh string, issuedAt time.Time) *marketplace.TokenRecord {
	t.Helper()
	rec, err := marketplace.NewTokenRecord(marketplace.CodeMercadoLivre, &marketplace.TokenGrant{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    21600,
	}, issuedAt)
	require.NoError(t, err)
	return rec
}

func TestGormTokenRepository_Latest(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("no records returns ErrNoCredential", func(t *testing.T) {
		repo := NewGormTokenRepository(setupTestDB(t), nil)

		_, err := repo.Latest(ctx, marketplace.CodeMercadoLivre)
		assert.ErrorIs(t, err, marketplace.ErrNoCredential)
	})

	t.Run("returns most recently issued record", func(t *testing.T) {
		repo := NewGormTokenRepository(setupTestDB(t), nil)

		t1 := mustTokenRecord(t, "A1", "R1", base)
		t2 := mustTokenRecord(t, "A2", "R2", base.Add(time.Hour))
		require.NoError(t, repo.Append(ctx, t1))
		require.NoError(t, repo.Append(ctx, t2))
		assert.NotZero(t, t1.ID)
		assert.Greater(t, t2.ID, t1.ID)

		latest, err := repo.Latest(ctx, marketplace.CodeMercadoLivre)
		require.NoError(t, err)
		assert.Equal(t, "A2", latest.AccessToken)
		assert.Equal(t, "R2", latest.RefreshToken)
		assert.True(t, base.Add(time.Hour).Equal(latest.IssuedAt))

		history, err := repo.History(ctx, marketplace.CodeMercadoLivre, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "A2", history[0].AccessToken)
		assert.Equal(t, "A1", history[1].AccessToken)
	})

	t.Run("issue time wins over insertion order", func(t *testing.T) {
		repo := NewGormTokenRepository(setupTestDB(t), nil)

		require.NoError(t, repo.Append(ctx, mustTokenRecord(t, "newer", "", base.Add(time.Hour))))
		require.NoError(t, repo.Append(ctx, mustTokenRecord(t, "older", "", base)))

		latest, err := repo.Latest(ctx, marketplace.CodeMercadoLivre)
		require.NoError(t, err)
		assert.Equal(t, "newer", latest.AccessToken)
	})

	t.Run("equal issue time prefers later insert", func(t *testing.T) {
		repo := NewGormTokenRepository(setupTestDB(t), nil)

		require.NoError(t, repo.Append(ctx, mustTokenRecord(t, "first", "", base)))
		require.NoError(t, repo.Append(ctx, mustTokenRecord(t, "second", "", base)))

		latest, err := repo.Latest(ctx, marketplace.CodeMercadoLivre)
		require.NoError(t, err)
		assert.Equal(t, "second", latest.AccessToken)
	})

	t.Run("marketplaces are isolated", func(t *testing.T) {
		repo := NewGormTokenRepository(setupTestDB(t), nil)

		require.NoError(t, repo.Append(ctx, mustTokenRecord(t, "ml", "", base)))

		_, err := repo.Latest(ctx, marketplace.CodeShopee)
		assert.ErrorIs(t, err, marketplace.ErrNoCredential)
	})
}

func TestGormTokenRepository_EncryptsTokens(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	cipher, err := secrets.NewAESCipher("test-master-key-0123456789")
	require.NoError(t, err)
	repo := NewGormTokenRepository(db, cipher)

	rec := mustTokenRecord(t, "APP_USR-123", "TG-456", time.Now())
	require.NoError(t, repo.Append(ctx, rec))

	var row models.TokenRecordModel
	require.NoError(t, db.First(&row, rec.ID).Error)
	assert.NotEqual(t, "APP_USR-123", row.AccessToken)
	assert.NotEqual(t, "TG-456", row.RefreshToken)

	latest, err := repo.Latest(ctx, marketplace.CodeMercadoLivre)
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-123", latest.AccessToken)
	assert.Equal(t, "TG-456", latest.RefreshToken)
}
