package marketplace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenRecord(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))

	t.Run("builds record from grant", func(t *testing.T) {
		rec, err := NewTokenRecord(CodeMercadoLivre, &TokenGrant{
			AccessToken:  "A1",
			RefreshToken: "R1",
			ExpiresIn:    21600,
		}, issued)
		require.NoError(t, err)

		assert.Equal(t, CodeMercadoLivre, rec.Marketplace)
		assert.Equal(t, "A1", rec.AccessToken)
		assert.Equal(t, time.UTC, rec.IssuedAt.Location())
		assert.True(t, rec.IssuedAt.Equal(issued))
		assert.True(t, rec.ExpiresAt().Equal(issued.Add(6*time.Hour)))
		assert.True(t, rec.CanRefresh())
	})

	t.Run("rejects missing access token", func(t *testing.T) {
		_, err := NewTokenRecord(CodeMercadoLivre, &TokenGrant{RefreshToken: "R1"}, issued)
		assert.Error(t, err)

		_, err = NewTokenRecord(CodeMercadoLivre, nil, issued)
		assert.Error(t, err)
	})

	t.Run("rejects negative expiry", func(t *testing.T) {
		_, err := NewTokenRecord(CodeMercadoLivre, &TokenGrant{AccessToken: "A", ExpiresIn: -1}, issued)
		assert.Error(t, err)
	})
}

func TestTokenRecord_IsExpired(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &TokenRecord{AccessToken: "A", ExpiresInSeconds: 3600, IssuedAt: issued}

	tests := []struct {
		name string
		now  time.Time
		skew time.Duration
		want bool
	}{
		{"fresh", issued.Add(10 * time.Minute), time.Minute, false},
		{"inside skew", issued.Add(59*time.Minute + 30*time.Second), time.Minute, true},
		{"exactly at expiry", issued.Add(time.Hour), 0, true},
		{"past expiry", issued.Add(2 * time.Hour), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.IsExpired(tt.now, tt.skew))
		})
	}

	t.Run("no reported expiry never expires", func(t *testing.T) {
		forever := &TokenRecord{AccessToken: "A", IssuedAt: issued}
		assert.True(t, forever.ExpiresAt().IsZero())
		assert.False(t, forever.IsExpired(issued.Add(1000*time.Hour), time.Minute))
		assert.False(t, forever.CanRefresh())
	})
}
