package auth

import (
	"testing"
	"time"

	"aquaflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	Cost = bcrypt.MinCost
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, IsHashed(hash))
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, CheckPassword(hash, "s3cret"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrPasswordMismatch)
}

func TestCheckPassword_LegacyPlaintext(t *testing.T) {
	assert.False(t, IsHashed("admin"))
	assert.NoError(t, CheckPassword("admin", "admin"))
	assert.ErrorIs(t, CheckPassword("admin", "Admin"), ErrPasswordMismatch)
	assert.ErrorIs(t, CheckPassword("", ""), ErrPasswordMismatch)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("0123456789abcdef", "aquaflow", time.Hour)
	user := models.User{ID: "U1", FullName: "Rider One", Type: models.RoleRider}

	token, err := tm.Generate(user)
	require.NoError(t, err)

	s, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "U1", s.UserID)
	assert.Equal(t, "Rider One", s.FullName)
	assert.Equal(t, models.RoleRider, s.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, 5*time.Second)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("0123456789abcdef", "aquaflow", time.Hour)
	user := models.User{ID: "U1", Type: models.RoleAdmin}
	token, err := tm.Generate(user)
	require.NoError(t, err)

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenManager("fedcba9876543210", "aquaflow", time.Hour)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		other := NewTokenManager("0123456789abcdef", "someone-else", time.Hour)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		later := NewTokenManager("0123456789abcdef", "aquaflow", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("NoSecret", func(t *testing.T) {
		_, err := NewTokenManager("", "aquaflow", time.Hour).Generate(user)
		assert.Error(t, err)
	})
}
