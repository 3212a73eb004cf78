package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/movie-comments/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager() *TokenManager {
	return NewTokenManager(TokenSettings{
		Secret:   testSecret,
		Issuer:   "movie-comments",
		Audience: "movie-web-app",
		TTL:      time.Hour,
	})
}

func testUser() *domain.User {
	return &domain.User{ID: "u1", Username: "alice", Email: "alice@example.com"}
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	tm := newTestManager()

	token, exp, err := tm.GenerateToken(testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 2*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "movie-comments", claims.Issuer)
	assert.Contains(t, claims.Audience, "movie-web-app")
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))
}

func TestParseToken_Expired(t *testing.T) {
	tm := newTestManager()
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := tm.GenerateToken(testUser())
	require.NoError(t, err)

	tm.now = time.Now
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_WrongAudienceOrIssuer(t *testing.T) {
	token, _, err := newTestManager().GenerateToken(testUser())
	require.NoError(t, err)

	otherAudience := NewTokenManager(TokenSettings{Secret: testSecret, Issuer: "movie-comments", Audience: "admin-console"})
	_, err = otherAudience.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	otherIssuer := NewTokenManager(TokenSettings{Secret: testSecret, Issuer: "someone-else", Audience: "movie-web-app"})
	_, err = otherIssuer.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_WrongKey(t *testing.T) {
	token, _, err := newTestManager().GenerateToken(testUser())
	require.NoError(t, err)

	other := NewTokenManager(TokenSettings{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "movie-comments", Audience: "movie-web-app"})
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := newTestManager().ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
