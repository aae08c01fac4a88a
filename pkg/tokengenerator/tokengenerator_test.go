package tokengenerator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator("test-secret")
	require.NoError(t, err)
	return g
}

func TestNewGenerator_EmptySecret(t *testing.T) {
	_, err := NewGenerator("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestFriendlyToken(t *testing.T) {
	g := newTestGenerator(t)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := g.FriendlyToken()
		require.NoError(t, err)
		assert.Len(t, tok, 20)
		assert.False(t, strings.ContainsAny(tok, "lIO0+/="), tok)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}

func TestDigest(t *testing.T) {
	g := newTestGenerator(t)

	d1 := g.Digest(PurposeConfirmation, "abc")
	assert.Len(t, d1, 64)
	assert.Equal(t, d1, g.Digest(PurposeConfirmation, "abc"))
	assert.NotEqual(t, d1, g.Digest(PurposeResetPassword, "abc"))
	assert.Equal(t, "", g.Digest(PurposeConfirmation, ""))

	other, err := NewGenerator("other-secret")
	require.NoError(t, err)
	assert.NotEqual(t, d1, other.Digest(PurposeConfirmation, "abc"))
}

func TestGenerate(t *testing.T) {
	g := newTestGenerator(t)
	ctx := context.Background()

	t.Run("retries while digest taken", func(t *testing.T) {
		calls := 0
		raw, digest, err := g.Generate(ctx, PurposeResetPassword, func(ctx context.Context, d string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, g.Digest(PurposeResetPassword, raw), digest)
	})

	t.Run("exhausted", func(t *testing.T) {
		_, _, err := g.Generate(ctx, PurposeResetPassword, func(ctx context.Context, d string) (bool, error) {
			return true, nil
		})
		assert.ErrorIs(t, err, ErrExhausted)
	})

	t.Run("lookup error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := g.GenerateRaw(ctx, func(ctx context.Context, raw string) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}

func TestSessionToken(t *testing.T) {
	now := time.Now()
	tok, err := CreateSessionToken("secret", "multi-email", "acct-1", "jane@example.com", time.Hour, now)
	require.NoError(t, err)

	// Sessions are verified by jwtauth in the HTTP layer.
	ja := jwtauth.New("HS256", []byte("secret"), nil)
	token, err := jwtauth.VerifyToken(ja, tok)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", token.PrivateClaims()["account_id"])
	assert.Equal(t, "jane@example.com", token.PrivateClaims()["login_email"])
	assert.Equal(t, "multi-email", token.Issuer())
	assert.Equal(t, "acct-1", token.Subject())

	_, err = jwtauth.VerifyToken(jwtauth.New("HS256", []byte("wrong"), nil), tok)
	assert.Error(t, err)

	expired, err := CreateSessionToken("secret", "multi-email", "acct-1", "", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = jwtauth.VerifyToken(ja, expired)
	assert.Error(t, err)
}
