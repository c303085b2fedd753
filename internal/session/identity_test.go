package session

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tokenPattern = regexp.MustCompile(`^session_\d+_[0-9a-f]{9}_[0-9a-f]{10}$`)

func TestNewToken_Format(t *testing.T) {
	token := NewToken(time.UnixMilli(1700000000000), "Mozilla/5.0")

	assert.Regexp(t, tokenPattern, token)
	assert.Contains(t, token, "session_1700000000000_")
	assert.Equal(t, Fingerprint("Mozilla/5.0"), token[len(token)-fingerprintLength:])
}

func TestIdentity_InitGeneratesOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	id := NewIdentity(store, "client-1", "ua")

	require.NoError(t, id.Init(ctx))
	first := id.Token()
	assert.Regexp(t, tokenPattern, first)

	require.NoError(t, id.Init(ctx))
	assert.Equal(t, first, id.Token())

	stored, err := store.Load(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, first, stored)
}

func TestIdentity_InitReadsExistingToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(ctx, "client-1", "session_existing"))

	id := NewIdentity(store, "client-1", "ua")
	require.NoError(t, id.Init(ctx))

	assert.Equal(t, "session_existing", id.Token())
}

func TestIdentity_AdoptReplacesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	id := NewIdentity(store, "client-1", "ua")
	require.NoError(t, id.Init(ctx))

	assert.True(t, id.Adopt(ctx, "session_from_server"))
	assert.False(t, id.Adopt(ctx, "session_from_server"))
	assert.False(t, id.Adopt(ctx, ""))

	stored, _ := store.Load(ctx, "client-1")
	assert.Equal(t, "session_from_server", stored)
}

func TestIdentity_DiscardedTokenIsNeverReused(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()
	id := NewIdentity(store, "client-1", "ua")
	require.NoError(t, id.Init(ctx))
	old := id.Token()

	require.NoError(t, id.Discard(ctx))
	assert.Empty(t, id.Token())
	_, err := store.Load(ctx, "client-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	assert.False(t, id.Adopt(ctx, old))
	assert.Empty(t, id.Token())

	require.NoError(t, id.Init(ctx))
	assert.NotEqual(t, old, id.Token())
}

func TestIdentity_ResetClearsEverything(t *testing.T) {
	ctx := context.Background()
	id := NewIdentity(NewMemoryTokenStore(), "client-1", "ua")
	require.NoError(t, id.Init(ctx))
	id.SetBearer("jwt")

	require.NoError(t, id.Reset(ctx))

	assert.Empty(t, id.Token())
	assert.Empty(t, id.Bearer())
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestInspectBearer(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name          string
		token         string
		authenticated bool
		subject       string
	}{
		{name: "empty", token: "", authenticated: false},
		{name: "opaque token", token: "abc123", authenticated: true},
		{
			name:          "valid jwt",
			token:         signed(t, jwt.MapClaims{"sub": "42", "exp": now.Add(time.Hour).Unix()}),
			authenticated: true,
			subject:       "42",
		},
		{
			name:          "prefixed jwt",
			token:         "Bearer " + signed(t, jwt.MapClaims{"sub": "7"}),
			authenticated: true,
			subject:       "7",
		},
		{
			name:          "expired jwt",
			token:         signed(t, jwt.MapClaims{"sub": "42", "exp": now.Add(-time.Minute).Unix()}),
			authenticated: false,
			subject:       "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := InspectBearer(tt.token, now)
			assert.Equal(t, tt.authenticated, info.Authenticated)
			assert.Equal(t, tt.subject, info.Subject)
		})
	}
}

func TestIdentity_Scope(t *testing.T) {
	ctx := context.Background()
	id := NewIdentity(NewMemoryTokenStore(), "client-1", "ua")
	assert.Equal(t, "anon", id.Scope())

	require.NoError(t, id.Init(ctx))
	anonymous := id.Scope()
	assert.Equal(t, "anon:"+id.Token(), anonymous)

	id.SetBearer(signed(t, jwt.MapClaims{"sub": "42"}))
	assert.Equal(t, "user:42", id.Scope())

	id.SetBearer("opaque-token")
	assert.Equal(t, "user:"+Fingerprint("opaque-token"), id.Scope())
	assert.NotContains(t, id.Scope(), "opaque-token")

	id.SetBearer("")
	assert.Equal(t, anonymous, id.Scope())
}
