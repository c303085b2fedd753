package session

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const fingerprintLength = 10

// NewToken builds an anonymous session token from the creation time, a
// random part and a short fingerprint of the user agent.
func NewToken(now time.Time, userAgent string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s_%s", now.UnixMilli(), random, Fingerprint(userAgent))
}

// Fingerprint returns a short stable digest of the user agent.
func Fingerprint(userAgent string) string {
	sum := blake2b.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// BearerInfo is what the client can tell about a bearer token without the
// signing key.
type BearerInfo struct {
	Authenticated bool
	Subject       string
	ExpiresAt     time.Time
}

// InspectBearer decides whether token counts as an authenticated identity.
// JWTs are read without verification (the backend verifies them) so that an
// expired token is treated as logged out. Opaque tokens count as
// authenticated.
func InspectBearer(token string, now time.Time) BearerInfo {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return BearerInfo{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return BearerInfo{Authenticated: true}
	}

	info := BearerInfo{Authenticated: true}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
		if !now.Before(exp.Time) {
			info.Authenticated = false
		}
	}
	return info
}
