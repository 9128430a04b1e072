package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated principal attached to a request or a
// persistent connection. Role comes from the credential store, never
// from anything the client sends.
type Identity struct {
	Username string
	Role     string
}

// IsAdmin reports whether the identity carries the admin role.
func (id Identity) IsAdmin() bool { return id.Role == "admin" }

// Signer mints and verifies the session tokens shared between the REST
// boundary and the websocket handshake. Tokens are HMAC-SHA256 signed
// with a fixed time-to-live; the HTTP middleware re-issues them on use
// so an active session keeps rolling forward.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner creates a Signer. ttl <= 0 falls back to 14 days.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Signer{secret: secret, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (s *Signer) TTL() time.Duration { return s.ttl }

// Issue creates a signed token for the given identity.
func (s *Signer) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  id.Username,
		"role": id.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse verifies the token signature and expiry and returns the embedded
// identity along with the token's expiry time, so callers can decide
// whether a rolling renewal is due.
func (s *Signer) Parse(tokenStr string) (Identity, time.Time, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, time.Time{}, fmt.Errorf("invalid claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, time.Time{}, fmt.Errorf("missing subject")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = "user"
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Identity{}, time.Time{}, fmt.Errorf("missing expiry")
	}

	return Identity{Username: sub, Role: role}, exp.Time, nil
}

// ShouldRenew reports whether a token with the given expiry has passed
// the midpoint of its lifetime.
func (s *Signer) ShouldRenew(expiresAt time.Time) bool {
	return time.Until(expiresAt) < s.ttl/2
}
