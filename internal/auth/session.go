// Package auth resolves the session issued by the identity provider into a
// user id. Sessions are HS256 JWTs whose subject is the user id; they are
// read from a cookie first, then from an "Authorization: Bearer" header.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

var ErrInvalidSession = errors.New("invalid session")

// verifiedCacheSize bounds how many verified tokens are remembered.
const verifiedCacheSize = 1024

type SessionProvider struct {
	secret []byte
	cookie string
	issuer string
	ttl    time.Duration
	now    func() time.Time

	// verified maps a token to its user until the token's own expiry.
	verified *cache.LRU[core.UserID]
}

func NewSessionProvider(secret, cookieName, issuer string, ttl time.Duration) *SessionProvider {
	p := &SessionProvider{
		secret: []byte(secret),
		cookie: cookieName,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	p.verified = cache.New[core.UserID](verifiedCacheSize, func() time.Time { return p.now() })
	return p
}

// Issue signs a session for user. It returns the token and its expiry.
func (p *SessionProvider) Issue(user core.UserID) (string, time.Time, error) {
	if user.IsZero() {
		return "", time.Time{}, fmt.Errorf("%w: empty user id", ErrInvalidSession)
	}
	now := p.now()
	exp := now.Add(p.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   string(user),
		Issuer:    p.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

// Verify checks signature, issuer and expiry and returns the session's user.
func (p *SessionProvider) Verify(token string) (core.UserID, error) {
	if user, ok := p.verified.Get(token); ok {
		return user, nil
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	user := core.UserID(claims.Subject)
	if user.IsZero() {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	p.verified.SetUntil(token, user, claims.ExpiresAt.Time)
	return user, nil
}

// CurrentUser returns the authenticated user of r, if any.
func (p *SessionProvider) CurrentUser(r *http.Request) (core.UserID, bool) {
	token := p.tokenFrom(r)
	if token == "" {
		return "", false
	}
	user, err := p.Verify(token)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
			DebugContext(r.Context(), "Session rejected", log.FieldError, err)
		return "", false
	}
	return user, true
}

func (p *SessionProvider) tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(p.cookie); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
