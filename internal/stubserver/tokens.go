package stubserver

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
	grantType   = "Bearer"
)

// ErrInvalidToken covers bad signatures, expiry, wrong kind and
// access tokens from an expired generation.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	Kind       string `json:"typ"`
	Generation uint64 `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is what login and reissue hand out.
type TokenPair struct {
	AccessToken   string
	RefreshToken  string
	RefreshExpiry time.Time
}

// TokenIssuer signs HS256 access and refresh tokens for a login id.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	generation atomic.Uint64
}

func NewTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, now: now}, nil
}

// Issue mints a fresh pair. Every token carries a ULID jti, so two pairs
// minted in the same second still differ.
func (t *TokenIssuer) Issue(loginID string) (TokenPair, error) {
	now := t.now()
	access, err := t.sign(loginID, kindAccess, t.generation.Load(), now, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(loginID, kindRefresh, 0, now, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiry: now.Add(t.refreshTTL)}, nil
}

// ParseAccess returns the login id of a valid access token.
func (t *TokenIssuer) ParseAccess(token string) (string, error) {
	claims, err := t.parse(token, kindAccess)
	if err != nil {
		return "", err
	}
	if claims.Generation != t.generation.Load() {
		return "", fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// ParseRefresh returns the login id of a valid refresh token.
func (t *TokenIssuer) ParseRefresh(token string) (string, error) {
	claims, err := t.parse(token, kindRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExpireAccessTokens invalidates every access token issued so far.
// Refresh tokens are untouched, so clients recover through reissue.
func (t *TokenIssuer) ExpireAccessTokens() {
	t.generation.Add(1)
}

func (t *TokenIssuer) sign(subject, kind string, generation uint64, now time.Time, ttl time.Duration) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}
	claims := tokenClaims{
		Kind:       kind,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(token, kind string) (*tokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &tokenClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
