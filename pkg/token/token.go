// Package token issues and verifies the HS256 bearer tokens used by the API.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned for a well-formed token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers malformed, forged or otherwise unacceptable tokens.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the payload carried by every access token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"rol"`
}

// Token is what login and refresh hand back to the client.
type Token struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	ExpiresIn   int     `json:"expires_in"`
	Claims      *Claims `json:"-"`
}

// Issuer signs and verifies access tokens with a shared secret.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret, issuer string, ttl time.Duration, opts ...Option) *Issuer {
	i := &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// TTL is the lifetime of every issued token.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a new token for subject/role. Each token gets a fresh jti so two
// tokens minted in the same second are still distinct.
func (i *Issuer) Issue(subject, role string) (Token, error) {
	if subject == "" {
		return Token{}, fmt.Errorf("issue token: empty subject")
	}
	now := i.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(i.ttl / time.Second),
		Claims:      claims,
	}, nil
}

// Verify parses raw and returns its claims. The error wraps ErrTokenExpired or
// ErrTokenInvalid.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithTimeFunc(i.now),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims, nil
}

// Refresh verifies raw and, only if it is still valid, issues a new token for
// the same subject and role.
func (i *Issuer) Refresh(raw string) (Token, error) {
	claims, err := i.Verify(raw)
	if err != nil {
		return Token{}, err
	}
	return i.Issue(claims.Subject, claims.Role)
}
