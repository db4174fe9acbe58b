package main

import (
	"errors"
	"strings"

	"docintake/pkg/apierr"
	"docintake/pkg/token"

	"github.com/gin-gonic/gin"
)

// Context keys set by bearerAuth.
const (
	ctxSubject = "sub"
	ctxRole    = "role"
)

var (
	errMissingBearer = errors.New("missing or invalid Authorization header")
	errInvalidToken  = errors.New("invalid token")
	errExpiredToken  = errors.New("token expired")
	errInsufficient  = errors.New("insufficient role")
)

// bearerToken returns the raw token of an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if len(h) < 8 || !strings.EqualFold(h[:7], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[7:])
	return raw, raw != ""
}

func bearerAuth(tokens *token.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			apierr.Write(c, apierr.Unauthorized(errMissingBearer))
			return
		}
		claims, err := tokens.Verify(raw)
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				apierr.Write(c, apierr.Unauthorized(errExpiredToken))
				return
			}
			apierr.Write(c, apierr.Unauthorized(errInvalidToken))
			return
		}
		c.Set(ctxSubject, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// requireRole must run after bearerAuth.
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != role {
			apierr.Write(c, apierr.Forbidden(errInsufficient))
			return
		}
		c.Next()
	}
}

func subject(c *gin.Context) string { return c.GetString(ctxSubject) }
