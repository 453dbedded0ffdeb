package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/quillspace/engage/internal/models"
)

// ctxUserKey is the gin context key holding the authenticated user id.
const ctxUserKey = "auth_user_id"

// Claims are the token claims issued by the platform's auth service.
// The subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens minted by the auth service.
type TokenVerifier struct {
	Secret []byte
}

// Parse validates a token string and returns its claims
func (v TokenVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireUser validates the Authorization header and stores the caller's
// user id on the request context. Requests without a verifiable identity
// are rejected before reaching a handler.
func RequireUser(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := strings.TrimSpace(c.GetHeader("Authorization"))
		if authz == "" {
			respondError(c, fmt.Errorf("%w: missing authorization header", models.ErrUnauthenticated))
			return
		}
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			respondError(c, fmt.Errorf("%w: malformed authorization header", models.ErrUnauthenticated))
			return
		}
		claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid token", models.ErrUnauthenticated))
			return
		}
		userID, err := uuid.Parse(strings.TrimSpace(claims.Subject))
		if err != nil {
			respondError(c, fmt.Errorf("%w: invalid subject", models.ErrUnauthenticated))
			return
		}
		c.Set(ctxUserKey, userID)
		c.Next()
	}
}

// CurrentUser returns the authenticated caller's id, set by RequireUser
func CurrentUser(c *gin.Context) (uuid.UUID, error) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return uuid.Nil, models.ErrUnauthenticated
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return uuid.Nil, models.ErrUnauthenticated
	}
	return id, nil
}
