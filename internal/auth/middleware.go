// Package auth authenticates farmers with HMAC-signed bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingHeader  = errors.New("authorization header required")
	ErrMalformed      = errors.New("invalid authorization header")
	ErrMissingSecret  = errors.New("missing JWT secret")
	ErrInvalidToken   = errors.New("invalid token")
	ErrBadAudience    = errors.New("invalid audience")
	ErrMissingSubject = errors.New("missing subject")
)

type contextKey struct{}

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "authUserID"

// WithUserID returns a context carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// GetUserID retrieves the authenticated subject from context.
func GetUserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(contextKey{}).(string)
	return value, ok && value != ""
}

// Verifier checks bearer tokens against a shared secret and optional audience.
type Verifier struct {
	secret   []byte
	audience string
}

// NewVerifier builds a Verifier. An empty audience accepts any audience.
func NewVerifier(secret, audience string) *Verifier {
	return &Verifier{
		secret:   []byte(strings.TrimSpace(secret)),
		audience: strings.TrimSpace(audience),
	}
}

// Verify parses the raw token and returns its subject.
func (v *Verifier) Verify(raw string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "", ErrBadAudience
	case err != nil:
		return "", ErrInvalidToken
	case claims.Subject == "":
		return "", ErrMissingSubject
	}
	return claims.Subject, nil
}

// Issue signs a token for subject that expires after ttl. A blank subject
// is rejected since Verify would never accept the token.
func (v *Verifier) Issue(subject string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrMissingSubject
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware rejects requests without a valid bearer token and stores the
// subject on both the request context and the gin context.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err)
			return
		}
		subject, err := v.Verify(raw)
		if err != nil {
			unauthorized(c, err)
			return
		}
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), subject))
		c.Set(UserIDKey, subject)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMalformed
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
}
