package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"timed-quiz-service/internal/domain"
)

const adminSubject = "admin"

// AdminAuth guards the admin views with a bcrypt password and short-lived HS256 tokens.
// With no password hash configured the admin views are open.
type AdminAuth struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAdminAuth(passwordHash, secret string, ttl time.Duration) *AdminAuth {
	return &AdminAuth{
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

func (a *AdminAuth) Enabled() bool {
	return a != nil && len(a.passwordHash) > 0
}

// Issue checks password and returns a signed token with its expiry.
func (a *AdminAuth) Issue(password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, fmt.Errorf("admin login disabled: %w", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, domain.ErrUnauthorized
	}
	now := a.now()
	expiresAt := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify accepts only unexpired HS256 tokens issued for the admin subject.
func (a *AdminAuth) Verify(raw string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject != adminSubject {
		return domain.ErrUnauthorized
	}
	return nil
}

// Middleware rejects requests without a valid bearer token. It is a no-op when auth is disabled.
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(c, domain.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := a.Verify(raw); err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// HashPassword produces the value for admin.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
