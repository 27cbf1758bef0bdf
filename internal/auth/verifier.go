// Package auth verifies bearer access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrNotVerified  = errors.New("user not verified")
)

type VerifyStatus int

const (
	Unverified VerifyStatus = iota
	Verified
	Banned
)

type TokenType int

const (
	AccessToken TokenType = iota
	RefreshToken
	ForgotPasswordToken
	EmailVerifyToken
)

// Claims is the identity carried by an access token.
type Claims struct {
	UserID    string       `json:"user_id"`
	TokenType TokenType    `json:"token_type"`
	Verify    VerifyStatus `json:"verify"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass; jwt calls it from Parse.
func (c Claims) Validate() error {
	if c.TokenType != AccessToken {
		return fmt.Errorf("token_type %d is not an access token", c.TokenType)
	}
	if c.UserID == "" {
		return errors.New("missing user_id")
	}
	return nil
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// HS256Verifier checks HMAC-SHA256 signed JWT access tokens.
type HS256Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewHS256Verifier(secret string) *HS256Verifier {
	return &HS256Verifier{secret: []byte(secret), now: time.Now}
}

func (v *HS256Verifier) Verify(_ context.Context, token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, v.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

func (v *HS256Verifier) key(*jwt.Token) (any, error) {
	return v.secret, nil
}

// Sign issues a token for claims. Token issuance belongs to the user
// service; this exists for tests and local tooling.
func (v *HS256Verifier) Sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}
