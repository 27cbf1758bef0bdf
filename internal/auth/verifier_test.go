package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accessClaims(userID string, exp time.Time) Claims {
	return Claims{
		UserID:           userID,
		Verify:           Verified,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
}

func TestHS256Verifier_RoundTrip(t *testing.T) {
	v := NewHS256Verifier("secret")
	tok, err := v.Sign(accessClaims("u1", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	c, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, Verified, c.Verify)
	assert.Equal(t, AccessToken, c.TokenType)
}

func TestHS256Verifier_Rejects(t *testing.T) {
	v := NewHS256Verifier("secret")
	exp := time.Now().Add(time.Hour)

	good, err := v.Sign(accessClaims("u1", exp))
	require.NoError(t, err)
	foreign, err := NewHS256Verifier("other").Sign(accessClaims("u1", exp))
	require.NoError(t, err)

	refreshClaims := accessClaims("u1", exp)
	refreshClaims.TokenType = RefreshToken
	refresh, err := v.Sign(refreshClaims)
	require.NoError(t, err)

	anonymous, err := v.Sign(accessClaims("", exp))
	require.NoError(t, err)

	noExp, err := v.Sign(Claims{UserID: "u1"})
	require.NoError(t, err)

	earlyClaims := accessClaims("u1", exp)
	earlyClaims.NotBefore = jwt.NewNumericDate(time.Now().Add(30 * time.Minute))
	early, err := v.Sign(earlyClaims)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, accessClaims("u1", exp)).SignedString([]byte("secret"))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, accessClaims("u1", exp)).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(good, ".")

	for name, tok := range map[string]string{
		"garbage":        "not-a-token",
		"foreign secret": foreign,
		"refresh token":  refresh,
		"no user":        anonymous,
		"no exp":         noExp,
		"not yet valid":  early,
		"hs512":          hs512,
		"alg none":       none,
		"bad sig":        parts[0] + "." + parts[1] + ".AAAA",
		"two parts":      parts[0] + "." + parts[1],
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			c, err := v.Verify(context.Background(), tok)
			require.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, c)
		})
	}
}

func TestHS256Verifier_Expired(t *testing.T) {
	v := NewHS256Verifier("secret")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return now }

	tok, err := v.Sign(accessClaims("u1", now.Add(-time.Second)))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestHS256Verifier_UsesClock(t *testing.T) {
	v := NewHS256Verifier("secret")
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok, err := v.Sign(accessClaims("u1", issued.Add(time.Minute)))
	require.NoError(t, err)

	v.now = func() time.Time { return issued.Add(30 * time.Second) }
	_, err = v.Verify(context.Background(), tok)
	require.NoError(t, err)

	v.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = v.Verify(context.Background(), tok)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestClaimsContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{UserID: "u1"})
	c, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", c.UserID)
}
