package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Hour)
	assert.NoError(t, err)
	raw, err := issuer.Issue("user-1", "BUYER")
	assert.NoError(t, err)

	claims, err := issuer.Verify(raw)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "BUYER", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestIssuer_WrongSecret(t *testing.T) {
	issuer, _ := NewIssuer("secret-a", time.Hour)
	other, _ := NewIssuer("secret-b", time.Hour)
	raw, err := issuer.Issue("user-1", "BUYER")
	assert.NoError(t, err)
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	issuer, _ := NewIssuer("test-secret", time.Hour)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.Now = func() time.Time { return base }
	raw, err := issuer.Issue("user-1", "SELLER")
	assert.NoError(t, err)

	// Still valid just before expiry.
	issuer.Now = func() time.Time { return base.Add(time.Hour - time.Minute) }
	_, err = issuer.Verify(raw)
	assert.NoError(t, err)

	// Invalid once the expiry passes.
	issuer.Now = func() time.Time { return base.Add(time.Hour + time.Minute) }
	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Garbage(t *testing.T) {
	issuer, _ := NewIssuer("test-secret", time.Hour)
	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestIssuer_RejectsUnsignedAlg(t *testing.T) {
	issuer, _ := NewIssuer("test-secret", time.Hour)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)
	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
