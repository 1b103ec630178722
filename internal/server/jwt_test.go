package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shorts-autopilot/internal/config"
)

func testTokenService() *TokenService {
	return NewTokenService(&config.TriggerAuthConfig{Secret: "test-secret-0123456789", ExpirationHours: 1})
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := testTokenService()

	token, err := svc.GenerateToken("cron")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cron", claims.Caller())
	assert.Equal(t, tokenIssuer, claims.Issuer)

	validator := svc.AsTokenValidator()
	getter, err := validator.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cron", getter.Caller())
}

func TestTokenService_EmptySubject(t *testing.T) {
	_, err := testTokenService().GenerateToken("")
	assert.Error(t, err)
}

func TestTokenService_Expired(t *testing.T) {
	svc := testTokenService()
	issued := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return issued }
	token, err := svc.GenerateToken("cron")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorContains(t, err, "token expired")
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, err := testTokenService().GenerateToken("cron")
	require.NoError(t, err)

	other := NewTokenService(&config.TriggerAuthConfig{Secret: "a-different-secret-xyz", ExpirationHours: 1})
	_, err = other.ValidateToken(token)
	assert.ErrorContains(t, err, "invalid token signature")
}

func TestTokenService_Malformed(t *testing.T) {
	_, err := testTokenService().ValidateToken("not.a.jwt")
	assert.Error(t, err)

	_, err = testTokenService().ValidateToken("")
	assert.ErrorContains(t, err, "empty")
}

func TestTokenService_RejectsForeignIssuerAndAlg(t *testing.T) {
	secret := []byte("test-secret-0123456789")

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "cron",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString(secret)
	require.NoError(t, err)
	_, err = testTokenService().ValidateToken(signed)
	assert.Error(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Issuer: tokenIssuer, Subject: "cron"})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = testTokenService().ValidateToken(none)
	assert.Error(t, err)
}
