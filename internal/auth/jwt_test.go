package auth

import (
	"testing"
	"time"

	"chatdesk/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService() *JWTService {
	return NewJWTService(config.JWTConfig{Secret: "test-secret", Issuer: "chatdesk"})
}

func TestGenerateAndValidate(t *testing.T) {
	svc := newService()

	token, err := svc.GenerateToken(Principal{ID: "visitor-1", Name: "Asha", Role: RoleVisitor}, time.Hour)
	require.NoError(t, err)

	p, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "visitor-1", p.ID)
	assert.Equal(t, "Asha", p.Name)
	assert.Equal(t, RoleVisitor, p.Role)
	assert.False(t, p.Role.IsStaff())
}

func TestExpiredToken(t *testing.T) {
	svc := newService()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.GenerateToken(Principal{ID: "a1", Role: RoleAgent}, time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestRejectsWrongSecretAndRole(t *testing.T) {
	other := NewJWTService(config.JWTConfig{Secret: "other", Issuer: "chatdesk"})
	token, err := other.GenerateToken(Principal{ID: "a1", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = newService().ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims := Claims{Role: "root", RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "x",
		Issuer:    "chatdesk",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = newService().ValidateToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
