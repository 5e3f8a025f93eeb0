package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndParse(t *testing.T) {
	svc, err := NewJWTService("secret", "soaledu", 1)
	require.NoError(t, err)

	token, err := svc.GenerateToken("learner-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "learner-1", claims.LearnerID)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "learner-1", claims.Subject)
}

func TestJWTService_NewRequiresSecret(t *testing.T) {
	_, err := NewJWTService("", "soaledu", 1)
	assert.Error(t, err)
}

func TestJWTService_GenerateValidation(t *testing.T) {
	svc, err := NewJWTService("secret", "soaledu", 1)
	require.NoError(t, err)

	_, err = svc.GenerateToken("", RoleLearner)
	assert.Error(t, err)

	_, err = svc.GenerateToken("learner-1", "root")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestJWTService_ParseRejects(t *testing.T) {
	svc, err := NewJWTService("secret", "soaledu", 1)
	require.NoError(t, err)
	other, err := NewJWTService("other-secret", "soaledu", 1)
	require.NoError(t, err)
	foreignIssuer, err := NewJWTService("secret", "someone-else", 1)
	require.NoError(t, err)

	expired, err := NewJWTService("secret", "soaledu", 1)
	require.NoError(t, err)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	signedBy := func(s *JWTService) string {
		token, err := s.GenerateToken("learner-1", RoleLearner)
		require.NoError(t, err)
		return token
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTCustomClaims{
		LearnerID: "learner-1",
		Role:      RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "soaledu",
			Audience:  jwt.ClaimStrings{examAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"чужой секрет", signedBy(other)},
		{"чужой издатель", signedBy(foreignIssuer)},
		{"истёк", signedBy(expired)},
		{"alg none", noneToken},
		{"мусор", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ParseToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
