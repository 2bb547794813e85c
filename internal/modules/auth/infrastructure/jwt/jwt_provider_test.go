package jwt_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capstonehub/notify/internal/modules/auth/infrastructure/jwt"
)

func TestGenerateAndValidateToken(t *testing.T) {
	userID := uuid.New()

	token, err := jwt.GenerateToken("secret", time.Hour, userID, "moderator")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwt.ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "moderator", claims.Role)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := jwt.GenerateToken("secret", time.Hour, uuid.New(), "student")
	require.NoError(t, err)

	_, err = jwt.ValidateToken(token, "other-secret")
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := jwt.GenerateToken("secret", -time.Minute, uuid.New(), "student")
	require.NoError(t, err)

	_, err = jwt.ValidateToken(token, "secret")
	require.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := jwt.ValidateToken("not.a.token", "secret")
	require.Error(t, err)
}
