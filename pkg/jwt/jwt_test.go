package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	util := NewJWTUtil("test-secret", time.Hour)

	token, err := util.GenerateToken("driver-7", "driver")
	require.NoError(t, err)

	claims, err := util.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "driver-7", claims.UserID)
	assert.Equal(t, "driver", claims.Role)
	assert.Equal(t, "driver-7", claims.Subject)
}

func TestValidateRejects(t *testing.T) {
	util := NewJWTUtil("test-secret", time.Hour)

	other, err := NewJWTUtil("other-secret", time.Hour).GenerateToken("u1", "admin")
	require.NoError(t, err)
	_, err = util.ValidateToken(other)
	assert.Error(t, err, "wrong key")

	expired, err := NewJWTUtil("test-secret", time.Nanosecond).GenerateToken("u1", "rider")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = util.ValidateToken(expired)
	assert.Error(t, err, "expired")

	_, err = util.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	util := NewJWTUtil("", 0)
	assert.Equal(t, 24*time.Hour, util.expiry)
	assert.NotEmpty(t, util.secretKey)
}
