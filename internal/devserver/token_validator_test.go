package devserver

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

func TestTokenValidator_RoundTrip(t *testing.T) {
	validator := NewTokenValidator("test-secret", "clinic-devserver", time.Hour)

	token, err := validator.IssueToken(types.User{ID: "doctor-1", Name: "Dorte Læge", Role: types.RoleDoctor, ClinicID: "clinic-1"})
	require.NoError(t, err)

	claims, err := validator.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "doctor-1", claims.UserID)
	assert.Equal(t, "Dorte Læge", claims.Name)
	assert.Equal(t, types.RoleDoctor, claims.Role)
	assert.Equal(t, "clinic-1", claims.ClinicID)
}

func TestTokenValidator_Rejects(t *testing.T) {
	validator := NewTokenValidator("test-secret", "clinic-devserver", time.Hour)

	sign := func(secret, issuer string, exp time.Time) string {
		claims := &JWTClaims{
			Role: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "admin-1",
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		}
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	testCases := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "invalid-token"},
		{name: "wrong_secret", token: sign("wrong-secret", "clinic-devserver", time.Now().Add(time.Hour))},
		{name: "expired", token: sign("test-secret", "clinic-devserver", time.Now().Add(-time.Hour))},
		{name: "wrong_issuer", token: sign("test-secret", "someone-else", time.Now().Add(time.Hour))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := validator.ValidateJWT(tc.token)
			assert.Error(t, err)
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user1"), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow("user1"))
	assert.True(t, rl.Allow("user2"))
	assert.Equal(t, 0, rl.Remaining("user1"))
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)

	assert.True(t, rl.Allow("user1"))
	assert.True(t, rl.Allow("user1"))
	assert.False(t, rl.Allow("user1"))

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("user1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	rl.Allow("user1")

	time.Sleep(10 * time.Millisecond)
	rl.cleanup(5 * time.Millisecond)

	rl.bucketsMux.RLock()
	_, exists := rl.buckets["user1"]
	rl.bucketsMux.RUnlock()
	assert.False(t, exists)

	rl.StartCleanup(time.Millisecond)
	rl.Stop()
	rl.Stop()
}
