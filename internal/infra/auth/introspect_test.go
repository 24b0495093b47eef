package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenWithClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return token
}

func TestTimeLeftValidToken(t *testing.T) {
	token := tokenWithClaims(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	left, ok := TimeLeft(token)
	require.True(t, ok)
	assert.InDelta(t, 3600, left, 5)
}

func TestTimeLeftExpiredToken(t *testing.T) {
	token := tokenWithClaims(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})

	left, ok := TimeLeft(token)
	require.True(t, ok)
	assert.Negative(t, left)
}

func TestTimeLeftNotAJWT(t *testing.T) {
	_, ok := TimeLeft("just-an-opaque-string")
	assert.False(t, ok)
}

func TestTimeLeftNoExpiryClaim(t *testing.T) {
	token := tokenWithClaims(t, jwt.MapClaims{"iss": "https://example.org"})

	_, ok := TimeLeft(token)
	assert.False(t, ok)
}

func TestInspect(t *testing.T) {
	token := tokenWithClaims(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	inspected := Inspect(token)
	assert.Equal(t, token, inspected.Value)
	assert.True(t, inspected.HasExpiry)
	assert.Positive(t, inspected.TimeLeft)

	opaque := Inspect("opaque")
	assert.False(t, opaque.HasExpiry)
}
