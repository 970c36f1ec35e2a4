package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/huaback/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, accessExpire, refreshExpire int64) *TokenService {
	t.Helper()
	s, err := NewTokenService(&config.JWTConfig{
		SecretBase64:  base64.StdEncoding.EncodeToString([]byte("test-secret-please-rotate")),
		AccessExpire:  accessExpire,
		RefreshExpire: refreshExpire,
	})
	require.NoError(t, err)
	return s
}

func TestNewTokenServiceRejectsBadSecret(t *testing.T) {
	_, err := NewTokenService(&config.JWTConfig{SecretBase64: "%%%not-base64%%%"})
	assert.Error(t, err)

	_, err = NewTokenService(&config.JWTConfig{SecretBase64: ""})
	assert.Error(t, err)
}

func TestCreateTokenPairRoundTrip(t *testing.T) {
	s := newTestService(t, 3600, 30*24*3600)

	pair, err := s.CreateTokenPair(42)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	expired, err := s.IsExpired(pair.AccessToken)
	require.NoError(t, err)
	assert.False(t, expired)

	userID, err := s.UserIDFromToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)

	exp, hasExp, err := s.ExpiryFromToken(pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, hasExp)
	// exp 为秒级时间戳，约等于现在加 30 天
	want := time.Now().Add(30 * 24 * time.Hour)
	assert.WithinDuration(t, want, exp, 5*time.Second)
}

func TestCreateAccessTokenOnly(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	token, err := s.CreateAccessToken(9)
	require.NoError(t, err)

	expired, err := s.IsExpired(token)
	require.NoError(t, err)
	assert.False(t, expired)

	userID, err := s.UserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), userID)

	// access token 没有 refresh token 的 id 声明
	claims, err := parseUnverified(token)
	require.NoError(t, err)
	_, hasID := claims["id"]
	assert.False(t, hasID)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	a, err := s.CreateTokenPair(1)
	require.NoError(t, err)
	b, err := s.CreateTokenPair(1)
	require.NoError(t, err)

	// 同一秒内签发也要互不相同，落库字段要求惟一
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}

func TestIsExpiredPastToken(t *testing.T) {
	// exp 落在过去
	s := newTestService(t, -2, -2)

	pair, err := s.CreateTokenPair(1)
	require.NoError(t, err)

	expired, err := s.IsExpired(pair.AccessToken)
	require.NoError(t, err)
	assert.True(t, expired)
}

func TestIsExpiredWrongSecret(t *testing.T) {
	s := newTestService(t, 3600, 3600)
	pair, err := s.CreateTokenPair(1)
	require.NoError(t, err)

	other, err := NewTokenService(&config.JWTConfig{
		SecretBase64: base64.StdEncoding.EncodeToString([]byte("another-secret")),
	})
	require.NoError(t, err)

	_, err = other.IsExpired(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIsExpiredMalformedToken(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := s.IsExpired(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	}
}

func TestIsExpiredNoExpClaim(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	// 没有 exp 声明的令牌视为未过期
	token, err := s.sign(jwt.MapClaims{"sub": int64(1)})
	require.NoError(t, err)

	expired, err := s.IsExpired(token)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestUserIDFromTokenStringSub(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	token, err := s.sign(jwt.MapClaims{"sub": "7"})
	require.NoError(t, err)

	userID, err := s.UserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestUserIDFromTokenMissingSub(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	token, err := s.sign(jwt.MapClaims{"id": "x"})
	require.NoError(t, err)

	_, err = s.UserIDFromToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiryFromTokenWithoutExp(t *testing.T) {
	s := newTestService(t, 3600, 3600)

	token, err := s.sign(jwt.MapClaims{"sub": int64(1)})
	require.NoError(t, err)

	_, hasExp, err := s.ExpiryFromToken(token)
	require.NoError(t, err)
	assert.False(t, hasExp)
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CheckPassword("s3cret", hash))
	assert.False(t, CheckPassword("wrong", hash))
}
