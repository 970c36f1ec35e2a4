package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/huaback/pkg/config"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenPair 一次登录签发的令牌对
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService JWT令牌服务
//
// access token 短期有效，refresh token 长期有效且另外落库（见 refreshtoken 包）。
// 所有时间声明统一使用秒级 Unix 时间戳，签发和校验走同一基准，
// 避免秒/毫秒混用导致的 1000 倍误差。
type TokenService struct {
	secret        []byte
	accessExpire  time.Duration
	refreshExpire time.Duration
}

// NewTokenService 创建令牌服务，签名密钥为 base64 编码的进程级配置
func NewTokenService(cfg *config.JWTConfig) (*TokenService, error) {
	secret, err := base64.StdEncoding.DecodeString(cfg.SecretBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: decode jwt secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty jwt secret")
	}
	return &TokenService{
		secret:        secret,
		accessExpire:  time.Duration(cfg.AccessExpire) * time.Second,
		refreshExpire: time.Duration(cfg.RefreshExpire) * time.Second,
	}, nil
}

// CreateAccessToken 只签发 access token
//
// 刷新流程用：refresh token 不轮换，这里不应该产生一个签完就扔的新 refresh token。
func (s *TokenService) CreateAccessToken(userID int64) (string, error) {
	now := time.Now().Unix()
	return s.sign(jwt.MapClaims{
		"sub": userID,
		"iat": now,
		"exp": now + int64(s.accessExpire.Seconds()),
	})
}

// CreateTokenPair 签发 access token 和 refresh token，登录时用
func (s *TokenService) CreateTokenPair(userID int64) (*TokenPair, error) {
	accessToken, err := s.CreateAccessToken(userID)
	if err != nil {
		return nil, err
	}

	// id 声明保证同一秒内签发的 refresh token 也互不相同，落库字段要求惟一
	now := time.Now().Unix()
	refreshToken, err := s.sign(jwt.MapClaims{
		"id":  uuid.NewString(),
		"iat": now,
		"exp": now + int64(s.refreshExpire.Seconds()),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// sign 签名
func (s *TokenService) sign(claims jwt.MapClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// IsExpired 校验签名并判断令牌是否过期
//
// 签名校验失败（含格式错误）返回 ErrTokenInvalid；没有 exp 声明的令牌视为未过期。
func (s *TokenService) IsExpired(tokenStr string) (bool, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.Parse(tokenStr, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return false, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false, ErrTokenInvalid
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false, ErrTokenInvalid
	}
	if exp == nil {
		return false, nil
	}
	// 秒级比较
	return exp.Unix() <= time.Now().Unix(), nil
}

// UserIDFromToken 从 access token 中提取用户 id（sub 声明）
//
// 不做签名校验，调用方应先通过 IsExpired 完成校验。
func (s *TokenService) UserIDFromToken(tokenStr string) (int64, error) {
	claims, err := parseUnverified(tokenStr)
	if err != nil {
		return 0, err
	}
	sub, ok := claims["sub"]
	if !ok {
		return 0, ErrTokenInvalid
	}
	switch v := sub.(type) {
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, ErrTokenInvalid
	}
}

// ExpiryFromToken 从令牌中提取 exp 声明，不做签名校验
//
// 第二个返回值表示令牌是否带 exp 声明。
func (s *TokenService) ExpiryFromToken(tokenStr string) (time.Time, bool, error) {
	claims, err := parseUnverified(tokenStr)
	if err != nil {
		return time.Time{}, false, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, false, ErrTokenInvalid
	}
	if exp == nil {
		return time.Time{}, false, nil
	}
	return exp.Time, true, nil
}

// parseUnverified 不校验签名地解析声明
func parseUnverified(tokenStr string) (jwt.MapClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
