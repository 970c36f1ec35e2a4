package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	pkgauth "github.com/huaback/pkg/auth"
	"github.com/huaback/pkg/errors"
	"github.com/huaback/pkg/logger"
	"github.com/huaback/pkg/response"
	"github.com/huaback/services/sys/internal/refreshtoken"
	"github.com/huaback/services/sys/internal/user"
	"go.uber.org/zap"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserInfo     *UserInfo `json:"userInfo"`
}

// UserInfo 用户信息
type UserInfo struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
}

// Controller 认证控制器
type Controller struct {
	users         user.Repository
	tokens        *pkgauth.TokenService
	refreshTokens *refreshtoken.Service
}

// NewController 创建控制器
func NewController(users user.Repository, tokens *pkgauth.TokenService, refreshTokens *refreshtoken.Service) *Controller {
	return &Controller{users: users, tokens: tokens, refreshTokens: refreshTokens}
}

// Login 登录
//
// 用户不存在和密码错误返回同一错误信息，不泄露用户名是否存在。
func (ctl *Controller) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, err.Error())
	}

	ctx := c.UserContext()
	u, err := ctl.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if u == nil || !pkgauth.CheckPassword(req.Password, u.Password) {
		return errors.ErrInvalidCredential
	}
	if !u.IsEnabled {
		return errors.ErrUserDisabled
	}

	pair, err := ctl.tokens.CreateTokenPair(u.ID)
	if err != nil {
		return err
	}
	if err := ctl.refreshTokens.Save(ctx, u.ID, pair.RefreshToken); err != nil {
		return err
	}

	logger.Info("用户登录", zap.Int64("userId", u.ID), zap.String("username", u.Username))
	return response.Success(c, &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserInfo: &UserInfo{
			ID:       u.ID,
			Username: u.Username,
			Nickname: u.Nickname,
		},
	})
}

// Logout 退出登录，请求体为裸的 refresh token 字符串
//
// 令牌不存在也返回成功，退出是幂等操作。
func (ctl *Controller) Logout(c *fiber.Ctx) error {
	token := strings.TrimSpace(string(c.Body()))
	if token == "" {
		return response.Success(c, nil)
	}
	if err := ctl.refreshTokens.Logout(c.UserContext(), token); err != nil {
		return err
	}
	return response.Success(c, nil)
}

// RefreshToken 用 refresh token 换新的 access token
//
// 请求体是裸的 refresh token 字符串，响应体是裸的新 access token 字符串。
func (ctl *Controller) RefreshToken(c *fiber.Ctx) error {
	token := strings.TrimSpace(string(c.Body()))
	if token == "" {
		return response.PlainText(c, http.StatusUnauthorized, errors.ErrRefreshTokenInvalid.Message)
	}

	accessToken, err := ctl.refreshTokens.Refresh(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, errors.ErrRefreshTokenInvalid) || errors.Is(err, errors.ErrRefreshTokenExpired) {
			return response.PlainText(c, http.StatusUnauthorized, errors.GetMessage(err))
		}
		return err
	}
	return response.PlainText(c, http.StatusOK, accessToken)
}
