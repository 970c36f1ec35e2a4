package refreshtoken

import (
	"context"
	"time"

	"github.com/huaback/pkg/auth"
	"github.com/huaback/pkg/errors"
	"github.com/huaback/pkg/logger"
	"go.uber.org/zap"
)

// Service 刷新令牌服务
type Service struct {
	repo   Repository
	tokens *auth.TokenService
}

// NewService 创建服务
func NewService(repo Repository, tokens *auth.TokenService) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Save 登录成功后落库一条新的刷新令牌记录
func (s *Service) Save(ctx context.Context, userID int64, token string) error {
	return s.repo.Save(ctx, userID, token)
}

// Refresh 用刷新令牌换取新的 access token
//
// 记录不存在或已软删除返回 ErrRefreshTokenInvalid，exp 声明已过期返回
// ErrRefreshTokenExpired，两种错误信息不同，客户端可以据此区分是否需要重新登录。
// 刷新令牌本身不轮换，记录继续复用。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	rec, err := s.repo.GetByToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	if rec == nil || rec.IsDeleted() {
		return "", errors.ErrRefreshTokenInvalid
	}

	exp, hasExp, err := s.tokens.ExpiryFromToken(refreshToken)
	if err != nil {
		return "", errors.ErrRefreshTokenInvalid
	}
	if !hasExp || exp.Before(time.Now()) {
		return "", errors.ErrRefreshTokenExpired
	}

	return s.tokens.CreateAccessToken(rec.UserID)
}

// Logout 退出登录，软删除刷新令牌记录
//
// 记录不存在时静默成功。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	rec, err := s.repo.GetByToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if err := s.repo.SoftDelete(ctx, rec.ID); err != nil {
		logger.Error("软删除刷新令牌失败", zap.Int64("id", rec.ID), zap.Error(err))
		return err
	}
	return nil
}
