package rbac

import (
	"context"

	"github.com/huaback/pkg/logger"
	"github.com/huaback/services/sys/internal/cache"
	"go.uber.org/zap"
)

// Service 角色权限服务
type Service struct {
	repo  Repository
	roles *cache.RoleCache
}

// NewService 创建服务
func NewService(repo Repository, roles *cache.RoleCache) *Service {
	return &Service{repo: repo, roles: roles}
}

// GetPermURIsByRoleID 获取角色的权限 uri 集合（走缓存）
func (s *Service) GetPermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error) {
	return s.roles.GetPermURIsByRoleID(ctx, roleID)
}

// AssignPerms 替换角色的权限分配并清除角色权限缓存
//
// 先落库后清缓存，清缓存失败时数据库是新的、缓存是旧的，
// 错误向上传递让调用方重试。
func (s *Service) AssignPerms(ctx context.Context, roleID int64, permIDs []int64) error {
	if err := s.repo.ReplaceRolePerms(ctx, roleID, permIDs); err != nil {
		return err
	}
	if err := s.roles.DeleteCache(ctx, roleID); err != nil {
		logger.Error("清除角色权限缓存失败", zap.Int64("roleId", roleID), zap.Error(err))
		return err
	}
	return nil
}
