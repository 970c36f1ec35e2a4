package user

import (
	"context"

	"github.com/huaback/pkg/auth"
	"github.com/huaback/pkg/dal"
	"github.com/huaback/pkg/errors"
	"github.com/huaback/pkg/logger"
	"github.com/huaback/services/sys/internal/cache"
	"github.com/huaback/services/sys/internal/model"
	"github.com/huaback/services/sys/internal/rbac"
	"go.uber.org/zap"
)

// Service 用户服务
//
// 所有写操作成功后同步清理缓存。缓存清理失败不回滚数据库，
// 但错误必须向上传递，调用方据此感知缓存可能短暂不一致。
type Service struct {
	repo      Repository
	users     *cache.UserCache
	userRoles *cache.UserRoleCache
	rbacRepo  rbac.Repository
}

// NewService 创建用户服务
func NewService(repo Repository, users *cache.UserCache, userRoles *cache.UserRoleCache, rbacRepo rbac.Repository) *Service {
	return &Service{repo: repo, users: users, userRoles: userRoles, rbacRepo: rbacRepo}
}

// GetByID 根据 id 获取用户（走缓存），未找到返回 nil
func (s *Service) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetIDByUsername 根据用户名获取用户 id（走缓存）
func (s *Service) GetIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	return s.users.GetIDByUsername(ctx, username)
}

// Create 新增用户，密码以 bcrypt 哈希落库
//
// 用户名查重要带上已软删除的行：username 上有惟一索引，软删除的行
// 也会挡住插入，提前查出来给明确的错误而不是让索引冲突冒出去。
func (s *Service) Create(ctx context.Context, u *model.User, plainPassword string) error {
	existing, err := s.repo.FindOne(ctx, map[string]interface{}{"username": u.Username}, dal.WithUnscoped())
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.BadRequest("用户名已存在")
	}

	hashed, err := auth.HashPassword(plainPassword)
	if err != nil {
		return err
	}
	u.Password = hashed

	if err := s.repo.Create(ctx, u); err != nil {
		return err
	}
	return s.users.AfterSaveOrUpdate(ctx, u)
}

// Update 修改用户
//
// 更新前先按旧用户名清一次缓存：用户名可能被改掉，旧键不清会比
// 新行状态活得更久。密码不在这里改。
func (s *Service) Update(ctx context.Context, u *model.User) error {
	before, err := s.repo.FindByID(ctx, u.ID)
	if err != nil {
		return err
	}
	if before == nil {
		return errors.BadRequest("用户不存在")
	}

	if err := s.users.BeforeUpdate(ctx, before); err != nil {
		return err
	}

	// Save 会覆盖全部字段，密码和创建时间沿用旧值
	u.Password = before.Password
	u.CreatedAt = before.CreatedAt
	if err := s.repo.Update(ctx, u); err != nil {
		return err
	}
	return s.users.AfterSaveOrUpdate(ctx, u)
}

// Delete 软删除用户
func (s *Service) Delete(ctx context.Context, id int64) error {
	before, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if before == nil {
		return nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.users.AfterDelete(ctx, before)
}

// AssignRoles 替换用户的角色分配并清除用户角色缓存
func (s *Service) AssignRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if err := s.rbacRepo.ReplaceUserRoles(ctx, userID, roleIDs); err != nil {
		return err
	}
	if err := s.userRoles.DeleteCache(ctx, userID); err != nil {
		logger.Error("清除用户角色缓存失败", zap.Int64("userId", userID), zap.Error(err))
		return err
	}
	return nil
}

// Page 分页查询用户
func (s *Service) Page(ctx context.Context, page, size int) ([]model.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return nil, 0, err
	}

	var users []model.User
	err = s.repo.DB().WithContext(ctx).
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
