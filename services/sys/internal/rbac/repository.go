package rbac

import (
	"context"

	"github.com/huaback/pkg/dal"
	"github.com/huaback/services/sys/internal/model"
	"gorm.io/gorm"
)

// Repository 角色/权限关联仓储接口
type Repository interface {
	// FindPermURIsByRoleID 查询角色拥有的权限 uri 集合，跳过没有 uri 的权限。
	// 这里不按 IsEnabled 过滤，启用状态在菜单层生效，不在鉴权层。
	FindPermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error)
	// FindRoleIDsByUserID 查询用户拥有的角色 id 列表
	FindRoleIDsByUserID(ctx context.Context, userID int64) ([]int64, error)
	// ReplaceRolePerms 以事务替换角色的权限分配
	ReplaceRolePerms(ctx context.Context, roleID int64, permIDs []int64) error
	// ReplaceUserRoles 以事务替换用户的角色分配
	ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error
}

// repository 角色/权限关联仓储实现
type repository struct {
	rolePerms *dal.BaseRepository[model.RolePerm]
	userRoles *dal.BaseRepository[model.UserRole]
	perms     *dal.BaseRepository[model.Perm]
}

// NewRepository 创建仓储
func NewRepository() Repository {
	return &repository{
		rolePerms: dal.NewBaseRepository[model.RolePerm](),
		userRoles: dal.NewBaseRepository[model.UserRole](),
		perms:     dal.NewBaseRepository[model.Perm](),
	}
}

// NewRepositoryWithDB 使用指定DB创建仓储
func NewRepositoryWithDB(db *gorm.DB) Repository {
	return &repository{
		rolePerms: dal.NewBaseRepositoryWithDB[model.RolePerm](db),
		userRoles: dal.NewBaseRepositoryWithDB[model.UserRole](db),
		perms:     dal.NewBaseRepositoryWithDB[model.Perm](db),
	}
}

// FindPermURIsByRoleID 查询角色拥有的权限 uri 集合
func (r *repository) FindPermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error) {
	assignments, err := r.rolePerms.FindAll(ctx, map[string]interface{}{"role_id": roleID}, dal.WithSelect("perm_id"))
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return []string{}, nil
	}

	permIDs := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		permIDs = append(permIDs, a.PermID)
	}

	var perms []model.Perm
	if err := r.perms.DB().WithContext(ctx).Where("id IN ?", permIDs).Find(&perms).Error; err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(perms))
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p.URI == nil {
			continue
		}
		if _, ok := seen[*p.URI]; ok {
			continue
		}
		seen[*p.URI] = struct{}{}
		uris = append(uris, *p.URI)
	}
	return uris, nil
}

// FindRoleIDsByUserID 查询用户拥有的角色 id 列表
func (r *repository) FindRoleIDsByUserID(ctx context.Context, userID int64) ([]int64, error) {
	assignments, err := r.userRoles.FindAll(ctx, map[string]interface{}{"user_id": userID}, dal.WithSelect("role_id"))
	if err != nil {
		return nil, err
	}
	roleIDs := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		roleIDs = append(roleIDs, a.RoleID)
	}
	return roleIDs, nil
}

// ReplaceRolePerms 以事务替换角色的权限分配
func (r *repository) ReplaceRolePerms(ctx context.Context, roleID int64, permIDs []int64) error {
	return r.rolePerms.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("role_id = ?", roleID).Delete(&model.RolePerm{}).Error; err != nil {
			return err
		}
		for _, permID := range permIDs {
			if err := tx.Create(&model.RolePerm{RoleID: roleID, PermID: permID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceUserRoles 以事务替换用户的角色分配
func (r *repository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return r.userRoles.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&model.UserRole{}).Error; err != nil {
			return err
		}
		for _, roleID := range roleIDs {
			if err := tx.Create(&model.UserRole{UserID: userID, RoleID: roleID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
