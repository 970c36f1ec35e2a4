package cache

import (
	"context"
	"fmt"

	pkgcache "github.com/huaback/pkg/cache"
)

const roleURIsCachePrefix = "cache:role:uris:roleId"

// roleLoader 角色缓存需要的后端查询能力
type roleLoader interface {
	FindPermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error)
}

// RoleCache 角色权限 uri 缓存
//
// 值是角色被授予的权限 uri 集合（role → perm → perm.uri 连接查询的结果）。
// 空集合是正常值，照常缓存。
type RoleCache struct {
	store *pkgcache.Store
	roles roleLoader
}

// NewRoleCache 创建角色缓存
func NewRoleCache(store *pkgcache.Store, roles roleLoader) *RoleCache {
	return &RoleCache{store: store, roles: roles}
}

// roleURIsKey 缓存键
func roleURIsKey(roleID int64) string {
	return fmt.Sprintf("%s::%d", roleURIsCachePrefix, roleID)
}

// GetPermURIsByRoleID 获取角色拥有的权限 uri 集合
func (c *RoleCache) GetPermURIsByRoleID(ctx context.Context, roleID int64) ([]string, error) {
	uris, _, err := pkgcache.GetOrLoad(ctx, c.store, roleURIsKey(roleID), func(ctx context.Context) ([]string, bool, error) {
		uris, err := c.roles.FindPermURIsByRoleID(ctx, roleID)
		if err != nil {
			return nil, false, err
		}
		return uris, true, nil
	})
	return uris, err
}

// DeleteCache 角色权限分配变化后清除缓存
func (c *RoleCache) DeleteCache(ctx context.Context, roleID int64) error {
	return c.store.Delete(ctx, roleURIsKey(roleID))
}
