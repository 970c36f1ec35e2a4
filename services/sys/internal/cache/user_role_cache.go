package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pkgcache "github.com/huaback/pkg/cache"
)

const roleIDsByUserIDCachePrefix = "cache:userRole:userId"

// userRoleLoader 用户角色缓存需要的后端查询能力
type userRoleLoader interface {
	FindRoleIDsByUserID(ctx context.Context, userID int64) ([]int64, error)
}

// UserRoleCache 用户拥有的角色缓存
//
// 值直接以逗号拼接的字符串写在 Redis 上，没有角色的用户缓存空串。
type UserRoleCache struct {
	store     *pkgcache.Store
	userRoles userRoleLoader
}

// NewUserRoleCache 创建用户角色缓存
func NewUserRoleCache(store *pkgcache.Store, userRoles userRoleLoader) *UserRoleCache {
	return &UserRoleCache{store: store, userRoles: userRoles}
}

// userRoleKey 缓存键
func userRoleKey(userID int64) string {
	return fmt.Sprintf("%s::%d", roleIDsByUserIDCachePrefix, userID)
}

// GetRoleIDsByUserID 获取用户拥有的角色 id 列表
func (c *UserRoleCache) GetRoleIDsByUserID(ctx context.Context, userID int64) ([]int64, error) {
	key := userRoleKey(userID)

	joined, hit, err := c.store.GetString(ctx, key)
	if err != nil {
		return nil, err
	}
	if !hit {
		res, err := c.store.Group().Do(ctx, key, func() (interface{}, error) {
			roleIDs, err := c.userRoles.FindRoleIDsByUserID(ctx, userID)
			if err != nil {
				return nil, err
			}
			strs := make([]string, 0, len(roleIDs))
			for _, id := range roleIDs {
				strs = append(strs, strconv.FormatInt(id, 10))
			}
			joined := strings.Join(strs, ",")
			if err := c.store.SetString(ctx, key, joined); err != nil {
				return nil, err
			}
			return joined, nil
		})
		if err != nil {
			return nil, err
		}
		joined = res.(string)
	}

	return parseRoleIDs(joined)
}

// DeleteCache 用户角色分配变化后清除缓存
func (c *UserRoleCache) DeleteCache(ctx context.Context, userID int64) error {
	return c.store.Delete(ctx, userRoleKey(userID))
}

// parseRoleIDs 解析逗号拼接的角色 id，空串表示没有角色
func parseRoleIDs(joined string) ([]int64, error) {
	if joined == "" {
		return []int64{}, nil
	}
	parts := strings.Split(joined, ",")
	roleIDs := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cache: bad role id %q: %w", p, err)
		}
		roleIDs = append(roleIDs, id)
	}
	return roleIDs, nil
}
