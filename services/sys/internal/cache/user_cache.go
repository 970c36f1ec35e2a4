package cache

import (
	"context"
	"fmt"
	"strconv"

	pkgcache "github.com/huaback/pkg/cache"
	"github.com/huaback/pkg/dal"
	"github.com/huaback/services/sys/internal/model"
)

const (
	userIDCachePrefix       = "cache:user:id"
	userUsernameCachePrefix = "cache:user:username"
)

// userLoader 用户缓存需要的后端查询能力
type userLoader interface {
	FindByID(ctx context.Context, id int64, opts ...dal.QueryOption) (*model.User, error)
	FindIDByUsername(ctx context.Context, username string) (int64, bool, error)
}

// UserCache 用户缓存
//
// 同一行用户数据有两个相互独立的缓存键：按 id 和按用户名。
// 空结果不缓存，数据写入后下一次查询即可命中新值。
type UserCache struct {
	store *pkgcache.Store
	users userLoader
}

// NewUserCache 创建用户缓存
func NewUserCache(store *pkgcache.Store, users userLoader) *UserCache {
	return &UserCache{store: store, users: users}
}

// idKey 按 id 的缓存键
func idKey(id int64) string {
	return fmt.Sprintf("%s::%d", userIDCachePrefix, id)
}

// usernameKey 按用户名的缓存键
func usernameKey(username string) string {
	return userUsernameCachePrefix + "::" + username
}

// GetByID 根据 id 获取用户，未找到返回 nil
func (c *UserCache) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, found, err := pkgcache.GetOrLoad(ctx, c.store, idKey(id), func(ctx context.Context) (model.User, bool, error) {
		u, err := c.users.FindByID(ctx, id)
		if err != nil {
			return model.User{}, false, err
		}
		if u == nil {
			return model.User{}, false, nil
		}
		return *u, true, nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

// GetIDByUsername 根据用户名获取用户 id，第二个返回值表示是否存在
//
// 值以字符串形式缓存，与按 id 的键互不影响。
func (c *UserCache) GetIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	strID, found, err := pkgcache.GetOrLoad(ctx, c.store, usernameKey(username), func(ctx context.Context) (string, bool, error) {
		id, found, err := c.users.FindIDByUsername(ctx, username)
		if err != nil || !found {
			return "", false, err
		}
		return strconv.FormatInt(id, 10), true, nil
	})
	if err != nil || !found {
		return 0, false, err
	}
	id, err := strconv.ParseInt(strID, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("cache: bad user id %q for username %q: %w", strID, username, err)
	}
	return id, true, nil
}

// AfterSaveOrUpdate 新增或修改操作后的缓存处理，after 为已落库的用户
func (c *UserCache) AfterSaveOrUpdate(ctx context.Context, after *model.User) error {
	return c.deleteKeys(ctx, after)
}

// AfterDelete 删除操作后的缓存处理，before 为删除前的用户
func (c *UserCache) AfterDelete(ctx context.Context, before *model.User) error {
	return c.deleteKeys(ctx, before)
}

// BeforeUpdate 更新操作前的缓存处理，before 为更新前的用户
//
// 用户名可能被改掉，新用户名的键还不存在，但旧用户名的键必须先清掉，
// 否则旧键会比新行状态活得更久。
func (c *UserCache) BeforeUpdate(ctx context.Context, before *model.User) error {
	return c.store.Delete(ctx, usernameKey(before.Username))
}

// deleteKeys 同一条 DEL 命令清掉 id 键和用户名键
//
// 两个键的清除没有跨键事务保证，调用方要把错误当成一致性风险处理，不能吞掉。
func (c *UserCache) deleteKeys(ctx context.Context, u *model.User) error {
	return c.store.Delete(ctx, idKey(u.ID), usernameKey(u.Username))
}
