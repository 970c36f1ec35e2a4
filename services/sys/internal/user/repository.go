package user

import (
	"context"

	"github.com/huaback/pkg/dal"
	"github.com/huaback/services/sys/internal/model"
	"gorm.io/gorm"
)

// Repository 用户仓储接口
type Repository interface {
	dal.Repository[model.User]
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindIDByUsername(ctx context.Context, username string) (int64, bool, error)
}

// repository 用户仓储实现
type repository struct {
	*dal.BaseRepository[model.User]
}

// NewRepository 创建用户仓储
func NewRepository() Repository {
	return &repository{
		BaseRepository: dal.NewBaseRepository[model.User](),
	}
}

// NewRepositoryWithDB 使用指定DB创建用户仓储
func NewRepositoryWithDB(db *gorm.DB) Repository {
	return &repository{
		BaseRepository: dal.NewBaseRepositoryWithDB[model.User](db),
	}
}

// FindByUsername 根据用户名查找未删除的用户
func (r *repository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.FindOne(ctx, map[string]interface{}{"username": username})
}

// FindIDByUsername 根据用户名查找未删除用户的 id，第二个返回值表示是否存在
func (r *repository) FindIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	u, err := r.FindOne(ctx, map[string]interface{}{"username": username}, dal.WithSelect("id"))
	if err != nil {
		return 0, false, err
	}
	if u == nil {
		return 0, false, nil
	}
	return u.ID, true, nil
}
