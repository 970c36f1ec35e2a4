package refreshtoken

import (
	"context"

	"github.com/huaback/pkg/dal"
	"github.com/huaback/services/sys/internal/model"
	"gorm.io/gorm"
)

// Repository 刷新令牌仓储接口
type Repository interface {
	// Save 持久化一条新记录，初始状态未删除
	Save(ctx context.Context, userID int64, token string) error
	// GetByToken 按令牌串精确查找，包含已软删除的记录
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	// SoftDelete 软删除记录，对已删除的记录重复调用是无操作的成功
	SoftDelete(ctx context.Context, id int64) error
}

// repository 刷新令牌仓储实现
type repository struct {
	*dal.BaseRepository[model.RefreshToken]
}

// NewRepository 创建仓储
func NewRepository() Repository {
	return &repository{
		BaseRepository: dal.NewBaseRepository[model.RefreshToken](),
	}
}

// NewRepositoryWithDB 使用指定DB创建仓储
func NewRepositoryWithDB(db *gorm.DB) Repository {
	return &repository{
		BaseRepository: dal.NewBaseRepositoryWithDB[model.RefreshToken](db),
	}
}

// Save 持久化一条新记录
func (r *repository) Save(ctx context.Context, userID int64, token string) error {
	return r.Create(ctx, &model.RefreshToken{UserID: userID, Token: token})
}

// GetByToken 按令牌串精确查找
//
// 带上已软删除的记录一起查，"记录不存在"和"记录已删除"由调用方区分处理。
func (r *repository) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	return r.FindOne(ctx, map[string]interface{}{"token": token}, dal.WithUnscoped())
}

// SoftDelete 软删除记录
func (r *repository) SoftDelete(ctx context.Context, id int64) error {
	return r.Delete(ctx, id)
}
