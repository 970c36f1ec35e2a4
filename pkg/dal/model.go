package dal

import (
	"time"

	"gorm.io/gorm"
)

// Model 基础模型，软删除通过 DeletedAt 标记而不是物理删除
type Model struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

// IsDeleted 是否已被软删除
func (m *Model) IsDeleted() bool {
	return m.DeletedAt.Valid
}

// QueryOption 查询选项
type QueryOption func(*gorm.DB) *gorm.DB

func WithSelect(fields ...string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Select(fields) }
}

func WithOrder(order string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

// WithUnscoped 查询时包含已软删除的行
func WithUnscoped() QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Unscoped() }
}
