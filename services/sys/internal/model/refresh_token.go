package model

import (
	"github.com/huaback/pkg/dal"
)

// RefreshToken 刷新令牌记录
//
// 签名本身只是必要条件，记录还必须存在且未被软删除才算有效。
// 登录时创建，退出登录时软删除。
type RefreshToken struct {
	dal.Model
	UserID int64  `gorm:"index;not null" json:"userId"`
	Token  string `gorm:"size:512;uniqueIndex;not null" json:"token"`
}

// TableName 表名
func (RefreshToken) TableName() string {
	return "sys_refresh_token"
}
