package model

import (
	"github.com/huaback/pkg/dal"
)

// User 用户模型
type User struct {
	dal.Model
	Username  string `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Password  string `gorm:"size:255;not null" json:"-"`
	Nickname  string `gorm:"size:50" json:"nickname"`
	IsEnabled bool   `gorm:"default:true" json:"isEnabled"`
}

// TableName 表名
func (User) TableName() string {
	return "sys_user"
}
