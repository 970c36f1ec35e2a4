package model

import (
	"github.com/huaback/pkg/dal"
)

// Role 角色模型
type Role struct {
	dal.Model
	Name        string `gorm:"size:50;not null" json:"name"`
	Sort        int    `gorm:"default:0" json:"sort"`
	Description string `gorm:"size:255" json:"description"`
}

// TableName 表名
func (Role) TableName() string {
	return "sys_role"
}

// 权限类型
const (
	PermTypeDir     = "D" // 目录
	PermTypeMenu    = "M" // 菜单
	PermTypeElement = "E" // 页面元素
)

// Perm 权限模型，通过 ParentID 组成树，根节点 ParentID 为 0
type Perm struct {
	dal.Model
	ParentID  int64   `gorm:"index;default:0" json:"parentId"`
	Name      string  `gorm:"size:50;not null" json:"name"`
	Type      string  `gorm:"size:1;not null" json:"type"`
	URI       *string `gorm:"size:255" json:"uri"`
	IsEnabled bool    `gorm:"default:true" json:"isEnabled"`
	Sort      int     `gorm:"default:0" json:"sort"`
}

// TableName 表名
func (Perm) TableName() string {
	return "sys_perm"
}

// UserRole 用户-角色关联
type UserRole struct {
	dal.Model
	UserID int64 `gorm:"index;not null" json:"userId"`
	RoleID int64 `gorm:"index;not null" json:"roleId"`
}

// TableName 表名
func (UserRole) TableName() string {
	return "sys_user_role"
}

// RolePerm 角色-权限关联
type RolePerm struct {
	dal.Model
	RoleID int64 `gorm:"index;not null" json:"roleId"`
	PermID int64 `gorm:"index;not null" json:"permId"`
}

// TableName 表名
func (RolePerm) TableName() string {
	return "sys_role_perm"
}
