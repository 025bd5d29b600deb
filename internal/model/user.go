// Package model 包含了应用的数据模型定义。
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 是身份提供方返回的用户信息。
// 使用本地身份提供方时同时作为 users 表的模型。
type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	FullName     string    `gorm:"type:varchar(255)" json:"full_name"`
	PasswordHash string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate 在插入前生成 UUID 主键。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// DisplayName 返回用户的显示名称，未设置时返回 fallback。
func (u *User) DisplayName(fallback string) string {
	if u == nil {
		return fallback
	}
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return fallback
}
