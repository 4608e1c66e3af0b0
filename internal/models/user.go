package models

import "time"

// UserModel is an admin console account.
type UserModel struct {
	Base
	Username      string      `json:"username"        gorm:"size:191;uniqueIndex;not null"`
	Name          string      `json:"name"`
	Password      string      `json:"-"               gorm:"not null"`
	Groups        StringArray `json:"groups"          gorm:"type:text"`
	LastLoginTime *time.Time  `json:"lastLoginTime"`
	LastLoginIP   string      `json:"lastLoginIp"`
}

func (UserModel) TableName() string { return "users" }

// InGroup reports whether the user belongs to group.
func (u UserModel) InGroup(group string) bool {
	return u.Groups.Contains(group)
}
