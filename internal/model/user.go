package model

import "strings"

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// User 花名册中的用户。Group 是当前所在班级，分发和统计都按它取学生
type User struct {
	BaseModel
	Username  string   `gorm:"size:100;uniqueIndex;not null" json:"username"`
	FirstName string   `gorm:"size:100" json:"firstName"`
	LastName  string   `gorm:"size:100" json:"lastName"`
	Role      UserRole `gorm:"size:16;default:'student';index" json:"role"`
	Group     string   `gorm:"size:64;index" json:"group"`
	Disabled  bool     `gorm:"default:false" json:"disabled"`
}

func (User) TableName() string {
	return "users"
}

// FullName 姓 + 名，都为空时用用户名
func (u *User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.LastName) + " " + strings.TrimSpace(u.FirstName))
	if name == "" {
		return u.Username
	}
	return name
}

// RosterEntry 分发与统计使用的学生快照
type RosterEntry struct {
	ID       uint   `json:"id"`
	FullName string `json:"fullName"`
	Group    string `json:"group"`
}
