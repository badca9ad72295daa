package model

import "time"

// 唯一约束名，与 migrations 中的定义保持一致
const (
	UserUsernameConstraint  = "users_username_key"
	UserStudentIDConstraint = "users_student_id_key"
)

// User 用户表，对应 users
// StudentID 可为空（本地注册用户），非空时全局唯一
type User struct {
	UserID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"user_id"`
	Username     string     `gorm:"type:varchar(150);not null;uniqueIndex:users_username_key" json:"username"`
	StudentID    *string    `gorm:"type:varchar(32);uniqueIndex:users_student_id_key"         json:"student_id,omitempty"`
	Email        string     `gorm:"type:varchar(254);not null;default:''"                     json:"email"`
	Nickname     string     `gorm:"type:varchar(64);not null;default:''"                      json:"nickname"`
	PasswordHash string     `gorm:"type:varchar(255);not null"                                json:"-"`
	IsSuperuser  bool       `gorm:"not null;default:false"                                    json:"is_superuser"`
	IsActive     bool       `gorm:"not null"                                                  json:"is_active"`
	LastLoginAt  *time.Time `gorm:"type:timestamptz"                                          json:"last_login_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// GetStudentID 返回学号，未绑定时为空串
func (u *User) GetStudentID() string {
	if u.StudentID == nil {
		return ""
	}
	return *u.StudentID
}
