package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// CreateUserRequest 管理员创建用户请求
type CreateUserRequest struct {
	Username    string  `json:"username"     binding:"required,max=150"`
	Password    string  `json:"password"     binding:"required,min=6,max=72"`
	StudentID   *string `json:"student_id"   binding:"omitempty,max=32"`
	Email       string  `json:"email"        binding:"omitempty,email,max=254"`
	Nickname    string  `json:"nickname"     binding:"omitempty,max=64"`
	IsSuperuser bool    `json:"is_superuser"`
}

// UpdateUserRequest 更新用户信息请求（仅更新非 nil 字段）
type UpdateUserRequest struct {
	Username    *string `json:"username"     binding:"omitempty,max=150"`
	Password    *string `json:"password"     binding:"omitempty,min=6,max=72"`
	StudentID   *string `json:"student_id"   binding:"omitempty,max=32"`
	Email       *string `json:"email"        binding:"omitempty,email,max=254"`
	Nickname    *string `json:"nickname"     binding:"omitempty,max=64"`
	IsSuperuser *bool   `json:"is_superuser"`
	IsActive    *bool   `json:"is_active"`
}
