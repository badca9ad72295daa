package dto

// ── 认证模块 DTO ──

// LoginRequest 用户名密码登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=150"`
	Password string `json:"password" binding:"required,max=72"`
}

// SignupRequest 本地注册请求
type SignupRequest struct {
	Username  string  `json:"username"   binding:"required,max=150"`
	Password  string  `json:"password"   binding:"required,min=6,max=72"`
	StudentID *string `json:"student_id" binding:"omitempty,max=32"`
	Email     string  `json:"email"      binding:"omitempty,email,max=254"`
	Nickname  string  `json:"nickname"   binding:"omitempty,max=64"`
}
