package dto

// ── 用户表示 ──

// UserView 用户对外表示：*UserResponse（本人或管理员可见）或 *UserPublicResponse
type UserView interface {
	userView()
}

// UserResponse 完整用户信息（不含密码哈希）
type UserResponse struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	StudentID   string  `json:"student_id,omitempty"`
	Email       string  `json:"email"`
	Nickname    string  `json:"nickname"`
	IsSuperuser bool    `json:"is_superuser"`
	IsActive    bool    `json:"is_active"`
	LastLoginAt *string `json:"last_login_at"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// UserPublicResponse 他人可见的公开信息
type UserPublicResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	CreatedAt string `json:"created_at"`
}

func (*UserResponse) userView()       {}
func (*UserPublicResponse) userView() {}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
