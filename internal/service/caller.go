package service

// Caller 当前请求的调用者身份，由认证中间件解析后显式传入各业务方法
// 零值表示匿名调用者
type Caller struct {
	UserID      string
	SessionID   string
	IsSuperuser bool
}

// CallerContextKey 认证中间件写入请求上下文的调用者键
const CallerContextKey = "caller"

// Anonymous 匿名调用者
var Anonymous = Caller{}

// Authenticated 是否已登录
func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// IsSelf 是否为指定用户本人
func (c Caller) IsSelf(userID string) bool {
	return c.Authenticated() && c.UserID == userID
}

// CanManage 是否可以查看完整信息或修改指定用户（本人或管理员）
func (c Caller) CanManage(userID string) bool {
	return c.Authenticated() && (c.IsSuperuser || c.UserID == userID)
}
