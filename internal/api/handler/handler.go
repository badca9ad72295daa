package handler

import (
	"time"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth *AuthHandler
	User *UserHandler
}

// NewHandler 创建 Handler 聚合
// sessionTTL 用于设置会话 Cookie 的 Max-Age
func NewHandler(svc *service.Service, cookie config.CookieConfig, sessionTTL time.Duration) *Handler {
	sc := newSessionCookie(cookie, sessionTTL)
	return &Handler{
		Auth: NewAuthHandler(svc.Auth, svc.CAS, sc),
		User: NewUserHandler(svc.User, sc),
	}
}
