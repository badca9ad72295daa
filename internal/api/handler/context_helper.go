package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/service"
	"github.com/lluckydog/Verilog-OJ/pkg/response"
)

// CallerFromContext 取出当前调用者；未经认证中间件或未登录时返回 Anonymous
func CallerFromContext(c *gin.Context) service.Caller {
	v, exists := c.Get(service.CallerContextKey)
	if !exists {
		return service.Anonymous
	}
	caller, ok := v.(service.Caller)
	if !ok {
		return service.Anonymous
	}
	return caller
}

// MustGetCaller 取出已登录的调用者
// 未登录时写入 401 响应并返回 false，调用方应直接 return
func MustGetCaller(c *gin.Context) (service.Caller, bool) {
	caller := CallerFromContext(c)
	if !caller.Authenticated() {
		response.Unauthorized(c, 10002, "未登录")
		return service.Anonymous, false
	}
	return caller, true
}

// parseUserID 校验路径中的用户 ID，非法 ID 视为不存在
func parseUserID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, 20001, "用户不存在")
		return "", false
	}
	return id.String(), true
}

// sessionCookie 会话 Cookie 的写入与清除
type sessionCookie struct {
	name     string
	domain   string
	secure   bool
	sameSite http.SameSite
	maxAge   int
}

func newSessionCookie(cfg config.CookieConfig, ttl time.Duration) *sessionCookie {
	return &sessionCookie{
		name:     cfg.Name,
		domain:   cfg.Domain,
		secure:   cfg.Secure,
		sameSite: parseSameSite(cfg.SameSite),
		maxAge:   int(ttl / time.Second),
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Name Cookie 名
func (s *sessionCookie) Name() string { return s.name }

// Set 写入会话 Cookie
func (s *sessionCookie) Set(c *gin.Context, token string) {
	c.SetSameSite(s.sameSite)
	c.SetCookie(s.name, token, s.maxAge, "/", s.domain, s.secure, true)
}

// Clear 清除会话 Cookie
func (s *sessionCookie) Clear(c *gin.Context) {
	c.SetSameSite(s.sameSite)
	c.SetCookie(s.name, "", -1, "/", s.domain, s.secure, true)
}
