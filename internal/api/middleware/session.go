package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lluckydog/Verilog-OJ/internal/service"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

// Authenticator 由会话 Cookie 解析调用者（由 service.AuthService 实现）
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Caller, error)
}

// SessionAuth 会话认证中间件
// 读取会话 Cookie 并将调用者写入上下文；无有效会话时以匿名身份继续，
// 是否要求登录由各 Handler 决定
func SessionAuth(auth Authenticator, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := service.Anonymous

		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			resolved, err := auth.Authenticate(c.Request.Context(), token)
			switch {
			case err == nil:
				caller = resolved
			case errors.Is(err, session.ErrNoSession):
			default:
				// 会话存储故障时按匿名处理
				logger.Warn("解析会话失败", zap.Error(err))
			}
		}

		c.Set(service.CallerContextKey, caller)
		if caller.Authenticated() {
			c.Set("user_id", caller.UserID)
		}
		c.Next()
	}
}
