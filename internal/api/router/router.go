package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/api/handler"
	"github.com/lluckydog/Verilog-OJ/internal/api/middleware"
)

const (
	maxBodyBytes = 1 << 20

	// 认证接口限流：每 IP 每接口每分钟
	authRateLimit  = 20
	authRateWindow = time.Minute
)

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时不限流
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	auth middleware.Authenticator,
	limiter middleware.Limiter,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders(cfg.Auth.Cookie.Secure))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	// 所有路由都经过会话解析；是否要求登录由 Handler 与 Service 判定
	v1 := r.Group("/api/v1")
	v1.Use(middleware.SessionAuth(auth, cfg.Auth.Cookie.Name, logger))
	{
		limited := middleware.RateLimit(limiter, authRateLimit, authRateWindow)

		// 认证模块
		authGroup := v1.Group("/auth")
		{
			authGroup.GET("/cas-login", limited, h.Auth.CASLogin)
			authGroup.POST("/signup", limited, h.Auth.Signup)
			authGroup.POST("/login", limited, h.Auth.Login)
			authGroup.GET("/logout", h.Auth.Logout)
		}

		// 用户模块
		users := v1.Group("/users")
		{
			users.GET("", h.User.ListUsers)
			users.POST("", h.User.CreateUser)
			users.GET("/me", h.User.GetCurrentUser)
			users.GET("/:id", h.User.GetUser)
			users.PUT("/:id", h.User.UpdateUser)
			users.PATCH("/:id", h.User.UpdateUser)
			users.DELETE("/:id", h.User.DeleteUser)
		}
	}

	return r
}
