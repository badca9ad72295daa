package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/api/handler"
	"github.com/lluckydog/Verilog-OJ/internal/api/middleware"
	"github.com/lluckydog/Verilog-OJ/internal/api/router"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/internal/service"
	"github.com/lluckydog/Verilog-OJ/pkg/cas"
	"github.com/lluckydog/Verilog-OJ/pkg/database"
	"github.com/lluckydog/Verilog-OJ/pkg/jwt"
	applogger "github.com/lluckydog/Verilog-OJ/pkg/logger"
	"github.com/lluckydog/Verilog-OJ/pkg/redis"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
	"github.com/lluckydog/Verilog-OJ/pkg/telemetry"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("VOJ_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 3. 链路追踪（未配置 OTLP 地址时为空操作）
	shutdownTracing := telemetry.Setup(&cfg.Telemetry, logger)

	// 4. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 4.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 5. 连接 Redis（可选：连接失败时会话降级为进程内存储，限流关闭）
	var (
		sessionStore session.Store
		limiter      middleware.Limiter
	)
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，会话改用内存存储（重启即失效，不可多实例部署）", zap.Error(err))
		rdb = nil
		sessionStore = session.NewMemoryStore()
	} else {
		sessionStore = redis.NewSessionStore(rdb)
		limiter = rdb
	}

	// 6. 会话管理器
	sessions := session.NewManager(sessionStore, jwt.NewManager(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL)

	// 7. CAS 客户端
	casClient, err := cas.NewClient(cfg.CAS.BaseURL, &http.Client{
		Timeout:   cfg.CAS.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		logger.Fatal("CAS 客户端初始化失败", zap.Error(err))
	}

	// 8. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, sessions, casClient, logger)

	if cfg.Seed.UsersFile != "" {
		n, err := service.SeedUsers(context.Background(), repo, cfg.Seed.UsersFile, logger)
		if err != nil {
			logger.Fatal("导入初始用户失败", zap.Error(err))
		}
		logger.Info("初始用户导入完成", zap.Int("created", n))
	}

	h := handler.NewHandler(svc, cfg.Auth.Cookie, sessions.TTL())

	// 9. 初始化路由
	engine := router.Setup(cfg, h, svc.Auth, limiter, logger)

	// 10. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      otelhttp.NewHandler(engine, cfg.Telemetry.ServiceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 11. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	if err := shutdownTracing(ctx); err != nil {
		logger.Warn("链路追踪关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Warn("数据库连接关闭异常", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
