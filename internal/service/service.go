package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/pkg/cas"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

// SessionManager 会话管理依赖（由 pkg/session.Manager 实现）
type SessionManager interface {
	Create(ctx context.Context, userID string) (*session.Session, string, error)
	Resolve(ctx context.Context, token string) (*session.Session, error)
	Destroy(ctx context.Context, sessionID string) error
}

// IdentityProvider 统一身份认证依赖（由 pkg/cas.Client 实现）
type IdentityProvider interface {
	LoginURL(serviceURL string) string
	ValidateServiceTicket(ctx context.Context, ticket, serviceURL string) (*cas.Response, error)
}

// Service 所有 Service 的聚合入口
type Service struct {
	Auth AuthService
	CAS  CASService
	User UserService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	sessions SessionManager,
	idp IdentityProvider,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth: NewAuthService(repo, sessions, logger),
		CAS:  NewCASService(&cfg.CAS, repo, sessions, idp, logger),
		User: NewUserService(repo, sessions, logger),
	}
}
