package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lluckydog/Verilog-OJ/internal/dto"
	"github.com/lluckydog/Verilog-OJ/internal/model"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
)

// LoginResult 登录成功结果：Token 写入会话 Cookie
type LoginResult struct {
	User    *dto.UserResponse
	Session *session.Session
	Token   string
}

// AuthService 认证业务接口
type AuthService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*LoginResult, error)
	// Logout 返回 false 表示调用者本就未登录
	Logout(ctx context.Context, caller Caller) (bool, error)
	// Authenticate 由 Cookie 值解析调用者；会话无效时返回 Anonymous 与 session.ErrNoSession
	Authenticate(ctx context.Context, token string) (Caller, error)
}

type authService struct {
	sessionIssuer
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(repo *repository.Repository, sessions SessionManager, logger *zap.Logger) AuthService {
	return &authService{
		sessionIssuer: sessionIssuer{repo: repo, sessions: sessions, logger: logger},
	}
}

// ────────────────────── Signup ──────────────────────

func (s *authService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.UserResponse, error) {
	if err := ValidateUsername(req.Username); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		if !errors.Is(err, ErrPasswordTooLong) {
			s.logger.Error("密码哈希失败", zap.Error(err))
		}
		return nil, err
	}

	user := &model.User{
		Username:     req.Username,
		StudentID:    normalizeStudentID(req.StudentID),
		Email:        req.Email,
		Nickname:     req.Nickname,
		PasswordHash: hash,
		IsActive:     true,
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			s.logger.Error("注册用户失败", zap.String("username", req.Username), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("新用户注册", zap.String("user_id", user.UserID), zap.String("username", user.Username))
	return toUserResponse(user), nil
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*LoginResult, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)，停用账号视同凭据错误
	if !user.IsActive || !checkPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	// 3. 建立会话
	return s.establish(ctx, user)
}

// sessionIssuer 本地登录与 CAS 登录共用的会话建立逻辑
type sessionIssuer struct {
	repo     *repository.Repository
	sessions SessionManager
	logger   *zap.Logger
}

// establish 为用户建立会话并记录登录时间
func (s *sessionIssuer) establish(ctx context.Context, user *model.User) (*LoginResult, error) {
	sess, token, err := s.sessions.Create(ctx, user.UserID)
	if err != nil {
		s.logger.Error("创建会话失败", zap.String("user_id", user.UserID), zap.Error(err))
		return nil, err
	}

	now := time.Now()
	if err := s.repo.User.UpdateLastLogin(ctx, user.UserID, now); err != nil {
		s.logger.Warn("更新最后登录时间失败", zap.String("user_id", user.UserID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	return &LoginResult{User: toUserResponse(user), Session: sess, Token: token}, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, caller Caller) (bool, error) {
	if !caller.Authenticated() || caller.SessionID == "" {
		return false, nil
	}
	if err := s.sessions.Destroy(ctx, caller.SessionID); err != nil {
		s.logger.Error("销毁会话失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return false, err
	}
	return true, nil
}

// ────────────────────── Authenticate ──────────────────────

func (s *authService) Authenticate(ctx context.Context, token string) (Caller, error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return Anonymous, err
	}

	// 每次请求重新加载用户，保证删除、停用、权限变更即时生效
	user, err := s.repo.User.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = s.sessions.Destroy(ctx, sess.ID)
			return Anonymous, session.ErrNoSession
		}
		return Anonymous, err
	}
	if !user.IsActive {
		_ = s.sessions.Destroy(ctx, sess.ID)
		return Anonymous, session.ErrNoSession
	}

	return Caller{
		UserID:      user.UserID,
		SessionID:   sess.ID,
		IsSuperuser: user.IsSuperuser,
	}, nil
}

// ── 内部辅助方法 ──

// normalizeStudentID 空学号视为未绑定
func normalizeStudentID(sid *string) *string {
	if sid == nil || *sid == "" {
		return nil
	}
	v := *sid
	return &v
}

const timeLayout = time.RFC3339

// toUserResponse 将 model.User 转换为完整表示
func toUserResponse(user *model.User) *dto.UserResponse {
	resp := &dto.UserResponse{
		ID:          user.UserID,
		Username:    user.Username,
		StudentID:   user.GetStudentID(),
		Email:       user.Email,
		Nickname:    user.Nickname,
		IsSuperuser: user.IsSuperuser,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt.Format(timeLayout),
		UpdatedAt:   user.UpdatedAt.Format(timeLayout),
	}
	if user.LastLoginAt != nil {
		ts := user.LastLoginAt.Format(timeLayout)
		resp.LastLoginAt = &ts
	}
	return resp
}

// toUserPublicResponse 将 model.User 转换为公开表示
func toUserPublicResponse(user *model.User) *dto.UserPublicResponse {
	return &dto.UserPublicResponse{
		ID:        user.UserID,
		Username:  user.Username,
		Nickname:  user.Nickname,
		CreatedAt: user.CreatedAt.Format(timeLayout),
	}
}
