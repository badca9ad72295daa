package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lluckydog/Verilog-OJ/internal/dto"
	"github.com/lluckydog/Verilog-OJ/internal/model"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
)

// ── 用户模块业务错误 ──

var (
	ErrUnauthenticated = errors.New("未登录")
	ErrNoPermission    = errors.New("无权操作")
)

// UserService 用户业务接口
// 所有方法显式接收调用者身份，可见性与权限均据此判定
type UserService interface {
	List(ctx context.Context, caller Caller, req *dto.UserListRequest) ([]dto.UserView, int64, error)
	Get(ctx context.Context, caller Caller, id string) (dto.UserView, error)
	GetCurrent(ctx context.Context, caller Caller) (*dto.UserResponse, error)
	Create(ctx context.Context, caller Caller, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	Update(ctx context.Context, caller Caller, id string, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	Delete(ctx context.Context, caller Caller, id string) error
}

type userService struct {
	repo     *repository.Repository
	sessions SessionManager
	logger   *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, sessions SessionManager, logger *zap.Logger) UserService {
	return &userService{repo: repo, sessions: sessions, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, caller Caller, req *dto.UserListRequest) ([]dto.UserView, int64, error) {
	filters := &repository.UserListFilters{Keyword: req.Keyword}

	users, total, err := s.repo.User.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("列出用户失败", zap.Error(err))
		return nil, 0, err
	}

	// 列表中仅管理员可见完整信息
	result := make([]dto.UserView, 0, len(users))
	for i := range users {
		if caller.Authenticated() && caller.IsSuperuser {
			result = append(result, toUserResponse(&users[i]))
		} else {
			result = append(result, toUserPublicResponse(&users[i]))
		}
	}

	return result, total, nil
}

// ────────────────────── Get ──────────────────────

func (s *userService) Get(ctx context.Context, caller Caller, id string) (dto.UserView, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if caller.CanManage(id) {
		return toUserResponse(user), nil
	}
	return toUserPublicResponse(user), nil
}

// ────────────────────── GetCurrent ──────────────────────

func (s *userService) GetCurrent(ctx context.Context, caller Caller) (*dto.UserResponse, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	user, err := s.load(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(user), nil
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, caller Caller, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !caller.IsSuperuser {
		return nil, ErrNoPermission
	}
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
		IsSuperuser:  req.IsSuperuser,
		IsActive:     true,
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			s.logger.Error("创建用户失败", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("管理员创建用户",
		zap.String("operator", caller.UserID),
		zap.String("user_id", user.UserID),
	)
	return toUserResponse(user), nil
}

// ────────────────────── Update ──────────────────────

func (s *userService) Update(ctx context.Context, caller Caller, id string, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if !caller.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !caller.CanManage(id) {
		return nil, ErrNoPermission
	}
	// 学号绑定、权限与启用状态仅管理员可改
	if !caller.IsSuperuser && (req.StudentID != nil || req.IsSuperuser != nil || req.IsActive != nil) {
		return nil, ErrNoPermission
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// 应用更新字段（仅更新非 nil 字段）
	if req.Username != nil {
		if err := ValidateUsername(*req.Username); err != nil {
			return nil, err
		}
		user.Username = *req.Username
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			if !errors.Is(err, ErrPasswordTooLong) {
				s.logger.Error("密码哈希失败", zap.Error(err))
			}
			return nil, err
		}
		user.PasswordHash = hash
	}
	if req.StudentID != nil {
		user.StudentID = normalizeStudentID(req.StudentID)
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Nickname != nil {
		user.Nickname = *req.Nickname
	}
	if req.IsSuperuser != nil {
		user.IsSuperuser = *req.IsSuperuser
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.User.Update(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			s.logger.Error("更新用户失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	return toUserResponse(user), nil
}

// ────────────────────── Delete ──────────────────────

func (s *userService) Delete(ctx context.Context, caller Caller, id string) error {
	if !caller.Authenticated() {
		return ErrUnauthenticated
	}
	if !caller.CanManage(id) {
		return ErrNoPermission
	}

	if err := s.repo.User.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("删除用户失败", zap.String("id", id), zap.Error(err))
		return err
	}

	// 注销自己的账号时一并结束当前会话
	if caller.IsSelf(id) && caller.SessionID != "" {
		if err := s.sessions.Destroy(ctx, caller.SessionID); err != nil {
			s.logger.Warn("销毁会话失败", zap.String("user_id", id), zap.Error(err))
		}
	}

	s.logger.Info("删除用户", zap.String("operator", caller.UserID), zap.String("user_id", id))
	return nil
}

// ── 内部辅助方法 ──

func (s *userService) load(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}
