package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/model"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/pkg/cas"
)

var (
	ErrIdentityProviderUnavailable = errors.New("统一身份认证服务暂不可用，请稍后再试")
	ErrProvisioningFailed          = errors.New("统一身份认证账号创建失败")
	ErrAccountDisabled             = errors.New("账号已停用")
)

// CASResult 统一身份认证登录结果
// RedirectURL 非空时调用方应重定向到 CAS 登录页；否则 Login 为成功建立的会话
type CASResult struct {
	RedirectURL string
	Login       *LoginResult
}

// CASService 统一身份认证登录业务接口
type CASService interface {
	// Login 校验 ticket 并登录对应账号，学号首次出现时自动创建账号
	Login(ctx context.Context, ticket string) (*CASResult, error)
}

type casService struct {
	sessionIssuer
	idp               IdentityProvider
	serviceURL        string
	timeout           time.Duration
	maxAttempts       int
	usernameAttribute string
}

// NewCASService 创建 CASService 实例
func NewCASService(
	cfg *config.CASConfig,
	repo *repository.Repository,
	sessions SessionManager,
	idp IdentityProvider,
	logger *zap.Logger,
) CASService {
	return &casService{
		sessionIssuer:     sessionIssuer{repo: repo, sessions: sessions, logger: logger},
		idp:               idp,
		serviceURL:        cfg.ServiceURL,
		timeout:           cfg.Timeout,
		maxAttempts:       cfg.MaxProvisionAttempts,
		usernameAttribute: cfg.UsernameAttribute,
	}
}

func (s *casService) Login(ctx context.Context, ticket string) (*CASResult, error) {
	// 1. 无 ticket：跳转 CAS 登录页
	if ticket == "" {
		return s.redirect(), nil
	}

	// 2. 服务端校验 ticket
	resp, err := s.validate(ctx, ticket)
	if err != nil {
		s.logger.Warn("CAS 校验请求失败", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrIdentityProviderUnavailable, err)
	}
	if resp == nil || !resp.Success {
		// ticket 被拒绝（过期、重复使用等）时重新登录
		var code string
		if resp != nil {
			code = resp.FailureCode
		}
		s.logger.Info("CAS ticket 校验未通过", zap.String("code", code))
		return s.redirect(), nil
	}

	// 3-5. 按学号查找或创建账号
	user, err := s.findOrProvision(ctx, resp)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		s.logger.Info("停用账号尝试 CAS 登录", zap.String("user_id", user.UserID))
		return nil, ErrAccountDisabled
	}

	// 6. 建立会话
	login, err := s.establish(ctx, user)
	if err != nil {
		return nil, err
	}
	return &CASResult{Login: login}, nil
}

func (s *casService) redirect() *CASResult {
	return &CASResult{RedirectURL: s.idp.LoginURL(s.serviceURL)}
}

func (s *casService) validate(ctx context.Context, ticket string) (*cas.Response, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.idp.ValidateServiceTicket(ctx, ticket, s.serviceURL)
}

// findOrProvision 按学号查找账号，不存在时创建
// 候选用户名首次取 CAS 属性（默认 gid），冲突后改用随机用户名重试，重试次数有上限
func (s *casService) findOrProvision(ctx context.Context, resp *cas.Response) (*model.User, error) {
	studentID := resp.User

	user, err := s.repo.User.GetByStudentID(ctx, studentID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("按学号查询用户失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	// 初始密码为学号本身
	hash, err := hashPassword(studentID)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	candidate, _ := resp.Attribute(s.usernameAttribute)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 || ValidateUsername(candidate) != nil {
			if candidate, err = randomUsername(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
			}
		}

		sid := studentID
		err := s.repo.User.Create(ctx, &model.User{
			Username:     candidate,
			StudentID:    &sid,
			PasswordHash: hash,
			IsActive:     true,
		})
		switch {
		case err == nil:
			created, err := s.repo.User.GetByStudentID(ctx, studentID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
			}
			s.logger.Info("CAS 首次登录，已创建账号",
				zap.String("user_id", created.UserID),
				zap.String("username", created.Username),
				zap.Int("attempts", attempt),
			)
			return created, nil

		case errors.Is(err, repository.ErrUsernameTaken):
			s.logger.Debug("候选用户名已被占用，重试", zap.String("username", candidate), zap.Int("attempt", attempt))

		case errors.Is(err, repository.ErrStudentIDTaken):
			// 并发的首次登录已抢先创建了该学号的账号
			existing, err := s.repo.User.GetByStudentID(ctx, studentID)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
			}
			return existing, nil

		default:
			s.logger.Error("CAS 账号创建失败", zap.String("student_id", studentID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
		}
	}

	s.logger.Error("CAS 账号创建重试次数耗尽",
		zap.String("student_id", studentID),
		zap.Int("max_attempts", s.maxAttempts),
	)
	return nil, fmt.Errorf("%w: 用户名冲突重试 %d 次仍失败", ErrProvisioningFailed, s.maxAttempts)
}
