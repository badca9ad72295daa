package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lluckydog/Verilog-OJ/pkg/jwt"
)

// ErrNoSession 会话不存在、已过期或 Cookie 无效
var ErrNoSession = errors.New("会话不存在或已失效")

// Session 服务端会话记录：请求上下文与用户的关联
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired 判断会话在 now 时刻是否已过期
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store 会话持久化接口
// Get 在记录不存在时返回 ErrNoSession；Delete 不存在的记录不是错误
type Store interface {
	Save(ctx context.Context, s *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// Manager 会话的创建、解析与销毁
// Cookie 值为签名 JWT，其 jti 指向 Store 中的会话记录；删除记录即令 Cookie 失效
type Manager struct {
	store  Store
	tokens *jwt.Manager
	ttl    time.Duration
	now    func() time.Time
}

// NewManager 创建会话管理器
func NewManager(store Store, tokens *jwt.Manager, ttl time.Duration) *Manager {
	return &Manager{store: store, tokens: tokens, ttl: ttl, now: time.Now}
}

// TTL 会话有效期（用于设置 Cookie Max-Age）
func (m *Manager) TTL() time.Duration { return m.ttl }

// Create 为用户建立新会话，返回会话记录与 Cookie 值
func (m *Manager) Create(ctx context.Context, userID string) (*Session, string, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	token, err := m.tokens.GenerateSessionToken(s.ID, s.UserID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return nil, "", fmt.Errorf("签发会话 Token 失败: %w", err)
	}

	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return nil, "", fmt.Errorf("保存会话失败: %w", err)
	}

	return s, token, nil
}

// Resolve 根据 Cookie 值取回会话
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrNoSession
	}

	s, err := m.store.Get(ctx, claims.SessionID())
	if err != nil {
		return nil, err
	}
	if s.UserID != claims.UserID || s.Expired(m.now()) {
		return nil, ErrNoSession
	}
	return s, nil
}

// Destroy 销毁会话记录
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}
