package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

const sessionPrefix = "session:"

// SessionStore 基于 Redis 的会话存储，记录随 TTL 自动过期
type SessionStore struct {
	c *Client
}

// NewSessionStore 创建 Redis 会话存储
func NewSessionStore(c *Client) *SessionStore {
	return &SessionStore{c: c}
}

var _ session.Store = (*SessionStore)(nil)

func (s *SessionStore) Save(ctx context.Context, sess *session.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	return s.c.rdb.Set(ctx, sessionPrefix+sess.ID, data, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := s.c.rdb.Get(ctx, sessionPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, session.ErrNoSession
		}
		return nil, err
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("解析会话失败: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.c.rdb.Del(ctx, sessionPrefix+id).Err()
}
