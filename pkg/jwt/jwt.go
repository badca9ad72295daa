package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token 已过期")
	ErrTokenInvalid = errors.New("token 无效")
)

const issuer = "verilog-oj"

// Claims 会话 Cookie 中携带的声明
// RegisteredClaims.ID 即服务端会话 ID
type Claims struct {
	UserID string `json:"user_id"`
	jwtv5.RegisteredClaims
}

// SessionID 返回声明对应的会话 ID
func (c *Claims) SessionID() string { return c.ID }

// Manager JWT 签发与校验
type Manager struct {
	secret []byte
}

// NewManager 创建 JWT 管理器
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// GenerateSessionToken 为服务端会话签发 Cookie 值
func (m *Manager) GenerateSessionToken(sessionID, userID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			IssuedAt:  jwtv5.NewNumericDate(issuedAt),
			ExpiresAt: jwtv5.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseToken 解析并验证 Token
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(issuer))

	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
