package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/lluckydog/Verilog-OJ/internal/model"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/pkg/cas"
	"github.com/lluckydog/Verilog-OJ/pkg/jwt"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

func init() {
	passwordCost = bcrypt.MinCost
}

// ── Mock UserRepository ──
// 与数据库行为一致：用户名、学号唯一性在同一把锁内检查并写入

type mockUserRepo struct {
	mu          sync.Mutex
	users       map[string]*model.User // key: user_id
	seq         int
	createCalls int

	// createErr 非 nil 时在唯一性检查前调用，返回非 nil 则 Create 直接失败
	createErr func(user *model.User) error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		if err := m.createErr(user); err != nil {
			return err
		}
	}
	if err := m.checkUniqueLocked(user, ""); err != nil {
		return err
	}

	m.seq++
	user.UserID = fmt.Sprintf("00000000-0000-0000-0000-%012d", m.seq)
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) checkUniqueLocked(user *model.User, selfID string) error {
	for id, u := range m.users {
		if id == selfID {
			continue
		}
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
		if u.StudentID != nil && user.StudentID != nil && *u.StudentID == *user.StudentID {
			return repository.ErrStudentIDTaken
		}
	}
	return nil
}

func (m *mockUserRepo) find(match func(u *model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.UserID == id })
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username })
}

func (m *mockUserRepo) GetByStudentID(_ context.Context, studentID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.StudentID != nil && *u.StudentID == studentID })
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	if err := m.checkUniqueLocked(user, user.UserID); err != nil {
		return err
	}
	user.UpdatedAt = time.Now()
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) List(_ context.Context, filters *repository.UserListFilters, offset, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []model.User
	for _, u := range m.users {
		if filters != nil && filters.Keyword != "" &&
			!strings.Contains(u.Username, filters.Keyword) && !strings.Contains(u.Nickname, filters.Keyword) {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })

	total := int64(len(all))
	if offset > len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// count 当前用户数
func (m *mockUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// ── Mock IdentityProvider ──

type mockIdentityProvider struct {
	mu       sync.Mutex
	resp     *cas.Response
	err      error
	calls    int
	lastCtx  context.Context
	loginURL string
}

func (m *mockIdentityProvider) LoginURL(serviceURL string) string {
	if m.loginURL != "" {
		return m.loginURL
	}
	return "https://cas.example.com/login?service=" + serviceURL
}

func (m *mockIdentityProvider) ValidateServiceTicket(ctx context.Context, _, _ string) (*cas.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastCtx = ctx
	return m.resp, m.err
}

// ── 测试装配 ──

func newTestSessions() (*session.Manager, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return session.NewManager(store, jwt.NewManager("test-secret-key-for-unit-testing-2026"), time.Hour), store
}

func newTestRepo() (*repository.Repository, *mockUserRepo) {
	users := newMockUserRepo()
	return &repository.Repository{User: users}, users
}

// seedUser 直接向 mock 仓库写入用户
func seedUser(t interface{ Fatalf(string, ...interface{}) }, users *mockUserRepo, username, password string, studentID *string, superuser bool) *model.User {
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &model.User{
		Username:     username,
		StudentID:    studentID,
		PasswordHash: hash,
		IsSuperuser:  superuser,
		IsActive:     true,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

var testLogger = zap.NewNop()
