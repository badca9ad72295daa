package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lluckydog/Verilog-OJ/config"
	"github.com/lluckydog/Verilog-OJ/internal/model"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/pkg/cas"
	"github.com/lluckydog/Verilog-OJ/pkg/session"
)

var testCASConfig = config.CASConfig{
	BaseURL:              "https://cas.example.com",
	ServiceURL:           "http://oj.example.com/api/v1/auth/cas-login",
	Timeout:              5 * time.Second,
	MaxProvisionAttempts: 8,
	UsernameAttribute:    "gid",
}

func newTestCASService(idp *mockIdentityProvider) (CASService, *mockUserRepo, *session.MemoryStore) {
	repo, users := newTestRepo()
	sessions, store := newTestSessions()
	cfg := testCASConfig
	return NewCASService(&cfg, repo, sessions, idp, testLogger), users, store
}

func successResponse(studentID, gid string) *cas.Response {
	resp := &cas.Response{Success: true, User: studentID, Attributes: map[string][]string{}}
	if gid != "" {
		resp.Attributes["gid"] = []string{gid}
	}
	return resp
}

func TestCASLogin_NoTicketRedirects(t *testing.T) {
	idp := &mockIdentityProvider{}
	svc, users, store := newTestCASService(idp)

	res, err := svc.Login(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.RedirectURL, "https://cas.example.com/login?service=") || res.Login != nil {
		t.Errorf("期望跳转 CAS 登录页，实际 %+v", res)
	}
	if idp.calls != 0 || users.count() != 0 || store.Len() != 0 {
		t.Error("无 ticket 时不应校验、创建账号或建立会话")
	}
}

func TestCASLogin_RejectedTicketRedirects(t *testing.T) {
	idp := &mockIdentityProvider{resp: &cas.Response{Success: false, FailureCode: "INVALID_TICKET"}}
	svc, users, store := newTestCASService(idp)

	res, err := svc.Login(context.Background(), "ST-expired")
	if err != nil {
		t.Fatal(err)
	}
	if res.RedirectURL == "" {
		t.Error("ticket 被拒绝时应重新跳转登录")
	}
	if users.count() != 0 || store.Len() != 0 {
		t.Error("ticket 被拒绝时不应产生任何写入")
	}
}

func TestCASLogin_ProviderUnavailable(t *testing.T) {
	idp := &mockIdentityProvider{err: cas.ErrUnavailable}
	svc, users, store := newTestCASService(idp)

	_, err := svc.Login(context.Background(), "ST-1")
	if !errors.Is(err, ErrIdentityProviderUnavailable) {
		t.Fatalf("期望 ErrIdentityProviderUnavailable，实际 %v", err)
	}
	if users.count() != 0 || store.Len() != 0 {
		t.Error("认证服务故障时不应产生任何写入")
	}
}

func TestCASLogin_ValidationHasDeadline(t *testing.T) {
	idp := &mockIdentityProvider{resp: &cas.Response{Success: false}}
	svc, _, _ := newTestCASService(idp)

	_, _ = svc.Login(context.Background(), "ST-1")
	if _, ok := idp.lastCtx.Deadline(); !ok {
		t.Error("ticket 校验应带超时")
	}
}

func TestCASLogin_FirstLoginProvisions(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB20000001", "alice")}
	svc, users, store := newTestCASService(idp)
	ctx := context.Background()

	res, err := svc.Login(ctx, "ST-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Login == nil || res.Login.Token == "" {
		t.Fatalf("应建立会话: %+v", res)
	}
	if res.Login.User.Username != "alice" || res.Login.User.StudentID != "PB20000001" {
		t.Errorf("账号信息不符: %+v", res.Login.User)
	}
	if store.Len() != 1 {
		t.Errorf("期望 1 个会话，实际 %d", store.Len())
	}

	u, err := users.GetByStudentID(ctx, "PB20000001")
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsActive || u.IsSuperuser {
		t.Errorf("自动创建的账号应启用且非管理员: %+v", u)
	}
	if !checkPassword(u.PasswordHash, "PB20000001") {
		t.Error("初始密码应为学号")
	}
}

func TestCASLogin_ExistingUserNoMutation(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB1", "someone-else")}
	svc, users, _ := newTestCASService(idp)
	existing := seedUser(t, users, "bob", "pw1234", strPtr("PB1"), false)

	res, err := svc.Login(context.Background(), "ST-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Login.User.ID != existing.UserID || res.Login.User.Username != "bob" {
		t.Errorf("应登录已有账号: %+v", res.Login.User)
	}
	if users.count() != 1 || users.createCalls != 1 {
		t.Errorf("不应新建账号: count=%d creates=%d", users.count(), users.createCalls)
	}
}

func TestCASLogin_UsernameCollisionFallsBackToRandom(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB2", "alice")}
	svc, users, _ := newTestCASService(idp)
	seedUser(t, users, "alice", "pw1234", strPtr("PB1"), false)

	res, err := svc.Login(context.Background(), "ST-1")
	if err != nil {
		t.Fatal(err)
	}
	got := res.Login.User
	if got.Username == "alice" || len(got.Username) != randomUsernameLen {
		t.Errorf("应使用随机用户名，实际 %q", got.Username)
	}
	if got.StudentID != "PB2" {
		t.Errorf("学号应为 PB2，实际 %q", got.StudentID)
	}
	if users.count() != 2 {
		t.Errorf("期望 2 个账号，实际 %d", users.count())
	}
}

func TestCASLogin_MissingAttributeUsesRandom(t *testing.T) {
	for _, gid := range []string{"", "not valid!"} {
		idp := &mockIdentityProvider{resp: successResponse("PB3", gid)}
		svc, users, _ := newTestCASService(idp)

		res, err := svc.Login(context.Background(), "ST-1")
		if err != nil {
			t.Fatalf("gid=%q: %v", gid, err)
		}
		if len(res.Login.User.Username) != randomUsernameLen || ValidateUsername(res.Login.User.Username) != nil {
			t.Errorf("gid=%q: 应使用合法随机用户名，实际 %q", gid, res.Login.User.Username)
		}
		if users.createCalls != 1 {
			t.Errorf("gid=%q: 期望一次创建，实际 %d", gid, users.createCalls)
		}
	}
}

func TestCASLogin_BoundedAttempts(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB4", "alice")}
	svc, users, store := newTestCASService(idp)
	users.createErr = func(*model.User) error { return repository.ErrUsernameTaken }

	_, err := svc.Login(context.Background(), "ST-1")
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("期望 ErrProvisioningFailed，实际 %v", err)
	}
	if users.createCalls != testCASConfig.MaxProvisionAttempts {
		t.Errorf("期望重试 %d 次，实际 %d", testCASConfig.MaxProvisionAttempts, users.createCalls)
	}
	if store.Len() != 0 {
		t.Error("失败时不应建立会话")
	}
}

func TestCASLogin_NonCollisionErrorFailsFast(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB5", "alice")}
	svc, users, _ := newTestCASService(idp)
	users.createErr = func(*model.User) error { return errors.New("connection reset") }

	_, err := svc.Login(context.Background(), "ST-1")
	if !errors.Is(err, ErrProvisioningFailed) {
		t.Fatalf("期望 ErrProvisioningFailed，实际 %v", err)
	}
	if users.createCalls != 1 {
		t.Errorf("非冲突错误不应重试，实际创建 %d 次", users.createCalls)
	}
}

func TestCASLogin_ConcurrentFirstLogin(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB6", "alice")}
	svc, users, _ := newTestCASService(idp)

	const n = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]int)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Login(context.Background(), "ST-1")
			if err != nil {
				t.Errorf("并发登录失败: %v", err)
				return
			}
			mu.Lock()
			ids[res.Login.User.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if users.count() != 1 {
		t.Errorf("同一学号应只有一个账号，实际 %d", users.count())
	}
	if len(ids) != 1 {
		t.Errorf("所有登录应落到同一账号，实际 %v", ids)
	}
}

func TestCASLogin_DisabledAccount(t *testing.T) {
	idp := &mockIdentityProvider{resp: successResponse("PB001", "carol")}
	svc, users, store := newTestCASService(idp)
	u := seedUser(t, users, "carol", "pw1234", strPtr("PB001"), false)
	u.IsActive = false
	if err := users.Update(context.Background(), u); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Login(context.Background(), "ST-1")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("期望 ErrAccountDisabled，实际 res=%+v err=%v", res, err)
	}
	if store.Len() != 0 {
		t.Error("停用账号不应建立会话")
	}
	if users.count() != 1 || users.createCalls != 1 {
		t.Error("停用账号不应触发新建账号")
	}
	stored, _ := users.GetByID(context.Background(), u.UserID)
	if stored.LastLoginAt != nil {
		t.Error("停用账号不应记录登录时间")
	}
}
