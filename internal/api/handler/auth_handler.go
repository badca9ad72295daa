package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lluckydog/Verilog-OJ/internal/dto"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/internal/service"
	"github.com/lluckydog/Verilog-OJ/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	casSvc  service.CASService
	cookie  *sessionCookie
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, casSvc service.CASService, cookie *sessionCookie) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, casSvc: casSvc, cookie: cookie}
}

// CASLogin 统一身份认证登录
// GET /api/v1/auth/cas-login?ticket=...
func (h *AuthHandler) CASLogin(c *gin.Context) {
	result, err := h.casSvc.Login(c.Request.Context(), c.Query("ticket"))
	if err != nil {
		if errors.Is(err, service.ErrIdentityProviderUnavailable) {
			response.Text(c, http.StatusServiceUnavailable, "统一身份认证服务暂不可用，请稍后再试")
			return
		}
		if errors.Is(err, service.ErrAccountDisabled) {
			response.Text(c, http.StatusForbidden, "账号已停用")
			return
		}
		_ = c.Error(err)
		response.Text(c, http.StatusInternalServerError, "登录失败，请稍后再试")
		return
	}

	if result.RedirectURL != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}

	h.cookie.Set(c, result.Login.Token)
	response.Text(c, http.StatusOK, "OK")
}

// Signup 本地注册
// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Text(c, http.StatusBadRequest, "参数校验失败")
		return
	}

	if _, err := h.authSvc.Signup(c.Request.Context(), &req); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrPasswordTooLong):
			response.Text(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrUsernameTaken):
			response.Text(c, http.StatusConflict, "用户名已被注册")
		case errors.Is(err, repository.ErrStudentIDTaken):
			response.Text(c, http.StatusConflict, "学号已被注册")
		default:
			_ = c.Error(err)
			response.Text(c, http.StatusInternalServerError, "注册失败，请稍后再试")
		}
		return
	}

	response.Text(c, http.StatusCreated, "注册成功")
}

// Login 用户名密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.BadRequest(c, 11001, "用户名或密码错误")
			return
		}
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	h.cookie.Set(c, result.Token)
	response.OK(c, result.User)
}

// Logout 登出
// GET /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	ok, err := h.authSvc.Logout(c.Request.Context(), CallerFromContext(c))
	if err != nil {
		_ = c.Error(err)
		response.Text(c, http.StatusInternalServerError, "登出失败，请稍后再试")
		return
	}
	if !ok {
		response.Text(c, http.StatusOK, "not login yet")
		return
	}

	h.cookie.Clear(c)
	response.Text(c, http.StatusOK, "logout succeed")
}
