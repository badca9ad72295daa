package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/lluckydog/Verilog-OJ/internal/dto"
	"github.com/lluckydog/Verilog-OJ/internal/repository"
	"github.com/lluckydog/Verilog-OJ/internal/service"
	"github.com/lluckydog/Verilog-OJ/pkg/response"
)

// UserHandler 用户模块 HTTP 处理器
type UserHandler struct {
	userSvc service.UserService
	cookie  *sessionCookie
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService, cookie *sessionCookie) *UserHandler {
	return &UserHandler{userSvc: userSvc, cookie: cookie}
}

// ListUsers 用户列表
// GET /api/v1/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	var req dto.UserListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	users, total, err := h.userSvc.List(c.Request.Context(), CallerFromContext(c), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.OKPage(c, users, total, req.GetPage(), req.GetPageSize())
}

// GetCurrentUser 当前用户信息
// GET /api/v1/users/me
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	user, err := h.userSvc.GetCurrent(c.Request.Context(), caller)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, user)
}

// GetUser 用户详情（本人或管理员可见完整信息）
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.userSvc.Get(c.Request.Context(), CallerFromContext(c), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, user)
}

// CreateUser 管理员创建用户
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	user, err := h.userSvc.Create(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.Created(c, user)
}

// UpdateUser 更新用户（本人或管理员）
// PUT/PATCH /api/v1/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	user, err := h.userSvc.Update(c.Request.Context(), caller, id, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.OK(c, user)
}

// DeleteUser 删除用户（本人或管理员）
// DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	if err := h.userSvc.Delete(c.Request.Context(), caller, id); err != nil {
		h.handleError(c, err)
		return
	}

	if caller.IsSelf(id) {
		h.cookie.Clear(c)
	}
	response.OK(c, nil)
}

// handleError 统一处理 Service 层错误
func (h *UserHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Unauthorized(c, 10002, "未登录")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 10003, "无权操作")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "用户不存在")
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrPasswordTooLong):
		response.BadRequest(c, 10001, err.Error())
	case errors.Is(err, repository.ErrUsernameTaken):
		response.Conflict(c, 11002, "用户名已被占用")
	case errors.Is(err, repository.ErrStudentIDTaken):
		response.Conflict(c, 11002, "学号已被绑定")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
