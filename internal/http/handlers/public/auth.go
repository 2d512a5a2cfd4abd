package public

import (
	"errors"
	"time"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string                 `json:"token"`
	Agent     map[string]interface{} `json:"agent"`
	ExpiresAt string                 `json:"expires_at"`
}

// Login 员工登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	agent, token, expiresAt, err := h.AuthService.Login(req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, response.CodeUnauthorized, "邮箱或密码错误", nil)
		case errors.Is(err, service.ErrAccountDisabled):
			respondError(c, response.CodeUnauthorized, "账号已停用", nil)
		default:
			respondError(c, response.CodeInternal, "登录失败", err)
		}
		return
	}

	response.Success(c, LoginResponse{
		Token: token,
		Agent: map[string]interface{}{
			"id":           agent.ID,
			"email":        agent.Email,
			"name":         agent.Name,
			"role":         agent.Role,
			"agent_number": agent.AgentNumber,
		},
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// ChangeMyPassword 修改当前员工密码
func (h *Handler) ChangeMyPassword(c *gin.Context) {
	agentID, ok := getAgentID(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.AuthService.ChangePassword(agentID, req.OldPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithMsg(c, "密码已更新，请重新登录", nil)
}
