package shared

import (
	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetContextUintWithKeys 从上下文读取 uint 值并统一处理错误响应。
func GetContextUintWithKeys(c *gin.Context, key, invalidMsg, typeInvalidMsg string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "未授权", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, invalidMsg, nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, invalidMsg, nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, typeInvalidMsg, nil)
		return 0, false
	}
}

// CurrentAgentID 读取认证中间件写入的员工 ID。
func CurrentAgentID(c *gin.Context) (uint, bool) {
	return GetContextUintWithKeys(c, "agent_id", "员工 ID 非法", "员工 ID 类型错误")
}

// CurrentViewer 组装当前请求的访问者身份。
func CurrentViewer(c *gin.Context) (service.Viewer, bool) {
	agentID, ok := CurrentAgentID(c)
	if !ok {
		return service.Viewer{}, false
	}
	role := ""
	if value, exists := c.Get("agent_role"); exists {
		if r, ok := value.(string); ok {
			role = r
		}
	}
	if role == "" {
		RespondError(c, response.CodeUnauthorized, "未授权", nil)
		return service.Viewer{}, false
	}
	return service.Viewer{ID: agentID, Role: role}, true
}
