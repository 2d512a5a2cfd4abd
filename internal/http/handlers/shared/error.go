package shared

import (
	"errors"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondServiceError 将业务层错误映射为统一响应码。
// 权限拒绝与记录不存在是两种不同的回答，这里不做降级合并。
func RespondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrAgentNotFound),
		errors.Is(err, service.ErrMemberNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrCommissionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrDuplicateCommission):
		response.Error(c, response.CodeConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAccountDisabled):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrUnrecognizedPlanTier),
		errors.Is(err, service.ErrCoverageInvalid),
		errors.Is(err, service.ErrPlanInactive),
		errors.Is(err, service.ErrMemberInvalid),
		errors.Is(err, service.ErrNoteEmpty),
		errors.Is(err, service.ErrRateTableInvalid),
		errors.Is(err, service.ErrCycleDetected),
		errors.Is(err, service.ErrUplineInvalid),
		errors.Is(err, service.ErrRoleInvalid),
		errors.Is(err, service.ErrWeakPassword):
		response.BadRequest(c, err.Error())
	default:
		RespondError(c, response.CodeInternal, "服务内部错误", err)
	}
}
