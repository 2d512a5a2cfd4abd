package public

import (
	"errors"
	"strings"
	"time"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/queue"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentWebhookRequest 支付网关回调请求
type PaymentWebhookRequest struct {
	CommissionID uint   `json:"commission_id" binding:"required"`
	CapturedAt   string `json:"captured_at"`
	GatewayRef   string `json:"gateway_ref"`
}

// PaymentWebhook 支付捕获回调入口
// 队列可用时异步确认，不可用时同步落账；重复回调一律幂等应答，
// 避免网关按失败重试造成状态机反复冲击。
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "回调参数错误", err)
		return
	}

	capturedAt := time.Now()
	if raw := strings.TrimSpace(req.CapturedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "captured_at 格式错误", err)
			return
		}
		capturedAt = parsed
	}

	if h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueCommissionPaymentCaptured(queue.CommissionPaymentCapturedPayload{
			CommissionID: req.CommissionID,
			CapturedAt:   capturedAt,
			GatewayRef:   req.GatewayRef,
		})
		if err != nil {
			requestLog(c).Errorw("payment_webhook_enqueue_failed",
				"commission_id", req.CommissionID,
				"error", err,
			)
			respondError(c, response.CodeInternal, "回调处理失败", err)
			return
		}
		response.SuccessWithMsg(c, "accepted", gin.H{"commission_id": req.CommissionID})
		return
	}

	if _, err := h.CommissionService.MarkPaymentCaptured(req.CommissionID, capturedAt, h.Config.Commission.GracePeriodDays); err != nil {
		switch {
		case errors.Is(err, service.ErrCommissionNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			// 重复回调：台账已前进，按成功应答
			response.SuccessWithMsg(c, "already_processed", gin.H{"commission_id": req.CommissionID})
		default:
			respondError(c, response.CodeInternal, "回调处理失败", err)
		}
		return
	}
	response.SuccessWithMsg(c, "captured", gin.H{"commission_id": req.CommissionID})
}
