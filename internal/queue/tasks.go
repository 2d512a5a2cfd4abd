package queue

import (
	"encoding/json"
	"time"

	"github.com/enroll-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionPaymentCaptured 支付捕获确认任务
	TaskCommissionPaymentCaptured = constants.TaskCommissionPaymentCaptured
	// TaskCommissionEligibilitySweep 发放资格巡检任务
	TaskCommissionEligibilitySweep = constants.TaskCommissionEligibilitySweep
)

// CommissionPaymentCapturedPayload 支付捕获确认任务载荷
type CommissionPaymentCapturedPayload struct {
	CommissionID uint      `json:"commission_id"`
	CapturedAt   time.Time `json:"captured_at"`
	GatewayRef   string    `json:"gateway_ref,omitempty"`
}

// CommissionEligibilitySweepPayload 发放资格巡检任务载荷
type CommissionEligibilitySweepPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewCommissionPaymentCapturedTask 创建支付捕获确认任务
func NewCommissionPaymentCapturedTask(payload CommissionPaymentCapturedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionPaymentCaptured, body), nil
}

// NewCommissionEligibilitySweepTask 创建发放资格巡检任务
func NewCommissionEligibilitySweepTask(payload CommissionEligibilitySweepPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionEligibilitySweep, body), nil
}
