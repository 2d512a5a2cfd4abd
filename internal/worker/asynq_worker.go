package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/provider"
	"github.com/enroll-next/internal/queue"
	"github.com/enroll-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCommissionPaymentCaptured, c.handleCommissionPaymentCaptured)
	mux.HandleFunc(queue.TaskCommissionEligibilitySweep, c.handleCommissionEligibilitySweep)
}

func (c *Consumer) handleCommissionPaymentCaptured(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_captured_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionPaymentCapturedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_captured_unmarshal_failed", "error", err)
		return err
	}
	if payload.CommissionID == 0 {
		logger.Debugw("worker_payment_captured_skip_invalid_payload", "commission_id", payload.CommissionID)
		return nil
	}
	capturedAt := payload.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}
	if c.CommissionService == nil {
		logger.Warnw("worker_payment_captured_skip_commission_service_nil", "commission_id", payload.CommissionID)
		return nil
	}
	_, err := c.CommissionService.MarkPaymentCaptured(payload.CommissionID, capturedAt, c.Config.Commission.GracePeriodDays)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCommissionNotFound):
			logger.Debugw("worker_payment_captured_skip_commission_not_found", "commission_id", payload.CommissionID)
			return nil
		case errors.Is(err, service.ErrInvalidTransition):
			// 网关重复回调或任务重投，台账已离开等待捕获态
			logger.Debugw("worker_payment_captured_skip_already_advanced", "commission_id", payload.CommissionID)
			return nil
		default:
			logger.Warnw("worker_payment_captured_failed", "commission_id", payload.CommissionID, "error", err)
			return err
		}
	}
	logger.Infow("worker_payment_captured",
		"commission_id", payload.CommissionID,
		"captured_at", capturedAt,
		"gateway_ref", payload.GatewayRef,
	)
	return nil
}

func (c *Consumer) handleCommissionEligibilitySweep(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_eligibility_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionEligibilitySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_eligibility_sweep_unmarshal_failed", "error", err)
		return err
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	return c.sweepEligibility(asOf)
}

// sweepEligibility 巡检已过等待期的待发放佣金并记录积压情况。
// 发放本身要走管理员确认，巡检只负责把到期台账暴露出来。
func (c *Consumer) sweepEligibility(asOf time.Time) error {
	if c == nil || c.CommissionService == nil {
		logger.Debugw("worker_eligibility_sweep_skip_nil_service")
		return nil
	}
	due, err := c.CommissionService.ListAwaitingPayout(asOf, 0)
	if err != nil {
		logger.Warnw("worker_eligibility_sweep_failed", "as_of", asOf, "error", err)
		return err
	}
	if len(due) == 0 {
		logger.Debugw("worker_eligibility_sweep_empty", "as_of", asOf)
		return nil
	}
	ids := make([]uint, 0, len(due))
	for _, item := range due {
		ids = append(ids, item.ID)
	}
	logger.Infow("worker_eligibility_sweep_backlog",
		"as_of", asOf,
		"due_count", len(due),
		"commission_ids", ids,
	)
	return nil
}
