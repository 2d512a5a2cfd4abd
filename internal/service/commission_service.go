package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 佣金台账服务
// 状态机 pending_capture → pending_payout → paid，不可跳步，不可回退
// 纠错通过备注加冲正记录完成，审计链路不被改写
type CommissionService struct {
	cfg            *config.Config
	commissionRepo repository.CommissionRepository
	agentRepo      repository.AgentRepository
	memberRepo     repository.MemberRepository
	calculator     *CommissionCalculator
	policy         *AccessPolicy
}

// NewCommissionService 创建佣金台账服务
func NewCommissionService(
	cfg *config.Config,
	commissionRepo repository.CommissionRepository,
	agentRepo repository.AgentRepository,
	memberRepo repository.MemberRepository,
	calculator *CommissionCalculator,
	policy *AccessPolicy,
) *CommissionService {
	return &CommissionService{
		cfg:            cfg,
		commissionRepo: commissionRepo,
		agentRepo:      agentRepo,
		memberRepo:     memberRepo,
		calculator:     calculator,
		policy:         policy,
	}
}

// CreateCommissionInput 入单参数
// AgentID / MemberID 必须是已解析好的主键，台账内部不做任何标识符解析
type CreateCommissionInput struct {
	AgentID        uint
	MemberID       uint
	SubscriptionID *uint
	PlanLabel      string
	CoverageType   string
	HasRxAddOn     bool
	TotalPlanCost  decimal.Decimal
	Notes          string
}

// CreateCommission 创建佣金记录（状态 pending_capture）
// 员工或会员不存在时直接失败，绝不落一条挂空引用的记录
func (s *CommissionService) CreateCommission(input CreateCommissionInput) (*models.Commission, error) {
	var created *models.Commission
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		commission, err := s.createCommissionTx(tx, input)
		if err != nil {
			return err
		}
		created = commission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// createCommissionTx 在既有事务内创建佣金记录，入单编排复用
func (s *CommissionService) createCommissionTx(tx *gorm.DB, input CreateCommissionInput) (*models.Commission, error) {
	agentRepo := s.agentRepo.WithTx(tx)
	memberRepo := s.memberRepo.WithTx(tx)
	commissionRepo := s.commissionRepo.WithTx(tx)

	exists, err := agentRepo.Exists(input.AgentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, input.AgentID)
	}

	exists, err = memberRepo.Exists(input.MemberID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: member_id=%d", ErrMemberNotFound, input.MemberID)
	}

	if !s.cfg.Commission.AllowDuplicateCommissions {
		count, err := commissionRepo.CountByAgentAndMember(input.AgentID, input.MemberID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrDuplicateCommission
		}
	}

	tier, amount, err := s.calculator.Calculate(input.PlanLabel, input.CoverageType, input.HasRxAddOn)
	notes := strings.TrimSpace(input.Notes)
	if err != nil {
		if !isUnrecognizedTier(err) {
			return nil, err
		}
		if s.cfg.Commission.UnrecognizedTierPolicy != constants.UnrecognizedTierPolicyZero {
			return nil, err
		}
		// 零佣金兜底：落一条金额为 0 的记录并在备注里留痕
		tier = constants.PlanTierUnknown
		amount = decimal.Zero
		flag := fmt.Sprintf("未识别套餐档位 %q，按零佣金入账", input.PlanLabel)
		if notes == "" {
			notes = flag
		} else {
			notes = notes + "\n" + flag
		}
	}

	if input.TotalPlanCost.IsNegative() || input.TotalPlanCost.LessThan(amount) {
		return nil, fmt.Errorf("%w: 套餐总费用 %s 低于佣金 %s", ErrRateTableInvalid,
			input.TotalPlanCost.StringFixed(2), amount.StringFixed(2))
	}

	commission := &models.Commission{
		AgentID:          input.AgentID,
		MemberID:         input.MemberID,
		SubscriptionID:   input.SubscriptionID,
		PlanTier:         tier,
		CoverageType:     input.CoverageType,
		CommissionAmount: models.NewMoneyFromDecimal(amount),
		TotalPlanCost:    models.NewMoneyFromDecimal(input.TotalPlanCost),
		Status:           constants.CommissionStatusPendingCapture,
		Notes:            notes,
	}
	if err := commissionRepo.Create(commission); err != nil {
		return nil, err
	}

	logger.Infow("commission_created",
		"commission_id", commission.ID,
		"agent_id", commission.AgentID,
		"member_id", commission.MemberID,
		"plan_tier", commission.PlanTier,
		"amount", commission.CommissionAmount.String(),
	)
	return commission, nil
}

func isUnrecognizedTier(err error) bool {
	return errors.Is(err, ErrUnrecognizedPlanTier)
}

// MarkPaymentCaptured 支付捕获回执：pending_capture → pending_payout
// 设置捕获时间并按传入等待期推算可发放时间；由网关回调或队列驱动，不校验访问者
func (s *CommissionService) MarkPaymentCaptured(commissionID uint, capturedAt time.Time, gracePeriodDays int) (*models.Commission, error) {
	if gracePeriodDays < 0 {
		gracePeriodDays = 0
	}
	var updated *models.Commission
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.commissionRepo.WithTx(tx)
		commission, err := repo.GetByIDForUpdate(commissionID)
		if err != nil {
			return err
		}
		if commission == nil {
			return fmt.Errorf("%w: commission_id=%d", ErrCommissionNotFound, commissionID)
		}
		if commission.Status != constants.CommissionStatusPendingCapture {
			return fmt.Errorf("%w: 当前状态 %s 不允许捕获", ErrInvalidTransition, commission.Status)
		}

		eligibleAt := capturedAt.AddDate(0, 0, gracePeriodDays)
		commission.Status = constants.CommissionStatusPendingPayout
		commission.PaymentCapturedDate = &capturedAt
		commission.PayoutEligibleDate = &eligibleAt
		if err := repo.Update(commission); err != nil {
			return err
		}
		updated = commission
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("commission_payment_captured",
		"commission_id", updated.ID,
		"captured_at", capturedAt,
		"payout_eligible_date", updated.PayoutEligibleDate,
	)
	return updated, nil
}

// MarkPaid 标记发放：pending_payout → paid，仅管理角色
// 发放日期按传入值记录，允许晚于或早于可发放时间（管理员可补记）
func (s *CommissionService) MarkPaid(ctx context.Context, viewer Viewer, commissionID uint, paidAt time.Time) (*models.Commission, error) {
	if !s.policy.CanEditCommission(viewer) {
		return nil, ErrPermissionDenied
	}

	var updated *models.Commission
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.commissionRepo.WithTx(tx)
		commission, err := repo.GetByIDForUpdate(commissionID)
		if err != nil {
			return err
		}
		if commission == nil {
			return fmt.Errorf("%w: commission_id=%d", ErrCommissionNotFound, commissionID)
		}
		if commission.Status != constants.CommissionStatusPendingPayout {
			return fmt.Errorf("%w: 当前状态 %s 不允许发放", ErrInvalidTransition, commission.Status)
		}

		commission.Status = constants.CommissionStatusPaid
		commission.PayoutDate = &paidAt
		if err := repo.Update(commission); err != nil {
			return err
		}
		updated = commission
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("commission_marked_paid",
		"commission_id", updated.ID,
		"operator_id", viewer.ID,
		"payout_date", paidAt,
	)
	return updated, nil
}

// BatchPayoutFailure 批量发放中的单条失败明细
type BatchPayoutFailure struct {
	CommissionID uint   `json:"commission_id"`
	Reason       string `json:"reason"`
}

// BatchPayoutResult 批量发放结果（逐条结算，部分成功不回滚整批）
type BatchPayoutResult struct {
	Succeeded []uint               `json:"succeeded"`
	Failed    []BatchPayoutFailure `json:"failed"`
}

// BatchMarkPaid 批量标记发放
// 单条失败（如已是 paid）不影响同批其他记录
func (s *CommissionService) BatchMarkPaid(ctx context.Context, viewer Viewer, commissionIDs []uint, paidAt time.Time) (*BatchPayoutResult, error) {
	if !s.policy.CanEditCommission(viewer) {
		return nil, ErrPermissionDenied
	}

	result := &BatchPayoutResult{
		Succeeded: make([]uint, 0, len(commissionIDs)),
		Failed:    make([]BatchPayoutFailure, 0),
	}
	for _, id := range commissionIDs {
		if _, err := s.MarkPaid(ctx, viewer, id, paidAt); err != nil {
			result.Failed = append(result.Failed, BatchPayoutFailure{
				CommissionID: id,
				Reason:       err.Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}

	logger.Infow("commission_batch_mark_paid",
		"operator_id", viewer.ID,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}

// AnnotateCommission 追加备注，不改变状态
// 管理角色或记录归属员工本人可备注
func (s *CommissionService) AnnotateCommission(ctx context.Context, viewer Viewer, commissionID uint, note string) (*models.Commission, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteEmpty
	}

	var updated *models.Commission
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.commissionRepo.WithTx(tx)
		commission, err := repo.GetByIDForUpdate(commissionID)
		if err != nil {
			return err
		}
		if commission == nil {
			return fmt.Errorf("%w: commission_id=%d", ErrCommissionNotFound, commissionID)
		}
		if !s.policy.CanEditCommission(viewer) && commission.AgentID != viewer.ID {
			return ErrPermissionDenied
		}

		line := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04:05"), note)
		if commission.Notes == "" {
			commission.Notes = line
		} else {
			commission.Notes = commission.Notes + "\n" + line
		}
		if err := repo.Update(commission); err != nil {
			return err
		}
		updated = commission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetCommission 查询单条佣金记录
// 无权限时返回 ErrPermissionDenied，与"记录不存在"严格区分
func (s *CommissionService) GetCommission(ctx context.Context, viewer Viewer, commissionID uint) (*models.Commission, error) {
	commission, err := s.commissionRepo.GetByID(commissionID)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, fmt.Errorf("%w: commission_id=%d", ErrCommissionNotFound, commissionID)
	}
	ok, err := s.policy.CanViewRecordsOf(ctx, viewer, commission.AgentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return commission, nil
}

// ListCommissions 查询佣金列表，按访问者可见范围收口
func (s *CommissionService) ListCommissions(ctx context.Context, viewer Viewer, filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	visible, all, err := s.policy.VisibleAgentIDs(ctx, viewer)
	if err != nil {
		return nil, 0, err
	}
	if !all {
		if filter.AgentID != 0 {
			allowed := false
			for _, id := range visible {
				if id == filter.AgentID {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, 0, ErrPermissionDenied
			}
		} else {
			filter.AgentAnyOf = visible
		}
	}
	return s.commissionRepo.List(filter)
}

// PeriodTotals 单周期汇总，恒有 earned = paid + pending
type PeriodTotals struct {
	Earned  models.Money `json:"earned"`
	Paid    models.Money `json:"paid"`
	Pending models.Money `json:"pending"`
}

// CommissionTotals 员工佣金汇总（月初至今 / 年初至今 / 全量）
type CommissionTotals struct {
	MTD      PeriodTotals `json:"mtd"`
	YTD      PeriodTotals `json:"ytd"`
	Lifetime PeriodTotals `json:"lifetime"`
}

// GetCommissionTotals 汇总员工佣金
// 周期窗口由 asOf 圈定（月初/年初至 asOf，创建时间维度），保证各周期内 earned = paid + pending
func (s *CommissionService) GetCommissionTotals(ctx context.Context, viewer Viewer, agentID uint, asOf time.Time) (*CommissionTotals, error) {
	ok, err := s.policy.CanViewRecordsOf(ctx, viewer, agentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	if asOf.IsZero() {
		asOf = time.Now()
	}
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, asOf.Location())
	yearStart := time.Date(asOf.Year(), 1, 1, 0, 0, 0, 0, asOf.Location())

	totals := &CommissionTotals{}
	periods := []struct {
		from *time.Time
		dest *PeriodTotals
	}{
		{from: &monthStart, dest: &totals.MTD},
		{from: &yearStart, dest: &totals.YTD},
		{from: nil, dest: &totals.Lifetime},
	}
	pendingStatuses := []string{
		constants.CommissionStatusPendingCapture,
		constants.CommissionStatusPendingPayout,
	}
	for _, period := range periods {
		earned, err := s.commissionRepo.SumAmount(agentID, nil, period.from, &asOf)
		if err != nil {
			return nil, err
		}
		paid, err := s.commissionRepo.SumAmount(agentID, []string{constants.CommissionStatusPaid}, period.from, &asOf)
		if err != nil {
			return nil, err
		}
		pending, err := s.commissionRepo.SumAmount(agentID, pendingStatuses, period.from, &asOf)
		if err != nil {
			return nil, err
		}
		period.dest.Earned = models.NewMoneyFromDecimal(earned)
		period.dest.Paid = models.NewMoneyFromDecimal(paid)
		period.dest.Pending = models.NewMoneyFromDecimal(pending)
	}
	return totals, nil
}

// ListAwaitingPayout 查询已过可发放时间但尚未发放的佣金（巡检与催办用）
func (s *CommissionService) ListAwaitingPayout(asOf time.Time, limit int) ([]models.Commission, error) {
	return s.commissionRepo.ListPayoutEligible(asOf, limit)
}
