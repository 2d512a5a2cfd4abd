package service

import (
	"context"
	"fmt"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"
)

// MemberService 会员查询与状态维护服务
type MemberService struct {
	memberRepo       repository.MemberRepository
	subscriptionRepo repository.SubscriptionRepository
	policy           *AccessPolicy
}

// NewMemberService 创建会员服务
func NewMemberService(memberRepo repository.MemberRepository, subscriptionRepo repository.SubscriptionRepository, policy *AccessPolicy) *MemberService {
	return &MemberService{
		memberRepo:       memberRepo,
		subscriptionRepo: subscriptionRepo,
		policy:           policy,
	}
}

func memberOwnerID(member *models.Member) uint {
	if member == nil || member.EnrolledByAgentID == nil {
		return 0
	}
	return *member.EnrolledByAgentID
}

// GetMember 查询会员详情
// 归属员工不在可见范围时返回 ErrPermissionDenied，不伪装成"不存在"
func (s *MemberService) GetMember(ctx context.Context, viewer Viewer, memberID uint) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member_id=%d", ErrMemberNotFound, memberID)
	}
	ok, err := s.policy.CanViewRecordsOf(ctx, viewer, memberOwnerID(member))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return member, nil
}

// ListMembers 查询会员列表，按访问者可见范围收口
func (s *MemberService) ListMembers(ctx context.Context, viewer Viewer, filter repository.MemberListFilter) ([]models.Member, int64, error) {
	visible, all, err := s.policy.VisibleAgentIDs(ctx, viewer)
	if err != nil {
		return nil, 0, err
	}
	if !all {
		if filter.EnrolledByAgentID != 0 {
			allowed := false
			for _, id := range visible {
				if id == filter.EnrolledByAgentID {
					allowed = true
					break
				}
			}
			if !allowed {
				return nil, 0, ErrPermissionDenied
			}
		} else {
			filter.EnrolledByAnyOf = visible
		}
	}
	return s.memberRepo.List(filter)
}

// UpdateMemberStatus 更新会员状态，仅管理角色
// 取消时同步关闭会员名下的活跃订阅
func (s *MemberService) UpdateMemberStatus(ctx context.Context, viewer Viewer, memberID uint, status string) (*models.Member, error) {
	if !s.policy.CanEditCommission(viewer) {
		return nil, ErrPermissionDenied
	}
	switch status {
	case constants.MemberStatusPending, constants.MemberStatusActive,
		constants.MemberStatusCancelled, constants.MemberStatusSuspended:
	default:
		return nil, fmt.Errorf("%w: 状态 %q 不合法", ErrMemberInvalid, status)
	}

	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, fmt.Errorf("%w: member_id=%d", ErrMemberNotFound, memberID)
	}

	if err := s.memberRepo.UpdateStatus(memberID, status); err != nil {
		return nil, err
	}
	member.Status = status

	if status == constants.MemberStatusCancelled {
		subscriptions, err := s.subscriptionRepo.ListByMember(memberID)
		if err != nil {
			return nil, err
		}
		for _, subscription := range subscriptions {
			if subscription.Status != constants.SubscriptionStatusActive {
				continue
			}
			if err := s.subscriptionRepo.UpdateStatus(subscription.ID, constants.SubscriptionStatusCancelled); err != nil {
				return nil, err
			}
		}
	}

	logger.Infow("member_status_changed",
		"member_id", memberID,
		"status", status,
		"operator_id", viewer.ID,
	)
	return member, nil
}
