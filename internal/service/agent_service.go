package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/enroll-next/internal/cache"
	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AgentService 员工档案与层级维护服务
type AgentService struct {
	cfg       *config.Config
	agentRepo repository.AgentRepository
	hierarchy *HierarchyService
	policy    *AccessPolicy
}

// NewAgentService 创建员工服务
func NewAgentService(cfg *config.Config, agentRepo repository.AgentRepository, hierarchy *HierarchyService, policy *AccessPolicy) *AgentService {
	return &AgentService{
		cfg:       cfg,
		agentRepo: agentRepo,
		hierarchy: hierarchy,
		policy:    policy,
	}
}

// CreateAgentInput 创建员工参数
type CreateAgentInput struct {
	Email                  string
	Password               string
	Name                   string
	Role                   string
	UplineAgentID          *uint
	CanReceiveOverrides    bool
	OverrideCommissionRate decimal.Decimal
}

func validRole(role string) bool {
	switch role {
	case constants.AgentRoleSuperAdmin, constants.AgentRoleAdmin, constants.AgentRoleAgent:
		return true
	}
	return false
}

// CreateAgent 创建员工
// admin 可创建 admin / agent，super_admin 账号只能由 super_admin 创建
func (s *AgentService) CreateAgent(ctx context.Context, viewer Viewer, input CreateAgentInput) (*models.Agent, error) {
	if !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = constants.AgentRoleAgent
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrRoleInvalid, input.Role)
	}
	if role == constants.AgentRoleSuperAdmin && !viewer.IsSuperAdmin() {
		return nil, ErrPermissionDenied
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: 邮箱为空", ErrEmailTaken)
	}
	existing, err := s.agentRepo.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	if err := validatePassword(s.cfg.Security.PasswordPolicy, input.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	hierarchyLevel := 0
	if input.UplineAgentID != nil && *input.UplineAgentID != 0 {
		upline, err := s.agentRepo.GetByID(*input.UplineAgentID)
		if err != nil {
			return nil, err
		}
		if upline == nil {
			return nil, fmt.Errorf("%w: 上线 agent_id=%d 不存在", ErrUplineInvalid, *input.UplineAgentID)
		}
		hierarchyLevel = upline.HierarchyLevel + 1
		if hierarchyLevel > constants.HierarchyMaxDepth {
			return nil, fmt.Errorf("%w: 层级深度超过上限 %d", ErrUplineInvalid, constants.HierarchyMaxDepth)
		}
	} else {
		input.UplineAgentID = nil
	}

	if input.OverrideCommissionRate.IsNegative() {
		return nil, fmt.Errorf("%w: 抽佣比例不能为负", ErrUplineInvalid)
	}

	agentNumber, err := s.nextAgentNumber()
	if err != nil {
		return nil, err
	}

	agent := &models.Agent{
		Email:                  email,
		PasswordHash:           string(hash),
		Name:                   strings.TrimSpace(input.Name),
		Role:                   role,
		AgentNumber:            agentNumber,
		UplineAgentID:          input.UplineAgentID,
		HierarchyLevel:         hierarchyLevel,
		CanReceiveOverrides:    input.CanReceiveOverrides,
		OverrideCommissionRate: models.NewMoneyFromDecimal(input.OverrideCommissionRate),
		Status:                 constants.AgentStatusActive,
	}
	if err := s.agentRepo.Create(agent); err != nil {
		return nil, err
	}

	if agent.UplineAgentID != nil {
		s.hierarchy.InvalidateDownlineCache(ctx, *agent.UplineAgentID)
	}

	logger.Infow("agent_created",
		"agent_id", agent.ID,
		"agent_number", agent.AgentNumber,
		"role", agent.Role,
		"operator_id", viewer.ID,
	)
	return agent, nil
}

// nextAgentNumber 生成下一个员工编号（A-000001 起，碰撞时顺延重试）
func (s *AgentService) nextAgentNumber() (string, error) {
	agents, err := s.agentRepo.ListAll()
	if err != nil {
		return "", err
	}
	seq := len(agents) + 1
	for attempt := 0; attempt < 10; attempt++ {
		candidate := fmt.Sprintf("A-%06d", seq+attempt)
		existing, err := s.agentRepo.GetByAgentNumber(candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("生成员工编号失败：连续碰撞")
}

// GetAgent 查询员工档案
func (s *AgentService) GetAgent(ctx context.Context, viewer Viewer, agentID uint) (*models.Agent, error) {
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, agentID)
	}
	ok, err := s.policy.CanViewAgent(ctx, viewer, agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return agent, nil
}

// ListAgents 查询员工列表（管理角色全量，普通员工限自己加下线）
// admin 的全量列表不含 super_admin 档案，和单条查看的拒绝保持一致
func (s *AgentService) ListAgents(ctx context.Context, viewer Viewer, filter repository.AgentListFilter) ([]models.Agent, int64, error) {
	_, all, err := s.policy.VisibleAgentIDs(ctx, viewer)
	if err != nil {
		return nil, 0, err
	}
	if all {
		if !viewer.IsSuperAdmin() {
			filter.ExcludeRole = constants.AgentRoleSuperAdmin
		}
		return s.agentRepo.List(filter)
	}
	agents, err := s.MyDownline(ctx, viewer)
	if err != nil {
		return nil, 0, err
	}
	return agents, int64(len(agents)), nil
}

// MyDownline 查询访问者自己加全部下线的员工档案
func (s *AgentService) MyDownline(ctx context.Context, viewer Viewer) ([]models.Agent, error) {
	ids, _, err := s.policy.VisibleAgentIDs(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return s.agentRepo.ListByIDs(ids)
}

// UpdateProfile 更新员工基础档案（姓名）
func (s *AgentService) UpdateProfile(ctx context.Context, viewer Viewer, agentID uint, name string) (*models.Agent, error) {
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, agentID)
	}
	ok, err := s.policy.CanEditAgent(ctx, viewer, agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	agent.Name = strings.TrimSpace(name)
	if err := s.agentRepo.Update(agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// UpdateOverride 更新抽佣设置（仅管理角色；admin 不得动 super_admin）
func (s *AgentService) UpdateOverride(ctx context.Context, viewer Viewer, agentID uint, canReceive bool, rate decimal.Decimal) (*models.Agent, error) {
	if !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, agentID)
	}
	ok, err := s.policy.CanEditAgent(ctx, viewer, agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("%w: 抽佣比例不能为负", ErrUplineInvalid)
	}

	agent.CanReceiveOverrides = canReceive
	agent.OverrideCommissionRate = models.NewMoneyFromDecimal(rate)
	if err := s.agentRepo.Update(agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// ChangeRole 变更员工角色，仅 super_admin
func (s *AgentService) ChangeRole(ctx context.Context, viewer Viewer, agentID uint, role string) (*models.Agent, error) {
	if !viewer.IsSuperAdmin() {
		return nil, ErrPermissionDenied
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrRoleInvalid, role)
	}
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, agentID)
	}

	agent.Role = role
	agent.TokenVersion++
	if err := s.agentRepo.Update(agent); err != nil {
		return nil, err
	}
	_ = cache.DelAgentAuthState(ctx, agent.ID)

	logger.Infow("agent_role_changed",
		"agent_id", agent.ID,
		"role", role,
		"operator_id", viewer.ID,
	)
	return agent, nil
}

// ChangeUpline 调整员工上线，并原子重算整棵子树的层级深度
// 新上线不得是自己或自己的下线，否则会造出环
func (s *AgentService) ChangeUpline(ctx context.Context, viewer Viewer, agentID uint, newUplineID *uint) (*models.Agent, error) {
	if !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, agentID)
	}
	ok, err := s.policy.CanEditAgent(ctx, viewer, agent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	oldUplineID := agent.UplineAgentID
	newLevel := 0
	if newUplineID != nil && *newUplineID != 0 {
		if *newUplineID == agentID {
			return nil, fmt.Errorf("%w: 不能把自己设为上线", ErrUplineInvalid)
		}
		inDownline, err := s.hierarchy.IsInDownline(ctx, agentID, *newUplineID)
		if err != nil {
			return nil, err
		}
		if inDownline {
			return nil, fmt.Errorf("%w: 新上线在目标员工的下线中", ErrUplineInvalid)
		}
		upline, err := s.agentRepo.GetByID(*newUplineID)
		if err != nil {
			return nil, err
		}
		if upline == nil {
			return nil, fmt.Errorf("%w: 上线 agent_id=%d 不存在", ErrUplineInvalid, *newUplineID)
		}
		newLevel = upline.HierarchyLevel + 1
		if newLevel > constants.HierarchyMaxDepth {
			return nil, fmt.Errorf("%w: 层级深度超过上限 %d", ErrUplineInvalid, constants.HierarchyMaxDepth)
		}
	} else {
		newUplineID = nil
	}

	err = s.agentRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.agentRepo.WithTx(tx)
		updates := map[string]interface{}{
			"upline_agent_id": newUplineID,
			"hierarchy_level": newLevel,
		}
		if err := repo.UpdateFields(agentID, updates); err != nil {
			return err
		}
		return recomputeSubtreeLevels(repo, agentID, newLevel)
	})
	if err != nil {
		return nil, err
	}

	// 旧链路和新链路的下线缓存都已过期
	s.hierarchy.InvalidateDownlineCache(ctx, agentID)
	if oldUplineID != nil {
		s.hierarchy.InvalidateDownlineCache(ctx, *oldUplineID)
	}
	if newUplineID != nil {
		s.hierarchy.InvalidateDownlineCache(ctx, *newUplineID)
	}

	logger.Infow("agent_upline_changed",
		"agent_id", agentID,
		"new_upline_id", newUplineID,
		"new_level", newLevel,
		"operator_id", viewer.ID,
	)
	return s.agentRepo.GetByID(agentID)
}

// recomputeSubtreeLevels 从 rootID 向下逐层重算 hierarchy_level
func recomputeSubtreeLevels(repo repository.AgentRepository, rootID uint, rootLevel int) error {
	agents, err := repo.ListAll()
	if err != nil {
		return err
	}
	children := make(map[uint][]uint, len(agents))
	for _, agent := range agents {
		if agent.UplineAgentID == nil || *agent.UplineAgentID == 0 {
			continue
		}
		children[*agent.UplineAgentID] = append(children[*agent.UplineAgentID], agent.ID)
	}

	type node struct {
		id    uint
		level int
	}
	visited := map[uint]bool{rootID: true}
	queue := make([]node, 0, len(children[rootID]))
	for _, childID := range children[rootID] {
		queue = append(queue, node{id: childID, level: rootLevel + 1})
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current.id] || current.level > constants.HierarchyMaxDepth {
			continue
		}
		visited[current.id] = true
		if err := repo.UpdateFields(current.id, map[string]interface{}{"hierarchy_level": current.level}); err != nil {
			return err
		}
		for _, childID := range children[current.id] {
			queue = append(queue, node{id: childID, level: current.level + 1})
		}
	}
	return nil
}

// SetStatus 启停员工账号（停用即失效全部在外 token，不做硬删除）
func (s *AgentService) SetStatus(ctx context.Context, viewer Viewer, agentID uint, status string) (*models.Agent, error) {
	if status != constants.AgentStatusActive && status != constants.AgentStatusInactive {
		return nil, fmt.Errorf("%w: 状态 %q 不合法", ErrRoleInvalid, status)
	}
	agent, err := s.agentRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, agentID)
	}
	ok, err := s.policy.CanEditAgent(ctx, viewer, agent)
	if err != nil {
		return nil, err
	}
	if !ok || !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}

	agent.Status = status
	if status == constants.AgentStatusInactive {
		agent.TokenVersion++
	}
	if err := s.agentRepo.Update(agent); err != nil {
		return nil, err
	}
	_ = cache.DelAgentAuthState(ctx, agent.ID)

	logger.Infow("agent_status_changed",
		"agent_id", agent.ID,
		"status", status,
		"operator_id", viewer.ID,
	)
	return agent, nil
}
