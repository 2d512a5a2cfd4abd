package service

import (
	"context"
	"sort"

	"github.com/enroll-next/internal/cache"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/repository"
)

// HierarchyService 层级解析服务
// 员工表是平铺的 id + 上线指针结构，下线集合按需遍历求出
// 遍历带深度上限与访问去重，环视为数据完整性告警而不是死循环
type HierarchyService struct {
	agentRepo repository.AgentRepository
}

// NewHierarchyService 创建层级解析服务
func NewHierarchyService(agentRepo repository.AgentRepository) *HierarchyService {
	return &HierarchyService{agentRepo: agentRepo}
}

// ResolveDownline 解析员工的全量下线集合（传递闭包，不含自身）
// 深度超限或自身出现在闭包中时返回已解析的部分结果和 ErrCycleDetected
// 停用员工仍参与解析，历史佣金的归属不受停用影响
func (s *HierarchyService) ResolveDownline(ctx context.Context, agentID uint) ([]uint, error) {
	if agentID == 0 {
		return []uint{}, nil
	}

	if ids, hit, err := cache.GetAgentDownline(ctx, agentID); err == nil && hit {
		return ids, nil
	}

	agents, err := s.agentRepo.ListAll()
	if err != nil {
		return nil, err
	}

	children := make(map[uint][]uint, len(agents))
	for _, agent := range agents {
		if agent.UplineAgentID == nil || *agent.UplineAgentID == 0 {
			continue
		}
		upline := *agent.UplineAgentID
		children[upline] = append(children[upline], agent.ID)
	}

	type node struct {
		id    uint
		depth int
	}

	visited := make(map[uint]bool)
	result := make([]uint, 0)
	queue := make([]node, 0, len(children[agentID]))
	for _, childID := range children[agentID] {
		queue = append(queue, node{id: childID, depth: 1})
	}

	cycle := false
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.id == agentID {
			// 自身出现在下线链路中，说明上线指针成环
			cycle = true
			continue
		}
		if visited[current.id] {
			continue
		}
		if current.depth > constants.HierarchyMaxDepth {
			cycle = true
			continue
		}
		visited[current.id] = true
		result = append(result, current.id)

		for _, childID := range children[current.id] {
			queue = append(queue, node{id: childID, depth: current.depth + 1})
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	if cycle {
		logger.Warnw("hierarchy_cycle_detected",
			"agent_id", agentID,
			"resolved_count", len(result),
			"max_depth", constants.HierarchyMaxDepth,
		)
		return result, ErrCycleDetected
	}

	_ = cache.SetAgentDownline(ctx, agentID, result)
	return result, nil
}

// IsInDownline 判断 candidateID 是否在 agentID 的下线集合中
func (s *HierarchyService) IsInDownline(ctx context.Context, agentID, candidateID uint) (bool, error) {
	if agentID == 0 || candidateID == 0 || agentID == candidateID {
		return false, nil
	}
	ids, err := s.ResolveDownline(ctx, agentID)
	if err != nil && len(ids) == 0 {
		return false, err
	}
	for _, id := range ids {
		if id == candidateID {
			return true, err
		}
	}
	return false, err
}

// HasDownline 判断员工是否有下线
func (s *HierarchyService) HasDownline(ctx context.Context, agentID uint) (bool, error) {
	ids, err := s.ResolveDownline(ctx, agentID)
	if err != nil && len(ids) == 0 {
		return false, err
	}
	return len(ids) > 0, err
}

// InvalidateDownlineCache 失效员工及其全部祖先的下线缓存
// 上线边变更后必须调用，否则缓存会给出过期的闭包
func (s *HierarchyService) InvalidateDownlineCache(ctx context.Context, agentID uint) {
	if agentID == 0 {
		return
	}
	_ = cache.DelAgentDownline(ctx, agentID)

	currentID := agentID
	for depth := 0; depth < constants.HierarchyMaxDepth; depth++ {
		agent, err := s.agentRepo.GetByID(currentID)
		if err != nil || agent == nil || agent.UplineAgentID == nil || *agent.UplineAgentID == 0 {
			return
		}
		currentID = *agent.UplineAgentID
		_ = cache.DelAgentDownline(ctx, currentID)
	}
}
