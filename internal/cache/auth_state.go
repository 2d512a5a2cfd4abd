package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/enroll-next/internal/models"
)

const authStateCacheTTL = 10 * time.Minute

// AgentAuthState 员工鉴权快照
// 仅用于服务端 Redis 缓存，避免每个请求都回查数据库
type AgentAuthState struct {
	AgentID      uint   `json:"agent_id"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	TokenVersion uint64 `json:"token_version"`
	UpdatedAt    int64  `json:"updated_at"`
}

func agentAuthStateKey(agentID uint) string {
	return fmt.Sprintf("auth:agent:%d", agentID)
}

// BuildAgentAuthState 从员工模型构建鉴权快照
func BuildAgentAuthState(agent *models.Agent) *AgentAuthState {
	if agent == nil {
		return nil
	}
	return &AgentAuthState{
		AgentID:      agent.ID,
		Role:         agent.Role,
		Status:       agent.Status,
		TokenVersion: agent.TokenVersion,
		UpdatedAt:    time.Now().Unix(),
	}
}

// GetAgentAuthState 获取员工鉴权快照
func GetAgentAuthState(ctx context.Context, agentID uint) (*AgentAuthState, bool, error) {
	if agentID == 0 {
		return nil, false, nil
	}
	var state AgentAuthState
	hit, err := GetJSON(ctx, agentAuthStateKey(agentID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetAgentAuthState 写入员工鉴权快照
func SetAgentAuthState(ctx context.Context, state *AgentAuthState) error {
	if state == nil || state.AgentID == 0 {
		return nil
	}
	return SetJSON(ctx, agentAuthStateKey(state.AgentID), state, authStateCacheTTL)
}

// DelAgentAuthState 删除员工鉴权快照
func DelAgentAuthState(ctx context.Context, agentID uint) error {
	if agentID == 0 {
		return nil
	}
	return Del(ctx, agentAuthStateKey(agentID))
}
