package cache

import (
	"context"
	"fmt"
	"time"
)

const downlineCacheTTL = 5 * time.Minute

func agentDownlineKey(agentID uint) string {
	return fmt.Sprintf("hierarchy:downline:%d", agentID)
}

// GetAgentDownline 获取员工下级集合缓存
func GetAgentDownline(ctx context.Context, agentID uint) ([]uint, bool, error) {
	if agentID == 0 {
		return nil, false, nil
	}
	var ids []uint
	hit, err := GetJSON(ctx, agentDownlineKey(agentID), &ids)
	if err != nil || !hit {
		return nil, hit, err
	}
	return ids, true, nil
}

// SetAgentDownline 写入员工下级集合缓存
func SetAgentDownline(ctx context.Context, agentID uint, ids []uint) error {
	if agentID == 0 {
		return nil
	}
	if ids == nil {
		ids = []uint{}
	}
	return SetJSON(ctx, agentDownlineKey(agentID), ids, downlineCacheTTL)
}

// DelAgentDownline 删除员工下级集合缓存（上线变更时调用）
func DelAgentDownline(ctx context.Context, agentID uint) error {
	if agentID == 0 {
		return nil
	}
	return Del(ctx, agentDownlineKey(agentID))
}
