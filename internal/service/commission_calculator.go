package service

import (
	"fmt"
	"strings"

	"github.com/enroll-next/internal/constants"

	"github.com/shopspring/decimal"
)

// ResolvePlanTier 从自由文本套餐名归一化出档位
// 容错匹配：不区分大小写的子串 base / plus / elite，字面 '+' 也视为 plus 信号
// 优先级 elite > plus > base（更具体的档位先判，避免 "elite plus" 之类歧义）
func ResolvePlanTier(planLabel string) (string, error) {
	lower := strings.ToLower(strings.TrimSpace(planLabel))
	switch {
	case strings.Contains(lower, "elite"):
		return constants.PlanTierElite, nil
	case strings.Contains(lower, "plus"), strings.Contains(lower, "+"):
		return constants.PlanTierPlus, nil
	case strings.Contains(lower, "base"):
		return constants.PlanTierBase, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnrecognizedPlanTier, planLabel)
}

// ValidateCoverageType 校验保障范围取值
func ValidateCoverageType(coverageType string) error {
	for _, known := range knownCoverageTypes {
		if coverageType == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrCoverageInvalid, coverageType)
}

// CalculateCommissionAmount 按费率表计算佣金金额（纯函数）
// 返回归一化档位和金额；同样的输入永远得到同样的输出
func CalculateCommissionAmount(table RateTable, planLabel, coverageType string, hasRxAddOn bool) (string, decimal.Decimal, error) {
	if err := ValidateCoverageType(coverageType); err != nil {
		return "", decimal.Zero, err
	}
	tier, err := ResolvePlanTier(planLabel)
	if err != nil {
		return "", decimal.Zero, err
	}
	coverages, ok := table.Rates[tier]
	if !ok {
		return tier, decimal.Zero, fmt.Errorf("%w: 缺少档位 %s", ErrRateTableInvalid, tier)
	}
	amount, ok := coverages[coverageType]
	if !ok {
		return tier, decimal.Zero, fmt.Errorf("%w: 档位 %s 缺少保障范围 %s", ErrRateTableInvalid, tier, coverageType)
	}
	result := amount.Decimal
	if hasRxAddOn {
		result = result.Add(table.RxAddOn.Decimal)
	}
	return tier, result.Round(2), nil
}

// CommissionCalculator 佣金计算器（费率表来自 settings，可运行期覆盖）
type CommissionCalculator struct {
	rateTable *RateTableService
}

// NewCommissionCalculator 创建佣金计算器
func NewCommissionCalculator(rateTable *RateTableService) *CommissionCalculator {
	return &CommissionCalculator{rateTable: rateTable}
}

// Calculate 按当前生效费率表计算佣金
func (c *CommissionCalculator) Calculate(planLabel, coverageType string, hasRxAddOn bool) (string, decimal.Decimal, error) {
	table, err := c.rateTable.Get()
	if err != nil {
		return "", decimal.Zero, err
	}
	return CalculateCommissionAmount(table, planLabel, coverageType, hasRxAddOn)
}
