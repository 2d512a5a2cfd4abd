package service

import (
	"encoding/json"
	"fmt"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/shopspring/decimal"
)

// RateTable 佣金费率表：档位 × 保障范围 → 金额，外加处方药附加费
// 表内容是配置而不是逻辑，可在运行期通过 settings 覆盖
type RateTable struct {
	Rates   map[string]map[string]models.Money `json:"rates"`
	RxAddOn models.Money                       `json:"rx_add_on"`
}

// DefaultRateTable 默认费率表
func DefaultRateTable() RateTable {
	money := func(s string) models.Money {
		d, _ := decimal.NewFromString(s)
		return models.NewMoneyFromDecimal(d)
	}
	return RateTable{
		Rates: map[string]map[string]models.Money{
			constants.PlanTierBase: {
				constants.CoverageMemberOnly:     money("9.00"),
				constants.CoverageMemberSpouse:   money("15.00"),
				constants.CoverageMemberChildren: money("13.00"),
				constants.CoverageFamily:         money("17.00"),
			},
			constants.PlanTierPlus: {
				constants.CoverageMemberOnly:     money("12.00"),
				constants.CoverageMemberSpouse:   money("20.00"),
				constants.CoverageMemberChildren: money("25.00"),
				constants.CoverageFamily:         money("40.00"),
			},
			constants.PlanTierElite: {
				constants.CoverageMemberOnly:     money("12.00"),
				constants.CoverageMemberSpouse:   money("20.00"),
				constants.CoverageMemberChildren: money("25.00"),
				constants.CoverageFamily:         money("40.00"),
			},
		},
		RxAddOn: money("2.50"),
	}
}

var knownPlanTiers = []string{
	constants.PlanTierBase,
	constants.PlanTierPlus,
	constants.PlanTierElite,
}

var knownCoverageTypes = []string{
	constants.CoverageMemberOnly,
	constants.CoverageMemberSpouse,
	constants.CoverageMemberChildren,
	constants.CoverageFamily,
}

// ValidateRateTable 校验费率表：三档位四范围必须全覆盖且金额非负
func ValidateRateTable(table RateTable) error {
	if table.RxAddOn.IsNegative() {
		return fmt.Errorf("%w: 处方药附加费不能为负", ErrRateTableInvalid)
	}
	for _, tier := range knownPlanTiers {
		coverages, ok := table.Rates[tier]
		if !ok {
			return fmt.Errorf("%w: 缺少档位 %s", ErrRateTableInvalid, tier)
		}
		for _, coverage := range knownCoverageTypes {
			amount, ok := coverages[coverage]
			if !ok {
				return fmt.Errorf("%w: 档位 %s 缺少保障范围 %s", ErrRateTableInvalid, tier, coverage)
			}
			if amount.IsNegative() {
				return fmt.Errorf("%w: %s/%s 金额不能为负", ErrRateTableInvalid, tier, coverage)
			}
		}
	}
	return nil
}

// RateTableService 费率表服务（settings 覆盖优先，缺省回退默认表）
type RateTableService struct {
	settingRepo repository.SettingRepository
}

// NewRateTableService 创建费率表服务
func NewRateTableService(settingRepo repository.SettingRepository) *RateTableService {
	return &RateTableService{settingRepo: settingRepo}
}

// Get 获取当前生效的费率表
func (s *RateTableService) Get() (RateTable, error) {
	table := DefaultRateTable()
	if s == nil || s.settingRepo == nil {
		return table, nil
	}
	setting, err := s.settingRepo.GetByKey(constants.SettingKeyCommissionRateTable)
	if err != nil {
		return table, err
	}
	if setting == nil || setting.Value == "" {
		return table, nil
	}
	var stored RateTable
	if err := json.Unmarshal([]byte(setting.Value), &stored); err != nil {
		return table, fmt.Errorf("%w: %v", ErrRateTableInvalid, err)
	}
	if err := ValidateRateTable(stored); err != nil {
		return table, err
	}
	return stored, nil
}

// Update 覆盖费率表
func (s *RateTableService) Update(table RateTable) (RateTable, error) {
	if err := ValidateRateTable(table); err != nil {
		return RateTable{}, err
	}
	payload, err := json.Marshal(table)
	if err != nil {
		return RateTable{}, err
	}
	if _, err := s.settingRepo.Upsert(constants.SettingKeyCommissionRateTable, string(payload)); err != nil {
		return RateTable{}, err
	}
	return table, nil
}
