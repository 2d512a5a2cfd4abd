package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestResolvePlanTier(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"MyPremierPlan Plus", constants.PlanTierPlus},
		{"Family Care+", constants.PlanTierPlus},
		{"base coverage 2024", constants.PlanTierBase},
		{"BASE", constants.PlanTierBase},
		{"Elite Health", constants.PlanTierElite},
		{"ELITE plus", constants.PlanTierElite},
	}
	for _, tc := range cases {
		got, err := ResolvePlanTier(tc.label)
		if err != nil {
			t.Fatalf("ResolvePlanTier(%q) 返回错误: %v", tc.label, err)
		}
		if got != tc.want {
			t.Fatalf("ResolvePlanTier(%q) = %s, 期望 %s", tc.label, got, tc.want)
		}
	}
}

func TestResolvePlanTierUnrecognized(t *testing.T) {
	_, err := ResolvePlanTier("Mystery Tier")
	if !errors.Is(err, ErrUnrecognizedPlanTier) {
		t.Fatalf("期望 ErrUnrecognizedPlanTier, 实际: %v", err)
	}
}

func TestCalculateCommissionAmountAnchors(t *testing.T) {
	table := DefaultRateTable()
	cases := []struct {
		label      string
		coverage   string
		hasRxAddOn bool
		wantTier   string
		wantAmount string
	}{
		{"MyPremierPlan Plus", constants.CoverageFamily, false, constants.PlanTierPlus, "40.00"},
		{"base plan", constants.CoverageMemberOnly, false, constants.PlanTierBase, "9.00"},
		{"base plan", constants.CoverageMemberSpouse, false, constants.PlanTierBase, "15.00"},
		{"base plan", constants.CoverageMemberOnly, true, constants.PlanTierBase, "11.50"},
		{"Elite Family", constants.CoverageFamily, false, constants.PlanTierElite, "40.00"},
	}
	for _, tc := range cases {
		tier, amount, err := CalculateCommissionAmount(table, tc.label, tc.coverage, tc.hasRxAddOn)
		if err != nil {
			t.Fatalf("计算 (%q, %s) 返回错误: %v", tc.label, tc.coverage, err)
		}
		if tier != tc.wantTier {
			t.Fatalf("(%q, %s) 档位 = %s, 期望 %s", tc.label, tc.coverage, tier, tc.wantTier)
		}
		if amount.StringFixed(2) != tc.wantAmount {
			t.Fatalf("(%q, %s) 金额 = %s, 期望 %s", tc.label, tc.coverage, amount.StringFixed(2), tc.wantAmount)
		}
	}
}

func TestCalculateCommissionAmountIdempotent(t *testing.T) {
	table := DefaultRateTable()
	_, first, err := CalculateCommissionAmount(table, "Plus Family Plan", constants.CoverageFamily, true)
	if err != nil {
		t.Fatalf("首次计算失败: %v", err)
	}
	_, second, err := CalculateCommissionAmount(table, "Plus Family Plan", constants.CoverageFamily, true)
	if err != nil {
		t.Fatalf("二次计算失败: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("相同输入得到不同金额: %s vs %s", first, second)
	}
	if first.StringFixed(2) != "42.50" {
		t.Fatalf("Plus/Family + Rx = %s, 期望 42.50", first.StringFixed(2))
	}
}

func TestCalculateCommissionAmountInvalidCoverage(t *testing.T) {
	table := DefaultRateTable()
	_, _, err := CalculateCommissionAmount(table, "base plan", "everyone", false)
	if !errors.Is(err, ErrCoverageInvalid) {
		t.Fatalf("期望 ErrCoverageInvalid, 实际: %v", err)
	}
}

func setupRateTableTest(t *testing.T) (*RateTableService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:rate_table_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewRateTableService(repository.NewSettingRepository(db)), db
}

func TestRateTableRuntimeOverride(t *testing.T) {
	svc, _ := setupRateTableTest(t)

	table, err := svc.Get()
	if err != nil {
		t.Fatalf("读取默认费率表失败: %v", err)
	}
	if table.Rates[constants.PlanTierBase][constants.CoverageMemberOnly].String() != "9.00" {
		t.Fatalf("默认 base/member_only 不是 9.00")
	}

	table.Rates[constants.PlanTierBase][constants.CoverageMemberOnly] = models.NewMoneyFromDecimal(decimal.NewFromInt(10))
	if _, err := svc.Update(table); err != nil {
		t.Fatalf("覆盖费率表失败: %v", err)
	}

	calculator := NewCommissionCalculator(svc)
	_, amount, err := calculator.Calculate("base plan", constants.CoverageMemberOnly, false)
	if err != nil {
		t.Fatalf("按覆盖表计算失败: %v", err)
	}
	if amount.StringFixed(2) != "10.00" {
		t.Fatalf("覆盖后金额 = %s, 期望 10.00", amount.StringFixed(2))
	}
}

func TestRateTableRejectsNegativeAmount(t *testing.T) {
	svc, _ := setupRateTableTest(t)
	table := DefaultRateTable()
	table.Rates[constants.PlanTierPlus][constants.CoverageFamily] = models.NewMoneyFromDecimal(decimal.NewFromInt(-1))
	if _, err := svc.Update(table); !errors.Is(err, ErrRateTableInvalid) {
		t.Fatalf("期望 ErrRateTableInvalid, 实际: %v", err)
	}
}
