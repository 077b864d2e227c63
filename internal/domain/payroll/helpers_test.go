package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func testTaxYear() TaxYearConfig {
	return TaxYearConfig{
		ID:                    "test-year",
		PersonalAllowanceBase: dec("12570"),
		TaperThreshold:        dec("100000"),
		TaperRate:             dec("0.5"),
		NoAllowanceOverride:   decimal.Zero,
		IncomeTaxBands: []Band{
			{Name: "basic_rate", LowerBound: decimal.Zero, Rate: dec("0.20")},
		},
		InsuranceBands: []Band{
			{Name: "below_threshold", LowerBound: decimal.Zero, Rate: decimal.Zero},
			{Name: "main_rate", LowerBound: dec("12570"), Rate: dec("0.12")},
		},
	}
}

func testCalculator(t *testing.T, formulas FormulaEvaluator) *Calculator {
	t.Helper()
	registry, err := NewTaxYearRegistry(testTaxYear())
	if err != nil {
		t.Fatalf("registry error: %v", err)
	}
	return NewCalculator(registry, formulas)
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("expected %s %s, got %s", label, want, got.String())
	}
}
