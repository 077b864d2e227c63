package payroll

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTaperedAllowance(t *testing.T) {
	base, threshold, rate := dec("12570"), dec("100000"), dec("0.5")
	cases := map[string]string{
		"30000":  "12570",
		"100000": "12570",
		"100001": "12569.5",
		"120000": "2570",
		"125140": "0",
		"500000": "0",
	}
	for income, want := range cases {
		assertAmount(t, "allowance at "+income, TaperedAllowance(dec(income), base, threshold, rate), want)
	}
}

func TestTaperedAllowanceNonIncreasing(t *testing.T) {
	base, threshold, rate := dec("12570"), dec("100000"), dec("0.5")
	prev := TaperedAllowance(decimal.Zero, base, threshold, rate)
	for income := decimal.Zero; income.LessThan(dec("140000")); income = income.Add(dec("1000")) {
		got := TaperedAllowance(income, base, threshold, rate)
		if got.GreaterThan(prev) {
			t.Fatalf("allowance increased at %s", income)
		}
		if got.IsNegative() {
			t.Fatalf("allowance negative at %s", income)
		}
		prev = got
	}
}

func TestEffectiveAllowanceCodes(t *testing.T) {
	cfg := testTaxYear()
	cfg.NoAllowanceOverride = dec("0")

	got, err := EffectiveAllowance(cfg, "standard", dec("120000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertAmount(t, "standard", got, "2570")

	got, err = EffectiveAllowance(cfg, "0T", dec("30000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertAmount(t, "0T", got, "0")

	got, err = EffectiveAllowance(cfg, "1100L", dec("30000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertAmount(t, "1100L", got, "11000")

	if _, err := EffectiveAllowance(cfg, "K100", dec("30000")); !errors.Is(err, ErrInvalidAllowanceCode) {
		t.Fatalf("expected ErrInvalidAllowanceCode, got %v", err)
	}
}

func TestIncomeTaxTableShiftsBands(t *testing.T) {
	table := IncomeTaxTable([]Band{
		{Name: "basic_rate", LowerBound: decimal.Zero, Rate: dec("0.20")},
		{Name: "higher_rate", LowerBound: dec("37700"), Rate: dec("0.40")},
	}, dec("12570"))
	if len(table) != 3 || table[0].Name != PersonalAllowanceBand {
		t.Fatalf("expected personal allowance band first, got %+v", table)
	}
	assertAmount(t, "basic lower", table[1].LowerBound, "12570")
	assertAmount(t, "higher lower", table[2].LowerBound, "50270")

	noAllowance := IncomeTaxTable([]Band{{Name: "basic_rate", LowerBound: decimal.Zero, Rate: dec("0.20")}}, decimal.Zero)
	if len(noAllowance) != 1 {
		t.Fatalf("expected zero-width allowance band to be omitted, got %d bands", len(noAllowance))
	}
}
