package payroll

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numericAllowanceCode = regexp.MustCompile(`^([0-9]{1,5})L$`)

// TaperedAllowance reduces base by rate for every unit of income above
// threshold, never below zero.
func TaperedAllowance(income, base, threshold, rate decimal.Decimal) decimal.Decimal {
	excess := decimal.Max(decimal.Zero, income.Sub(threshold))
	return decimal.Max(decimal.Zero, base.Sub(excess.Mul(rate)))
}

// EffectiveAllowance resolves an allowance code against a tax year:
// "standard" tapers the configured base, "none"/"0T" use the configured
// override, and "<n>L" tapers a base of n*10.
func EffectiveAllowance(cfg TaxYearConfig, code string, annualIncome decimal.Decimal) (decimal.Decimal, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	switch normalized {
	case strings.ToUpper(AllowanceCodeStandard):
		return TaperedAllowance(annualIncome, cfg.PersonalAllowanceBase, cfg.TaperThreshold, cfg.TaperRate), nil
	case strings.ToUpper(AllowanceCodeNone), AllowanceCodeZeroT:
		return cfg.NoAllowanceOverride, nil
	}
	if match := numericAllowanceCode.FindStringSubmatch(normalized); match != nil {
		base := decimal.RequireFromString(match[1]).Mul(decimal.NewFromInt(10))
		return TaperedAllowance(annualIncome, base, cfg.TaperThreshold, cfg.TaperRate), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAllowanceCode, code)
}

// IncomeTaxTable prepends a zero-rate personal allowance band and shifts the
// configured bands above it.
func IncomeTaxTable(bands []Band, allowance decimal.Decimal) []Band {
	table := make([]Band, 0, len(bands)+1)
	if allowance.IsPositive() {
		table = append(table, Band{Name: PersonalAllowanceBand, LowerBound: decimal.Zero, Rate: decimal.Zero})
	}
	for _, band := range bands {
		table = append(table, Band{Name: band.Name, LowerBound: band.LowerBound.Add(allowance), Rate: band.Rate})
	}
	return table
}
