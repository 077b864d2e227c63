package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type PayFrequency string

const (
	FrequencyMonthly   PayFrequency = "monthly"
	FrequencyBiWeekly  PayFrequency = "biweekly"
	FrequencyWeekly    PayFrequency = "weekly"
	FrequencyQuarterly PayFrequency = "quarterly"
	FrequencyAnnual    PayFrequency = "annual"
)

var periodsPerYear = map[PayFrequency]int64{
	FrequencyMonthly:   12,
	FrequencyBiWeekly:  26,
	FrequencyWeekly:    52,
	FrequencyQuarterly: 4,
	FrequencyAnnual:    1,
}

var frequencyAliases = map[string]PayFrequency{
	"bi-weekly":   FrequencyBiWeekly,
	"fortnightly": FrequencyBiWeekly,
	"yearly":      FrequencyAnnual,
}

// Frequencies lists the supported frequencies in display order.
func Frequencies() []PayFrequency {
	return []PayFrequency{FrequencyMonthly, FrequencyBiWeekly, FrequencyWeekly, FrequencyQuarterly, FrequencyAnnual}
}

func ParsePayFrequency(raw string) (PayFrequency, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := frequencyAliases[normalized]; ok {
		return alias, nil
	}
	freq := PayFrequency(normalized)
	if _, ok := periodsPerYear[freq]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFrequency, raw)
	}
	return freq, nil
}

func (f PayFrequency) PeriodsPerYear() (int64, error) {
	periods, ok := periodsPerYear[f]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownFrequency, string(f))
	}
	return periods, nil
}

// AnnualToPeriod divides an annual amount by the number of pay periods. No
// rounding is applied.
func AnnualToPeriod(amount decimal.Decimal, f PayFrequency) (decimal.Decimal, error) {
	periods, err := f.PeriodsPerYear()
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Div(decimal.NewFromInt(periods)), nil
}

func PeriodToAnnual(amount decimal.Decimal, f PayFrequency) (decimal.Decimal, error) {
	periods, err := f.PeriodsPerYear()
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(decimal.NewFromInt(periods)), nil
}
