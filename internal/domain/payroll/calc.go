package payroll

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Calculator turns payslip requests into itemized results. It holds only
// read-only collaborators and is safe for concurrent use.
type Calculator struct {
	taxYears TaxYearProvider
	formulas FormulaEvaluator
}

func NewCalculator(taxYears TaxYearProvider, formulas FormulaEvaluator) *Calculator {
	return &Calculator{taxYears: taxYears, formulas: formulas}
}

func (c *Calculator) TaxYears() TaxYearProvider {
	return c.taxYears
}

func (c *Calculator) CalculatePayslip(req PayslipRequest) (PayslipResult, error) {
	if err := req.validate(); err != nil {
		return PayslipResult{}, err
	}
	if err := c.checkFormulas(req.Allowances); err != nil {
		return PayslipResult{}, err
	}
	periods, err := req.Frequency.PeriodsPerYear()
	if err != nil {
		return PayslipResult{}, err
	}
	cfg, err := c.taxYears.TaxYear(req.TaxYear)
	if err != nil {
		return PayslipResult{}, err
	}

	annualGross := req.annualGross(periods)
	allowance, err := EffectiveAllowance(cfg, req.AllowanceCode, annualGross)
	if err != nil {
		return PayslipResult{}, err
	}
	incomeTax := ProgressiveAmount(annualGross, IncomeTaxTable(cfg.IncomeTaxBands, allowance))
	insurance := ProgressiveAmount(annualGross, cfg.InsuranceBands)

	periodGross, err := AnnualToPeriod(annualGross, req.Frequency)
	if err != nil {
		return PayslipResult{}, err
	}
	divisor := decimal.NewFromInt(periods)
	periodTax := incomeTax.Total.Div(divisor)
	periodInsurance := insurance.Total.Div(divisor)

	rc := RuleContext{
		PeriodGross:     periodGross,
		PeriodBasic:     req.AnnualBasicSalary.Div(divisor),
		PeriodIncomeTax: periodTax,
		PeriodInsurance: periodInsurance,
		Formula: FormulaInput{
			EmployeeID:     req.EmployeeID,
			BaseSalary:     req.AnnualBasicSalary,
			PeriodStart:    req.PeriodStart,
			PeriodEnd:      req.PeriodEnd,
			PeriodsPerYear: periods,
		},
		Formulas: c.formulas,
	}

	// Each published component is rounded once; every total is summed from
	// the rounded components so the payslip adds up to the pence.
	totalAllowances, taxableAllowances := decimal.Zero, decimal.Zero
	allowances := make([]Line, 0, len(req.Allowances))
	for _, rule := range req.Allowances {
		line, err := ResolveAllowance(rule, rc)
		if err != nil {
			return PayslipResult{}, err
		}
		line.Amount = RoundCurrency(line.Amount)
		totalAllowances = totalAllowances.Add(line.Amount)
		if line.Taxable {
			taxableAllowances = taxableAllowances.Add(line.Amount)
		}
		allowances = append(allowances, line)
	}

	totalDeductions, preTaxDeductions := decimal.Zero, decimal.Zero
	deductions := make([]Line, 0, len(req.Deductions))
	for _, rule := range req.Deductions {
		line, err := ResolveDeduction(rule, rc)
		if err != nil {
			return PayslipResult{}, err
		}
		line.Amount = RoundCurrency(line.Amount)
		if !line.Statutory {
			totalDeductions = totalDeductions.Add(line.Amount)
			if line.PreTax {
				preTaxDeductions = preTaxDeductions.Add(line.Amount)
			}
		}
		deductions = append(deductions, line)
	}

	grossPay := RoundCurrency(periodGross)
	periodTax = RoundCurrency(periodTax)
	periodInsurance = RoundCurrency(periodInsurance)
	totalTax := periodTax.Add(periodInsurance)
	netPay := grossPay.Add(totalAllowances).Sub(totalDeductions).Sub(totalTax)

	result := PayslipResult{
		EmployeeID:        req.EmployeeID,
		TaxYear:           cfg.ID,
		Frequency:         req.Frequency,
		AllowanceCode:     req.AllowanceCode,
		GrossPay:          grossPay,
		TotalAllowances:   totalAllowances,
		TaxableAllowances: taxableAllowances,
		TotalDeductions:   totalDeductions,
		PreTaxDeductions:  preTaxDeductions,
		IncomeTax:         periodTax,
		NationalInsurance: periodInsurance,
		TotalTax:          totalTax,
		NetPay:            netPay,
		PersonalAllowance: RoundCurrency(allowance),
		Allowances:        allowances,
		Deductions:        deductions,
		Breakdown:         make(map[string]decimal.Decimal, len(incomeTax.Portions)+len(insurance.Portions)),
	}
	result.addBands(CategoryIncomeTax, incomeTax, divisor, periodTax)
	result.addBands(CategoryNationalInsurance, insurance, divisor, periodInsurance)
	return result, nil
}

// CalculateDeductions is the salary-only entry point used by payslip
// management and reporting.
func (c *Calculator) CalculateDeductions(annualIncome decimal.Decimal, allowanceCode string, frequency PayFrequency, taxYear string) (DeductionSummary, error) {
	result, err := c.CalculatePayslip(PayslipRequest{
		AnnualBasicSalary: annualIncome,
		Frequency:         frequency,
		AllowanceCode:     allowanceCode,
		TaxYear:           taxYear,
	})
	if err != nil {
		return DeductionSummary{}, err
	}
	return DeductionSummary{
		IncomeTax:            result.IncomeTax,
		NationalInsurance:    result.NationalInsurance,
		PersonalAllowance:    result.PersonalAllowance,
		GrossSalaryForPeriod: result.GrossPay,
		NetSalary:            result.NetPay,
	}, nil
}

// addBands records each band's per-period share. Shares are rounded down to
// the penny and the leftover pennies go to the bands with the largest
// remainders, so the category's entries always sum to its rounded total.
func (r *PayslipResult) addBands(category string, bands BandResult, divisor, total decimal.Decimal) {
	shares := make([]decimal.Decimal, len(bands.Portions))
	remainders := make([]decimal.Decimal, len(bands.Portions))
	allocated := decimal.Zero
	for i, portion := range bands.Portions {
		exact := portion.Owed.Div(divisor)
		shares[i] = exact.RoundFloor(2)
		remainders[i] = exact.Sub(shares[i])
		allocated = allocated.Add(shares[i])
	}
	penny := decimal.New(1, -2)
	for left := total.Sub(allocated); left.GreaterThanOrEqual(penny); left = left.Sub(penny) {
		best := -1
		for i := range remainders {
			if best < 0 || remainders[i].GreaterThan(remainders[best]) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		shares[best] = shares[best].Add(penny)
		remainders[best] = remainders[best].Sub(penny)
	}
	for i, portion := range bands.Portions {
		r.Breakdown[BreakdownKey(category, portion.Band.Name)] = shares[i]
		r.Bands = append(r.Bands, BandLine{
			Category:      category,
			Band:          portion.Band.Name,
			Rate:          portion.Band.Rate,
			AnnualPortion: RoundCurrency(portion.Portion),
			PeriodAmount:  shares[i],
		})
	}
}

// checkFormulas rejects formula allowances naming a formula the configured
// evaluator does not know.
func (c *Calculator) checkFormulas(rules []AllowanceRule) error {
	catalog, ok := c.formulas.(FormulaCatalog)
	if !ok {
		return nil
	}
	for _, rule := range rules {
		if rule.Kind != AllowanceFormula {
			continue
		}
		if name := strings.TrimSpace(rule.Formula); name != "" && !catalog.Has(name) {
			return invalidRule(rule.Name, "formula %s is not registered", name)
		}
	}
	return nil
}

func (req PayslipRequest) validate() error {
	for _, input := range []namedAmount{
		{"annualBasicSalary", req.AnnualBasicSalary},
		{"hourlyRate", req.HourlyRate},
		{"hours", req.Hours},
		{"overtimeRate", req.OvertimeRate},
		{"overtimeHours", req.OvertimeHours},
	} {
		if err := requireNonNegative(input.field, input.value); err != nil {
			return err
		}
	}
	switch req.HoursUnit {
	case "", HoursPerPeriod, HoursPerYear:
	default:
		return fmt.Errorf("%w: hours unit %q", ErrInvalidRequest, req.HoursUnit)
	}
	if !req.PeriodStart.IsZero() && !req.PeriodEnd.IsZero() && req.PeriodEnd.Before(req.PeriodStart) {
		return fmt.Errorf("%w: period end is before period start", ErrInvalidRequest)
	}
	return nil
}

// annualGross adds hourly and overtime pay to the basic salary, scaling
// per-period hours up to a year.
func (req PayslipRequest) annualGross(periods int64) decimal.Decimal {
	hourly := req.HourlyRate.Mul(req.Hours).Add(req.OvertimeRate.Mul(req.OvertimeHours))
	if req.HoursUnit != HoursPerYear {
		hourly = hourly.Mul(decimal.NewFromInt(periods))
	}
	return req.AnnualBasicSalary.Add(hourly)
}
