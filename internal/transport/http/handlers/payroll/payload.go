package payrollhandler

import (
	"strings"

	"github.com/shopspring/decimal"

	"payslip/internal/domain/payroll"
	"payslip/internal/transport/http/shared"
)

type deductionsPayload struct {
	AnnualIncome  decimal.Decimal `json:"annualIncome"`
	AllowanceCode string          `json:"allowanceCode"`
	Frequency     string          `json:"frequency"`
	TaxYear       string          `json:"taxYear"`
}

type payslipPayload struct {
	EmployeeID        string                  `json:"employeeId"`
	AnnualBasicSalary decimal.Decimal         `json:"annualBasicSalary"`
	Frequency         string                  `json:"frequency"`
	AllowanceCode     string                  `json:"allowanceCode"`
	TaxYear           string                  `json:"taxYear"`
	HourlyRate        decimal.Decimal         `json:"hourlyRate"`
	Hours             decimal.Decimal         `json:"hours"`
	OvertimeRate      decimal.Decimal         `json:"overtimeRate"`
	OvertimeHours     decimal.Decimal         `json:"overtimeHours"`
	HoursUnit         string                  `json:"hoursUnit"`
	PeriodStart       string                  `json:"periodStart"`
	PeriodEnd         string                  `json:"periodEnd"`
	Allowances        []payroll.AllowanceRule `json:"allowances"`
	Deductions        []payroll.DeductionRule `json:"deductions"`
}

type batchPayload struct {
	Items []payslipPayload `json:"items"`
}

var hoursUnits = []string{string(payroll.HoursPerPeriod), string(payroll.HoursPerYear)}

// toRequest validates field shapes and converts the payload. Calculation rules
// such as band tables and rule kinds are left to the calculator.
func (p payslipPayload) toRequest(v *shared.Validator) payroll.PayslipRequest {
	v.Required("taxYear", p.TaxYear, "is required")
	v.NonNegative("annualBasicSalary", p.AnnualBasicSalary)
	v.NonNegative("hourlyRate", p.HourlyRate)
	v.NonNegative("hours", p.Hours)
	v.NonNegative("overtimeRate", p.OvertimeRate)
	v.NonNegative("overtimeHours", p.OvertimeHours)
	v.Enum("hoursUnit", p.HoursUnit, hoursUnits, "must be period or annual")
	frequency := parseFrequency(v, "frequency", p.Frequency)
	start := v.OptionalDate("periodStart", p.PeriodStart)
	end := v.OptionalDate("periodEnd", p.PeriodEnd)
	v.DateOrder("periodStart", start, "periodEnd", end)

	return payroll.PayslipRequest{
		EmployeeID:        strings.TrimSpace(p.EmployeeID),
		AnnualBasicSalary: p.AnnualBasicSalary,
		Frequency:         frequency,
		AllowanceCode:     allowanceCodeOrDefault(p.AllowanceCode),
		TaxYear:           strings.TrimSpace(p.TaxYear),
		HourlyRate:        p.HourlyRate,
		Hours:             p.Hours,
		OvertimeRate:      p.OvertimeRate,
		OvertimeHours:     p.OvertimeHours,
		HoursUnit:         payroll.HoursUnit(strings.ToLower(strings.TrimSpace(p.HoursUnit))),
		PeriodStart:       start,
		PeriodEnd:         end,
		Allowances:        p.Allowances,
		Deductions:        p.Deductions,
	}
}

func parseFrequency(v *shared.Validator, field, raw string) payroll.PayFrequency {
	if strings.TrimSpace(raw) == "" {
		v.Add(field, "is required")
		return ""
	}
	frequency, err := payroll.ParsePayFrequency(raw)
	if err != nil {
		v.Add(field, "must be one of monthly, biweekly, weekly, quarterly, annual")
		return ""
	}
	return frequency
}

func allowanceCodeOrDefault(code string) string {
	if strings.TrimSpace(code) == "" {
		return payroll.AllowanceCodeStandard
	}
	return strings.TrimSpace(code)
}
