package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoursUnit states whether hour counts on a request cover one pay period or
// a whole year.
type HoursUnit string

const (
	HoursPerPeriod HoursUnit = "period"
	HoursPerYear   HoursUnit = "annual"
)

type PayslipRequest struct {
	EmployeeID        string
	AnnualBasicSalary decimal.Decimal
	Frequency         PayFrequency
	AllowanceCode     string
	TaxYear           string
	HourlyRate        decimal.Decimal
	Hours             decimal.Decimal
	OvertimeRate      decimal.Decimal
	OvertimeHours     decimal.Decimal
	HoursUnit         HoursUnit
	PeriodStart       time.Time
	PeriodEnd         time.Time
	Allowances        []AllowanceRule
	Deductions        []DeductionRule
}

type BandLine struct {
	Category      string          `json:"category"`
	Band          string          `json:"band"`
	Rate          decimal.Decimal `json:"rate"`
	AnnualPortion decimal.Decimal `json:"annualPortion"`
	PeriodAmount  decimal.Decimal `json:"periodAmount"`
}

// PayslipResult is the itemized outcome for one pay period. Currency fields
// are rounded to pence; PersonalAllowance is the annual figure.
type PayslipResult struct {
	EmployeeID        string                     `json:"employeeId"`
	TaxYear           string                     `json:"taxYear"`
	Frequency         PayFrequency               `json:"frequency"`
	AllowanceCode     string                     `json:"allowanceCode"`
	GrossPay          decimal.Decimal            `json:"grossPay"`
	TotalAllowances   decimal.Decimal            `json:"totalAllowances"`
	TaxableAllowances decimal.Decimal            `json:"taxableAllowances"`
	TotalDeductions   decimal.Decimal            `json:"totalDeductions"`
	PreTaxDeductions  decimal.Decimal            `json:"preTaxDeductions"`
	IncomeTax         decimal.Decimal            `json:"incomeTax"`
	NationalInsurance decimal.Decimal            `json:"nationalInsurance"`
	TotalTax          decimal.Decimal            `json:"totalTax"`
	NetPay            decimal.Decimal            `json:"netPay"`
	PersonalAllowance decimal.Decimal            `json:"personalAllowance"`
	Allowances        []Line                     `json:"allowances"`
	Deductions        []Line                     `json:"deductions"`
	Breakdown         map[string]decimal.Decimal `json:"breakdown"`
	Bands             []BandLine                 `json:"bands"`
}

type DeductionSummary struct {
	IncomeTax            decimal.Decimal `json:"incomeTax"`
	NationalInsurance    decimal.Decimal `json:"nationalInsurance"`
	PersonalAllowance    decimal.Decimal `json:"personalAllowance"`
	GrossSalaryForPeriod decimal.Decimal `json:"grossSalaryForPeriod"`
	NetSalary            decimal.Decimal `json:"netSalary"`
}

// BreakdownKey labels a band in PayslipResult.Breakdown.
func BreakdownKey(category, band string) string {
	return category + "." + band
}
