package payroll

import "errors"

var (
	ErrConfigNotFound           = errors.New("tax year configuration not found")
	ErrInvalidTaxYear           = errors.New("invalid tax year configuration")
	ErrInvalidRuleConfiguration = errors.New("invalid allowance or deduction rule")
	ErrNegativeInput            = errors.New("negative input rejected")
	ErrUnknownFrequency         = errors.New("unknown pay frequency")
	ErrInvalidAllowanceCode     = errors.New("invalid personal allowance code")
	ErrInvalidRequest           = errors.New("invalid payslip request")
	ErrPayslipNotFound          = errors.New("payslip not found")
	ErrDocumentNotReady         = errors.New("payslip document not generated yet")
)
