package payroll

import "context"

type StoreAPI interface {
	SavePayslip(ctx context.Context, tenantID, createdBy string, req PayslipRequest, result PayslipResult) (string, error)
	GetPayslip(ctx context.Context, tenantID, payslipID string) (StoredPayslip, error)
	CountPayslips(ctx context.Context, tenantID, employeeID string) (int, error)
	ListPayslips(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]StoredPayslip, error)
	UpdateDocumentPath(ctx context.Context, tenantID, payslipID, path string) error
}
