package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StoredPayslip struct {
	ID            string        `json:"id"`
	EmployeeID    string        `json:"employeeId"`
	TaxYear       string        `json:"taxYear"`
	Frequency     PayFrequency  `json:"frequency"`
	AllowanceCode string        `json:"allowanceCode"`
	PeriodStart   *time.Time    `json:"periodStart,omitempty"`
	PeriodEnd     *time.Time    `json:"periodEnd,omitempty"`
	Result        PayslipResult `json:"result"`
	DocumentPath  string        `json:"-"`
	HasDocument   bool          `json:"hasDocument"`
	CreatedBy     string        `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) SavePayslip(ctx context.Context, tenantID, createdBy string, req PayslipRequest, result PayslipResult) (string, error) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.DB.Exec(ctx, `
    INSERT INTO payslip_calculations (
      id, tenant_id, employee_id, tax_year, frequency, allowance_code, period_start, period_end,
      gross, total_allowances, total_deductions, income_tax, national_insurance, net, personal_allowance,
      result_json, created_by
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13::numeric,$14::numeric,$15::numeric,$16,$17)
  `, id, tenantID, result.EmployeeID, result.TaxYear, string(result.Frequency), result.AllowanceCode,
		nullTime(req.PeriodStart), nullTime(req.PeriodEnd),
		result.GrossPay.String(), result.TotalAllowances.String(), result.TotalDeductions.String(),
		result.IncomeTax.String(), result.NationalInsurance.String(), result.NetPay.String(), result.PersonalAllowance.String(),
		resultJSON, createdBy)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetPayslip(ctx context.Context, tenantID, payslipID string) (StoredPayslip, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id::text, employee_id, tax_year, frequency, allowance_code, period_start, period_end,
           result_json, document_path, created_by, created_at
    FROM payslip_calculations
    WHERE tenant_id = $1 AND id::text = $2
  `, tenantID, payslipID)
	payslip, err := scanPayslip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StoredPayslip{}, ErrPayslipNotFound
	}
	return payslip, err
}

func (s *Store) CountPayslips(ctx context.Context, tenantID, employeeID string) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM payslip_calculations
    WHERE tenant_id = $1 AND ($2 = '' OR employee_id = $2)
  `, tenantID, employeeID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListPayslips(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]StoredPayslip, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, employee_id, tax_year, frequency, allowance_code, period_start, period_end,
           result_json, document_path, created_by, created_at
    FROM payslip_calculations
    WHERE tenant_id = $1 AND ($2 = '' OR employee_id = $2)
    ORDER BY created_at DESC
    LIMIT $3 OFFSET $4
  `, tenantID, employeeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payslips []StoredPayslip
	for rows.Next() {
		payslip, err := scanPayslip(rows)
		if err != nil {
			return nil, err
		}
		payslips = append(payslips, payslip)
	}
	return payslips, rows.Err()
}

func (s *Store) UpdateDocumentPath(ctx context.Context, tenantID, payslipID, path string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payslip_calculations SET document_path = $3
    WHERE tenant_id = $1 AND id::text = $2
  `, tenantID, payslipID, path)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPayslipNotFound
	}
	return nil
}

func scanPayslip(row pgx.Row) (StoredPayslip, error) {
	var payslip StoredPayslip
	var frequency string
	var resultJSON []byte
	if err := row.Scan(&payslip.ID, &payslip.EmployeeID, &payslip.TaxYear, &frequency, &payslip.AllowanceCode,
		&payslip.PeriodStart, &payslip.PeriodEnd, &resultJSON, &payslip.DocumentPath, &payslip.CreatedBy, &payslip.CreatedAt); err != nil {
		return StoredPayslip{}, err
	}
	payslip.Frequency = PayFrequency(frequency)
	payslip.HasDocument = payslip.DocumentPath != ""
	if err := json.Unmarshal(resultJSON, &payslip.Result); err != nil {
		return StoredPayslip{}, fmt.Errorf("decode payslip %s: %w", payslip.ID, err)
	}
	return payslip, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
