package payroll

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Sealer encrypts rendered documents at rest.
type Sealer interface {
	Configured() bool
	Encrypt(plain []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

type Documents struct {
	Dir    string
	Sealer Sealer
}

func NewDocuments(dir string, sealer Sealer) *Documents {
	return &Documents{Dir: dir, Sealer: sealer}
}

// Generate renders the payslip and writes it under Dir, sealed when a key is configured.
func (d *Documents) Generate(payslip StoredPayslip) (string, error) {
	var buf bytes.Buffer
	if err := RenderPayslipPDF(&buf, payslip); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", err
	}

	filePath := filepath.Join(d.Dir, payslip.ID+".pdf")
	data := buf.Bytes()
	if d.Sealer != nil && d.Sealer.Configured() {
		encrypted, err := d.Sealer.Encrypt(data)
		if err != nil {
			return "", err
		}
		filePath += ".enc"
		data = encrypted
	}
	if err := writeAtomic(filePath, data); err != nil {
		return "", err
	}
	return filePath, nil
}

// writeAtomic replaces path in one rename so concurrent renders of the same
// payslip never leave a half-written document behind.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Open returns the plain PDF bytes for a stored document path.
func (d *Documents) Open(path string) ([]byte, error) {
	if path == "" {
		return nil, ErrDocumentNotReady
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocumentNotReady
		}
		return nil, err
	}
	if strings.HasSuffix(path, ".enc") {
		if d.Sealer == nil || !d.Sealer.Configured() {
			return nil, fmt.Errorf("document %s is sealed and no key is configured", filepath.Base(path))
		}
		return d.Sealer.Decrypt(data)
	}
	return data, nil
}

func RenderPayslipPDF(w io.Writer, payslip StoredPayslip) error {
	result := payslip.Result

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", result.EmployeeID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Tax year: %s    Frequency: %s    Code: %s", result.TaxYear, result.Frequency, result.AllowanceCode))
	pdf.Ln(6)
	if payslip.PeriodStart != nil && payslip.PeriodEnd != nil {
		pdf.Cell(0, 7, fmt.Sprintf("Period: %s to %s", payslip.PeriodStart.Format("2006-01-02"), payslip.PeriodEnd.Format("2006-01-02")))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
	}
	row := func(label string, amount decimal.Decimal) {
		pdf.CellFormat(120, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, amount.StringFixed(CurrencyPlaces), "", 1, "R", false, 0, "")
	}

	section("Earnings")
	row("Gross pay", result.GrossPay)
	for _, line := range result.Allowances {
		row(line.Name, line.Amount)
	}

	section("Deductions")
	row("Income tax", result.IncomeTax)
	row("National insurance", result.NationalInsurance)
	for _, line := range result.Deductions {
		if line.Statutory {
			continue
		}
		row(line.Name, line.Amount)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(120, 8, "Net pay", "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, result.NetPay.StringFixed(CurrencyPlaces), "T", 1, "R", false, 0, "")

	return pdf.Output(w)
}
