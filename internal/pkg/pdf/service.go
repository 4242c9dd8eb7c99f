// internal/pkg/pdf/service.go
package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/pkg/money"
)

// Service renders order invoices as PDF documents
type Service struct {
	config   *config.Config
	template *template.Template
}

// NewService creates a new PDF service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config:   cfg,
		template: template.Must(template.New("invoice").Parse(invoiceTemplate)),
	}
}

// InvoiceData represents the data passed to the invoice template
type InvoiceData struct {
	InvoiceNumber string
	InvoiceDate   string
	OrderNumber   string
	OrderDate     string
	PaymentMethod string
	Status        string
	Customer      CustomerInfo
	Company       CompanyInfo
	Lines         []InvoiceLine
	Subtotal      string
	Discount      string
	CouponCode    string
	TaxLabel      string
	Tax           string
	Total         string
	Currency      string
}

// InvoiceLine is one billed book
type InvoiceLine struct {
	Title     string
	Quantity  int
	UnitPrice string
	Total     string
}

// CustomerInfo represents the billed customer
type CustomerInfo struct {
	Name  string
	Email string
}

// CompanyInfo represents company information
type CompanyInfo struct {
	Name    string
	Address string
	Phone   string
	Email   string
	TaxID   string
}

// GenerateInvoice renders the invoice for a settled order. The order must
// carry its Lines and User.
func (s *Service) GenerateInvoice(o *order.Order) ([]byte, error) {
	html, err := s.RenderInvoiceHTML(o)
	if err != nil {
		return nil, err
	}

	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF generator: %w", err)
	}

	pdfg.Dpi.Set(300)
	pdfg.Orientation.Set(wkhtmltopdf.OrientationPortrait)
	pdfg.PageSize.Set(wkhtmltopdf.PageSizeLetter)

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.FooterRight.Set("[page]")
	page.FooterFontSize.Set(9)
	page.Zoom.Set(0.95)
	pdfg.AddPage(page)

	if err := pdfg.Create(); err != nil {
		return nil, fmt.Errorf("failed to create PDF: %w", err)
	}
	return pdfg.Bytes(), nil
}

// RenderInvoiceHTML renders the HTML page that GenerateInvoice converts
func (s *Service) RenderInvoiceHTML(o *order.Order) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.template.Execute(&buf, s.invoiceData(o)); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) invoiceData(o *order.Order) InvoiceData {
	issued := o.CreatedAt
	if o.PaidAt != nil {
		issued = *o.PaidAt
	}

	data := InvoiceData{
		InvoiceNumber: "INV-" + strings.TrimPrefix(o.OrderNumber, "ORD-"),
		InvoiceDate:   issued.Format("January 2, 2006"),
		OrderNumber:   o.OrderNumber,
		OrderDate:     o.CreatedAt.Format("January 2, 2006 15:04"),
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		Company: CompanyInfo{
			Name:    s.config.App.CompanyName,
			Address: s.config.App.CompanyAddress,
			Phone:   s.config.App.CompanyPhone,
			Email:   s.config.App.CompanyEmail,
			TaxID:   s.config.App.CompanyTaxID,
		},
		Subtotal: money.Format(o.Subtotal),
		TaxLabel: taxLabel(s.config.Store.TaxRateBasisPoints),
		Tax:      money.Format(o.TaxAmount),
		Total:    money.Format(o.Total),
		Currency: strings.ToUpper(s.config.Store.Currency),
	}
	if o.DiscountAmount > 0 {
		data.Discount = money.Format(o.DiscountAmount)
		data.CouponCode = o.CouponCode
	}
	if o.User != nil {
		data.Customer = CustomerInfo{Name: o.User.GetDisplayName(), Email: o.User.Email}
	}

	for _, l := range o.Lines {
		data.Lines = append(data.Lines, InvoiceLine{
			Title:     l.BookTitle,
			Quantity:  l.Quantity,
			UnitPrice: money.Format(l.UnitPrice),
			Total:     money.Format(l.LineTotal),
		})
	}
	return data
}

// taxLabel renders basis points as a percentage, e.g. 1600 -> "Tax (16%)"
func taxLabel(bps int64) string {
	if bps%100 == 0 {
		return fmt.Sprintf("Tax (%d%%)", bps/100)
	}
	return fmt.Sprintf("Tax (%d.%02d%%)", bps/100, bps%100)
}

const invoiceTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Invoice {{.InvoiceNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; color: #333; }
        .header { margin-bottom: 30px; border-bottom: 2px solid #eee; padding-bottom: 20px; overflow: hidden; }
        .company-info { float: left; width: 50%; }
        .invoice-info { float: right; width: 50%; text-align: right; }
        .invoice-title { font-size: 28px; font-weight: bold; color: #7c2d12; margin-bottom: 10px; }
        .section-title { font-size: 16px; font-weight: bold; margin-bottom: 10px; color: #374151; }
        .items-table { width: 100%; border-collapse: collapse; margin: 30px 0; }
        .items-table th, .items-table td { border: 1px solid #ddd; padding: 10px 8px; text-align: left; }
        .items-table th { background-color: #f8f9fa; }
        .items-table .num { text-align: right; width: 90px; }
        .totals { float: right; width: 300px; }
        .totals table { width: 100%; border-collapse: collapse; }
        .totals td { padding: 6px 8px; }
        .totals .amount { text-align: right; }
        .totals .grand-total td { font-weight: bold; font-size: 16px; border-top: 2px solid #333; }
        .footer { clear: both; margin-top: 60px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <div class="company-info">
            <div class="section-title">{{.Company.Name}}</div>
            {{if .Company.Address}}<div>{{.Company.Address}}</div>{{end}}
            {{if .Company.Phone}}<div>{{.Company.Phone}}</div>{{end}}
            {{if .Company.Email}}<div>{{.Company.Email}}</div>{{end}}
            {{if .Company.TaxID}}<div>Tax ID: {{.Company.TaxID}}</div>{{end}}
        </div>
        <div class="invoice-info">
            <div class="invoice-title">INVOICE</div>
            <div><strong>Invoice:</strong> {{.InvoiceNumber}}</div>
            <div><strong>Date:</strong> {{.InvoiceDate}}</div>
            <div><strong>Order:</strong> {{.OrderNumber}}</div>
            <div><strong>Ordered:</strong> {{.OrderDate}}</div>
        </div>
    </div>

    <div>
        <div class="section-title">Bill To</div>
        <div>{{.Customer.Name}}</div>
        <div>{{.Customer.Email}}</div>
        <div>Payment method: {{.PaymentMethod}}</div>
    </div>

    <table class="items-table">
        <thead>
            <tr>
                <th>Book</th>
                <th class="num">Qty</th>
                <th class="num">Unit Price</th>
                <th class="num">Total</th>
            </tr>
        </thead>
        <tbody>
            {{range .Lines}}
            <tr>
                <td>{{.Title}}</td>
                <td class="num">{{.Quantity}}</td>
                <td class="num">{{.UnitPrice}}</td>
                <td class="num">{{.Total}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>

    <div class="totals">
        <table>
            <tr><td>Subtotal</td><td class="amount">{{.Subtotal}}</td></tr>
            {{if .Discount}}<tr><td>Discount{{if .CouponCode}} ({{.CouponCode}}){{end}}</td><td class="amount">-{{.Discount}}</td></tr>{{end}}
            <tr><td>{{.TaxLabel}}</td><td class="amount">{{.Tax}}</td></tr>
            <tr class="grand-total"><td>Total ({{.Currency}})</td><td class="amount">{{.Total}}</td></tr>
        </table>
    </div>

    <div class="footer">
        Digital books are delivered as downloads from your account.
    </div>
</body>
</html>
`
