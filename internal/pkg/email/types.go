// internal/pkg/email/types.go
package email

import (
	"time"
)

// EmailType represents the type of email being sent
type EmailType string

const (
	EmailTypeWelcome           EmailType = "welcome"
	EmailTypeOrderConfirmation EmailType = "order_confirmation"
	EmailTypeOrderStatusUpdate EmailType = "order_status_update"
)

// Email represents an email message
type Email struct {
	To          []string               `json:"to"`
	CC          []string               `json:"cc,omitempty"`
	BCC         []string               `json:"bcc,omitempty"`
	Subject     string                 `json:"subject"`
	HTMLContent string                 `json:"html_content"`
	TextContent string                 `json:"text_content,omitempty"`
	Type        EmailType              `json:"type"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// EmailTemplateData contains common data for all email templates
type EmailTemplateData struct {
	SiteName   string `json:"site_name"`
	SiteURL    string `json:"site_url"`
	SupportURL string `json:"support_url"`
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
	Year       int    `json:"year"`
}

// WelcomeEmailData contains data for welcome email
type WelcomeEmailData struct {
	EmailTemplateData
	CatalogURL string `json:"catalog_url"`
}

// OrderConfirmationData contains data for the "your books are ready" email.
// Amounts are preformatted strings.
type OrderConfirmationData struct {
	EmailTemplateData
	OrderNumber   string         `json:"order_number"`
	OrderDate     string         `json:"order_date"`
	PaymentMethod string         `json:"payment_method"`
	Subtotal      string         `json:"subtotal"`
	Discount      string         `json:"discount,omitempty"`
	CouponCode    string         `json:"coupon_code,omitempty"`
	Tax           string         `json:"tax"`
	Total         string         `json:"total"`
	OrderURL      string         `json:"order_url"`
	DownloadsURL  string         `json:"downloads_url"`
	Items         []OrderItem    `json:"items"`
	Downloads     []DownloadLink `json:"downloads"`
}

// OrderItem represents a purchased line
type OrderItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// DownloadLink is one tokenized download granted by the order
type DownloadLink struct {
	Title        string `json:"title"`
	Format       string `json:"format"`
	URL          string `json:"url"`
	ExpiresAt    string `json:"expires_at"`
	MaxDownloads int    `json:"max_downloads"`
}

// OrderStatusUpdateData contains data for order status updates
type OrderStatusUpdateData struct {
	EmailTemplateData
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Comment       string `json:"comment,omitempty"`
	OrderURL      string `json:"order_url"`
}

// StatusMessage returns the customer-facing sentence for an order status
func StatusMessage(status string) string {
	switch status {
	case "paid":
		return "We received your payment. Your books are ready to download."
	case "processing":
		return "Your order is being processed."
	case "completed":
		return "Your order is complete. Thank you for reading with us."
	case "refunded":
		return "Your order has been refunded. Download links for this order are no longer active."
	case "cancelled":
		return "Your order has been cancelled."
	default:
		return "Your order status has changed."
	}
}

// GetBaseTemplateData returns common template data
func GetBaseTemplateData(siteName, siteURL, userName, userEmail string) EmailTemplateData {
	return EmailTemplateData{
		SiteName:   siteName,
		SiteURL:    siteURL,
		SupportURL: siteURL + "/support",
		UserName:   userName,
		UserEmail:  userEmail,
		Year:       time.Now().Year(),
	}
}
