// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

var templateNames = []string{
	string(EmailTypeWelcome),
	string(EmailTypeOrderConfirmation),
	string(EmailTypeOrderStatusUpdate),
}

// providerEndpoints holds the API URLs of the HTTP providers
type providerEndpoints struct {
	Resend     string
	SendGrid   string
	MailerSend string
}

var defaultEndpoints = providerEndpoints{
	Resend:     "https://api.resend.com/emails",
	SendGrid:   "https://api.sendgrid.com/v3/mail/send",
	MailerSend: "https://api.mailersend.com/v1/email",
}

// EmailService handles all email operations
type EmailService struct {
	config    *config.Config
	templates map[string]*template.Template
	client    *resty.Client
	endpoints providerEndpoints
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config) *EmailService {
	service := &EmailService{
		config:    cfg,
		templates: make(map[string]*template.Template),
		client:    resty.New().SetTimeout(30 * time.Second),
		endpoints: defaultEndpoints,
	}

	service.loadTemplates()

	return service
}

// SendEmail sends an email using the configured provider
func (s *EmailService) SendEmail(ctx context.Context, email *Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	switch s.config.External.Email.Provider {
	case "log":
		s.logEmail(email)
		return nil
	case "smtp":
		return s.sendSMTPEmail(email)
	case "resend":
		return s.sendResendEmail(ctx, email)
	case "sendgrid":
		return s.sendSendGridEmail(ctx, email)
	case "mailersend":
		return s.sendMailerSendEmail(ctx, email)
	default:
		return fmt.Errorf("unsupported email provider: %s", s.config.External.Email.Provider)
	}
}

// SendWelcomeEmail greets a newly registered customer
func (s *EmailService) SendWelcomeEmail(ctx context.Context, userEmail, userName string) error {
	data := WelcomeEmailData{
		EmailTemplateData: s.baseData(userName, userEmail),
		CatalogURL:        s.config.App.BaseURL + "/books",
	}

	htmlContent, err := s.renderTemplate(string(EmailTypeWelcome), data)
	if err != nil {
		return fmt.Errorf("failed to render welcome email template: %w", err)
	}

	return s.SendEmail(ctx, &Email{
		To:          []string{userEmail},
		Subject:     fmt.Sprintf("Welcome to %s!", s.config.External.Email.FromName),
		HTMLContent: htmlContent,
		Type:        EmailTypeWelcome,
		Data:        map[string]interface{}{"user_name": userName},
	})
}

// SendOrderConfirmationEmail sends the paid-order email with download links
func (s *EmailService) SendOrderConfirmationEmail(ctx context.Context, data OrderConfirmationData) error {
	data.EmailTemplateData = s.baseData(data.UserName, data.UserEmail)
	if data.OrderURL == "" {
		data.OrderURL = fmt.Sprintf("%s/orders/%s", s.config.App.BaseURL, data.OrderNumber)
	}
	if data.DownloadsURL == "" {
		data.DownloadsURL = s.config.App.BaseURL + "/downloads"
	}

	htmlContent, err := s.renderTemplate(string(EmailTypeOrderConfirmation), data)
	if err != nil {
		return fmt.Errorf("failed to render order confirmation template: %w", err)
	}

	return s.SendEmail(ctx, &Email{
		To:          []string{data.UserEmail},
		Subject:     fmt.Sprintf("Your books are ready - %s", data.OrderNumber),
		HTMLContent: htmlContent,
		Type:        EmailTypeOrderConfirmation,
		Data: map[string]interface{}{
			"order_number": data.OrderNumber,
			"order_total":  data.Total,
			"downloads":    len(data.Downloads),
		},
	})
}

// SendOrderStatusUpdateEmail sends order status update notification
func (s *EmailService) SendOrderStatusUpdateEmail(ctx context.Context, data OrderStatusUpdateData) error {
	data.EmailTemplateData = s.baseData(data.UserName, data.UserEmail)
	if data.StatusMessage == "" {
		data.StatusMessage = StatusMessage(data.Status)
	}
	if data.OrderURL == "" {
		data.OrderURL = fmt.Sprintf("%s/orders/%s", s.config.App.BaseURL, data.OrderNumber)
	}

	htmlContent, err := s.renderTemplate(string(EmailTypeOrderStatusUpdate), data)
	if err != nil {
		return fmt.Errorf("failed to render order status update template: %w", err)
	}

	return s.SendEmail(ctx, &Email{
		To:          []string{data.UserEmail},
		Subject:     fmt.Sprintf("Order Update - %s", data.OrderNumber),
		HTMLContent: htmlContent,
		Type:        EmailTypeOrderStatusUpdate,
		Data: map[string]interface{}{
			"order_number": data.OrderNumber,
			"status":       data.Status,
		},
	})
}

func (s *EmailService) baseData(userName, userEmail string) EmailTemplateData {
	return GetBaseTemplateData(s.config.External.Email.FromName, s.config.App.BaseURL, userName, userEmail)
}

// loadTemplates prefers files in the configured template directory and
// falls back to the embedded set
func (s *EmailService) loadTemplates() {
	dir := s.config.External.Email.TemplateDir

	for _, name := range templateNames {
		if dir != "" {
			tmpl, err := template.ParseFiles(filepath.Join(dir, name+".html"))
			if err == nil {
				s.templates[name] = tmpl
				continue
			}
			logrus.WithField("template", name).WithError(err).Warn("Could not load email template, using built-in")
		}

		tmpl, err := template.ParseFS(builtinTemplates, "templates/"+name+".html")
		if err != nil {
			logrus.WithField("template", name).WithError(err).Error("Built-in email template is invalid")
			s.templates[name] = s.createFallbackTemplate(name)
			continue
		}
		s.templates[name] = tmpl
	}
}

// renderTemplate renders an email template with data
func (s *EmailService) renderTemplate(templateName string, data interface{}) (string, error) {
	tmpl, exists := s.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// createFallbackTemplate creates a basic HTML template as fallback
func (s *EmailService) createFallbackTemplate(name string) *template.Template {
	basicTemplate := `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.SiteName}}</title></head>
<body style="font-family: Arial, sans-serif;">
    <p>Hello {{.UserName}},</p>
    <p>This is a notification from {{.SiteName}}.</p>
    <p>Best regards,<br>{{.SiteName}} Team</p>
</body>
</html>`

	return template.Must(template.New(name).Parse(basicTemplate))
}

// logEmail is the development provider: the message is written to the log
func (s *EmailService) logEmail(email *Email) {
	logrus.WithFields(logrus.Fields{
		"to":      strings.Join(email.To, ", "),
		"subject": email.Subject,
		"type":    email.Type,
		"data":    email.Data,
	}).Info("Email not sent (log provider)")
}
