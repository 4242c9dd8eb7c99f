// internal/pkg/email/api_providers.go
package email

import (
	"context"
	"fmt"
	"net/http"
)

// ResendEmailRequest represents Resend API request
type ResendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

// Tag represents email tags for Resend
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SendGridEmailRequest represents SendGrid API request
type SendGridEmailRequest struct {
	Personalizations []SendGridPersonalization `json:"personalizations"`
	From             SendGridEmail             `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []SendGridContent         `json:"content"`
	ReplyTo          *SendGridEmail            `json:"reply_to,omitempty"`
	Categories       []string                  `json:"categories,omitempty"`
}

// SendGridPersonalization holds the recipients of a SendGrid message
type SendGridPersonalization struct {
	To  []SendGridEmail `json:"to"`
	CC  []SendGridEmail `json:"cc,omitempty"`
	BCC []SendGridEmail `json:"bcc,omitempty"`
}

// SendGridEmail is a SendGrid address
type SendGridEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SendGridContent is one body part
type SendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// MailerSendRequest represents MailerSend API request
type MailerSendRequest struct {
	From    MailerSendEmail   `json:"from"`
	To      []MailerSendEmail `json:"to"`
	CC      []MailerSendEmail `json:"cc,omitempty"`
	BCC     []MailerSendEmail `json:"bcc,omitempty"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	ReplyTo *MailerSendEmail  `json:"reply_to,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
}

// MailerSendEmail is a MailerSend address
type MailerSendEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// sendResendEmail sends email using Resend API
func (s *EmailService) sendResendEmail(ctx context.Context, email *Email) error {
	cfg := s.config.External.Email

	from := cfg.FromEmail
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail)
	}

	reqData := ResendEmailRequest{
		From:    from,
		To:      email.To,
		CC:      email.CC,
		BCC:     email.BCC,
		Subject: email.Subject,
		HTML:    email.HTMLContent,
		Text:    email.TextContent,
		ReplyTo: cfg.ReplyTo,
		Tags:    []Tag{{Name: "type", Value: string(email.Type)}},
	}

	return s.postJSON(ctx, "Resend", s.endpoints.Resend, reqData, http.StatusOK)
}

// sendSendGridEmail sends email using SendGrid API
func (s *EmailService) sendSendGridEmail(ctx context.Context, email *Email) error {
	cfg := s.config.External.Email

	var replyTo *SendGridEmail
	if cfg.ReplyTo != "" {
		replyTo = &SendGridEmail{Email: cfg.ReplyTo}
	}

	reqData := SendGridEmailRequest{
		Personalizations: []SendGridPersonalization{{
			To:  sendGridAddresses(email.To),
			CC:  sendGridAddresses(email.CC),
			BCC: sendGridAddresses(email.BCC),
		}},
		From:    SendGridEmail{Email: cfg.FromEmail, Name: cfg.FromName},
		Subject: email.Subject,
		Content: []SendGridContent{
			{Type: "text/html", Value: email.HTMLContent},
		},
		ReplyTo:    replyTo,
		Categories: []string{string(email.Type)},
	}

	return s.postJSON(ctx, "SendGrid", s.endpoints.SendGrid, reqData, http.StatusAccepted)
}

// sendMailerSendEmail sends email using MailerSend API
func (s *EmailService) sendMailerSendEmail(ctx context.Context, email *Email) error {
	cfg := s.config.External.Email

	var replyTo *MailerSendEmail
	if cfg.ReplyTo != "" {
		replyTo = &MailerSendEmail{Email: cfg.ReplyTo}
	}

	reqData := MailerSendRequest{
		From:    MailerSendEmail{Email: cfg.FromEmail, Name: cfg.FromName},
		To:      mailerSendAddresses(email.To),
		CC:      mailerSendAddresses(email.CC),
		BCC:     mailerSendAddresses(email.BCC),
		Subject: email.Subject,
		HTML:    email.HTMLContent,
		Text:    email.TextContent,
		ReplyTo: replyTo,
		Tags:    []string{string(email.Type)},
	}

	return s.postJSON(ctx, "MailerSend", s.endpoints.MailerSend, reqData, http.StatusAccepted)
}

func (s *EmailService) postJSON(ctx context.Context, provider, url string, body interface{}, want int) error {
	apiKey := s.config.External.Email.APIKey
	if apiKey == "" {
		return fmt.Errorf("%s API key not configured", provider)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", provider, err)
	}

	if resp.StatusCode() != want {
		return fmt.Errorf("%s API returned status %d: %s", provider, resp.StatusCode(), resp.String())
	}

	return nil
}

func sendGridAddresses(addrs []string) []SendGridEmail {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]SendGridEmail, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, SendGridEmail{Email: a})
	}
	return out
}

func mailerSendAddresses(addrs []string) []MailerSendEmail {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]MailerSendEmail, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, MailerSendEmail{Email: a})
	}
	return out
}
