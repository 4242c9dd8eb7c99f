// cmd/mailcheck/main.go
package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/pkg/email"
)

// Sends a welcome email through the configured provider to check delivery.
func main() {
	to := flag.String("to", "", "recipient address")
	name := flag.String("name", "Reader", "recipient display name")
	flag.Parse()

	if *to == "" {
		logrus.Fatal("Usage: mailcheck -to someone@example.com")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	mailer := email.NewEmailService(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mailer.SendWelcomeEmail(ctx, *to, *name); err != nil {
		logrus.Fatalf("Send failed: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"provider": cfg.External.Email.Provider,
		"to":       *to,
	}).Info("✅ Email sent successfully!")
}
