// Package testutil builds gorm handles over sqlmock for service tests.
package testutil

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/your-org/bookstore-backend/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMockDB returns a postgres-dialect gorm.DB backed by sqlmock. Expectations
// are checked when the test ends.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("gorm open: %v", err)
	}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("sql expectations: %v", err)
		}
		sqlDB.Close()
	})

	return db, mock
}

// Config returns a configuration with store defaults suitable for tests
func Config() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "Bookstore",
			Environment: "test",
			BaseURL:     "http://localhost:8080",
			CompanyName: "Libros Digitales",
		},
		JWT: config.JWTConfig{
			Secret:             "test-secret-that-is-long-enough-for-hs256",
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:            4,
			RateLimitPerMinute:    60,
			DownloadRatePerMinute: 10,
			DownloadBurst:         3,
		},
		Store: config.StoreConfig{
			TaxRateBasisPoints:   1600,
			Currency:             "mxn",
			PaymentProvider:      "simulated",
			DeliveryExpiryDays:   365,
			DeliveryMaxDownloads: 3,
			PendingOrderTTL:      24 * time.Hour,
			CatalogPageSize:      12,
			AdminPageSize:        20,
		},
		External: config.ExternalConfig{
			Stripe: config.StripeConfig{
				SecretKey:        "sk_test_123",
				WebhookSecret:    "whsec_test",
				APIBaseURL:       "http://stripe.invalid",
				SuccessURL:       "http://localhost:3000/orders/{ORDER_NUMBER}/success",
				CancelURL:        "http://localhost:3000/cart",
				WebhookTolerance: 5 * time.Minute,
			},
			Email: config.EmailConfig{
				Provider:  "log",
				FromEmail: "noreply@example.com",
				FromName:  "Libreria Digital",
			},
		},
	}
}
