// internal/domain/delivery/entity.go
package delivery

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"gorm.io/gorm"
)

var (
	ErrDeliveryNotFound    = errors.New("download link not found")
	ErrNotOwner            = errors.New("this download link belongs to another account")
	ErrDownloadUnavailable = errors.New("download link has expired or reached its download limit")
	ErrFileMissing         = errors.New("the file for this book is not available yet")
)

// DigitalDelivery grants a user time- and count-limited access to the file of
// one book in a paid order.
type DigitalDelivery struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OrderID         uint       `gorm:"not null;uniqueIndex:idx_deliveries_order_book" json:"order_id"`
	BookID          uint       `gorm:"not null;uniqueIndex:idx_deliveries_order_book;index" json:"book_id"`
	UserID          uint       `gorm:"not null;index" json:"user_id"`
	Token           string     `gorm:"uniqueIndex;not null;size:36" json:"token"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expires_at"`
	MaxDownloads    int        `gorm:"not null;default:3" json:"max_downloads"`
	DownloadCount   int        `gorm:"not null;default:0" json:"download_count"`
	FirstDownloadAt *time.Time `json:"first_download_at"`
	LastDownloadAt  *time.Time `json:"last_download_at"`
	LastDownloadIP  string     `gorm:"size:45" json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Book *catalog.Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE;" json:"book,omitempty"`
}

// TableName overrides the table name
func (DigitalDelivery) TableName() string {
	return "digital_deliveries"
}

// BeforeCreate assigns the download token
func (d *DigitalDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.Token == "" {
		d.Token = uuid.New().String()
	}
	return nil
}

// IsValidAt reports whether the link can still be used at t
func (d *DigitalDelivery) IsValidAt(t time.Time) bool {
	return t.Before(d.ExpiresAt) && d.DownloadCount < d.MaxDownloads
}

// DaysRemaining is the number of whole days until expiry, never negative
func (d *DigitalDelivery) DaysRemaining(t time.Time) int {
	if !t.Before(d.ExpiresAt) {
		return 0
	}
	return int(d.ExpiresAt.Sub(t) / (24 * time.Hour))
}

// RemainingDownloads is how many downloads are left
func (d *DigitalDelivery) RemainingDownloads() int {
	if d.DownloadCount >= d.MaxDownloads {
		return 0
	}
	return d.MaxDownloads - d.DownloadCount
}

// DownloadURL is the API address that serves the file
func (d *DigitalDelivery) DownloadURL(baseURL string) string {
	return fmt.Sprintf("%s/api/v1/downloads/%s", strings.TrimRight(baseURL, "/"), d.Token)
}
