// internal/domain/delivery/service.go
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// entitledStatuses are the order states under which deliveries are listed
var entitledStatuses = []string{"paid", "processing", "completed"}

// Service handles download entitlements
type Service struct {
	db      *gorm.DB
	config  *config.Config
	storage storage.Provider
}

// NewService creates a new delivery service
func NewService(db *gorm.DB, cfg *config.Config, store storage.Provider) *Service {
	return &Service{
		db:      db,
		config:  cfg,
		storage: store,
	}
}

// DeliveryView is a delivery as shown in "my downloads"
type DeliveryView struct {
	DigitalDelivery
	OrderNumber        string `json:"order_number"`
	DaysRemaining      int    `json:"days_remaining"`
	RemainingDownloads int    `json:"remaining_downloads"`
	IsValid            bool   `json:"is_valid"`
	DownloadURL        string `json:"download_url"`
}

// File is an opened book file ready to stream
type File struct {
	Reader      io.ReadCloser
	Size        int64
	Filename    string
	ContentType string
	Delivery    *DigitalDelivery
}

// Issue creates one delivery per book of an order inside tx. Existing
// (order, book) pairs are left untouched, so issuing twice is harmless.
func Issue(tx *gorm.DB, orderID, userID uint, bookIDs []uint, expiresAt time.Time, maxDownloads int) ([]DigitalDelivery, error) {
	seen := make(map[uint]bool, len(bookIDs))
	rows := make([]DigitalDelivery, 0, len(bookIDs))
	for _, bookID := range bookIDs {
		if seen[bookID] {
			continue
		}
		seen[bookID] = true
		rows = append(rows, DigitalDelivery{
			OrderID:      orderID,
			BookID:       bookID,
			UserID:       userID,
			ExpiresAt:    expiresAt,
			MaxDownloads: maxDownloads,
		})
	}

	if len(rows) > 0 {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "book_id"}},
			DoNothing: true,
		}).Create(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to issue deliveries: %w", err)
		}
	}

	var issued []DigitalDelivery
	if err := tx.Preload("Book").Where("order_id = ?", orderID).Order("id ASC").Find(&issued).Error; err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	return issued, nil
}

// Revoke expires every still-valid delivery of an order
func Revoke(tx *gorm.DB, orderID uint, now time.Time) (int64, error) {
	res := tx.Model(&DigitalDelivery{}).
		Where("order_id = ? AND expires_at > ?", orderID, now).
		Update("expires_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to revoke deliveries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListForOrder returns the deliveries of an order with their books
func ListForOrder(db *gorm.DB, orderID uint) ([]DigitalDelivery, error) {
	var out []DigitalDelivery
	if err := db.Preload("Book").Where("order_id = ?", orderID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	return out, nil
}

// ListMine returns the user's deliveries from paid orders, newest first
func (s *Service) ListMine(userID uint) ([]DeliveryView, error) {
	var deliveries []DigitalDelivery
	err := s.db.Preload("Book").
		Joins("JOIN orders ON orders.id = digital_deliveries.order_id").
		Where("digital_deliveries.user_id = ? AND orders.status IN ?", userID, entitledStatuses).
		Order("digital_deliveries.created_at DESC").
		Find(&deliveries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	numbers, err := s.orderNumbers(deliveries)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	views := make([]DeliveryView, 0, len(deliveries))
	for _, d := range deliveries {
		views = append(views, DeliveryView{
			DigitalDelivery:    d,
			OrderNumber:        numbers[d.OrderID],
			DaysRemaining:      d.DaysRemaining(now),
			RemainingDownloads: d.RemainingDownloads(),
			IsValid:            d.IsValidAt(now),
			DownloadURL:        d.DownloadURL(s.config.App.BaseURL),
		})
	}
	return views, nil
}

func (s *Service) orderNumbers(deliveries []DigitalDelivery) (map[uint]string, error) {
	out := make(map[uint]string)
	if len(deliveries) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(deliveries))
	for _, d := range deliveries {
		ids = append(ids, d.OrderID)
	}

	var rows []struct {
		ID          uint
		OrderNumber string
	}
	if err := s.db.Table("orders").Select("id, order_number").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load order numbers: %w", err)
	}
	for _, r := range rows {
		out[r.ID] = r.OrderNumber
	}
	return out, nil
}

// Consume records one download of token by userID from ip. The limit and
// expiry checks and the counter increment are a single conditional UPDATE.
func (s *Service) Consume(token string, userID uint, ip string) (*DigitalDelivery, error) {
	d, err := s.lookup(s.db, token, userID)
	if err != nil {
		return nil, err
	}
	if err := s.record(s.db, d, ip); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) lookup(db *gorm.DB, token string, userID uint) (*DigitalDelivery, error) {
	var d DigitalDelivery
	if err := db.Preload("Book").Where("token = ?", token).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.Download("not_found")
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to load delivery: %w", err)
	}

	if d.UserID != userID {
		metrics.Download("forbidden")
		return nil, ErrNotOwner
	}

	if d.Book == nil || d.Book.FileKey == "" {
		return nil, ErrFileMissing
	}
	return &d, nil
}

func (s *Service) record(db *gorm.DB, d *DigitalDelivery, ip string) error {
	now := time.Now().UTC()
	res := db.Model(&DigitalDelivery{}).
		Where("id = ? AND download_count < max_downloads AND expires_at > ?", d.ID, now).
		UpdateColumns(map[string]interface{}{
			"download_count":    gorm.Expr("download_count + 1"),
			"first_download_at": gorm.Expr("COALESCE(first_download_at, ?)", now),
			"last_download_at":  now,
			"last_download_ip":  ip,
			"updated_at":        now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record download: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.Download("denied")
		return ErrDownloadUnavailable
	}

	d.DownloadCount++
	if d.FirstDownloadAt == nil {
		d.FirstDownloadAt = &now
	}
	d.LastDownloadAt = &now
	d.LastDownloadIP = ip
	return nil
}

// Download opens the book file of token and then consumes one use. A file
// that cannot be opened does not use up a download.
func (s *Service) Download(ctx context.Context, token string, userID uint, ip string) (*File, error) {
	db := s.db.WithContext(ctx)

	d, err := s.lookup(db, token, userID)
	if err != nil {
		return nil, err
	}

	reader, size, err := s.storage.Open(ctx, d.Book.FileKey)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"delivery_id": d.ID,
			"book_id":     d.BookID,
			"file_key":    d.Book.FileKey,
		}).WithError(err).Error("Book file could not be opened")
		if errors.Is(err, storage.ErrObjectNotFound) {
			metrics.Download("file_missing")
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("failed to open book file: %w", err)
	}

	if err := s.record(db, d, ip); err != nil {
		reader.Close()
		return nil, err
	}

	metrics.Download("served")
	filename := d.Book.DownloadName()

	return &File{
		Reader:      reader,
		Size:        size,
		Filename:    filename,
		ContentType: storage.ContentType(filename),
		Delivery:    d,
	}, nil
}
