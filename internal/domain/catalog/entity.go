// internal/domain/catalog/entity.go
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Format is the file format of a digital book
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
	FormatMOBI Format = "mobi"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrReviewNotFound   = errors.New("review not found")
	ErrDuplicateReview  = errors.New("you have already reviewed this book")
	ErrInvalidFormat    = errors.New("unsupported book format")
	ErrCategoryExists   = errors.New("category with this name already exists")
	ErrISBNExists       = errors.New("book with this ISBN already exists")
	ErrBookPurchased    = errors.New("book has been purchased and can only be deactivated")
)

// ParseFormat accepts a format name or file extension
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")); f {
	case FormatPDF, FormatEPUB, FormatMOBI:
		return f, nil
	default:
		return "", ErrInvalidFormat
	}
}

// Category groups books
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Slug        string    `gorm:"uniqueIndex;not null;size:120" json:"slug"`
	ImageURL    string    `gorm:"size:500" json:"image_url"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	SortOrder   int       `gorm:"default:0" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Book is a digital product. Prices are in cents.
type Book struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Title            string    `gorm:"not null;size:200;index" json:"title"`
	Author           string    `gorm:"not null;size:150;index" json:"author"`
	CategoryID       *uint     `gorm:"index" json:"category_id"`
	Description      string    `gorm:"type:text;not null" json:"description"`
	ShortDescription string    `gorm:"size:300" json:"short_description"`
	Price            int64     `gorm:"not null;index;check:price >= 0" json:"price"`
	DiscountPrice    *int64    `gorm:"check:discount_price >= 0" json:"discount_price"`
	OnOffer          bool      `gorm:"default:false;index" json:"on_offer"`
	Format           Format    `gorm:"size:10;not null;default:'pdf'" json:"format"`
	FileKey          string    `gorm:"size:500" json:"-"`
	FileSizeBytes    int64     `json:"-"`
	FileSize         string    `gorm:"size:20" json:"file_size"`
	Pages            *int      `json:"pages"`
	ISBN             *string   `gorm:"uniqueIndex;size:20" json:"isbn"`
	CoverURL         string    `gorm:"size:500" json:"cover_url"`
	PreviewURL       string    `gorm:"size:500" json:"preview_url"`
	Featured         bool      `gorm:"default:false;index" json:"featured"`
	IsNew            bool      `gorm:"default:true" json:"is_new"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	UnlimitedStock   bool      `gorm:"default:true" json:"unlimited_stock"`
	Slug             string    `gorm:"uniqueIndex;not null;size:220" json:"slug"`
	MetaDescription  string    `gorm:"size:160" json:"meta_description"`
	MetaKeywords     string    `gorm:"size:255" json:"meta_keywords"`
	CreatedByID      *uint     `gorm:"index" json:"created_by_id"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category,omitempty"`
}

// Review is a customer's rating of a book. Only approved reviews are public.
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    uint      `gorm:"not null;uniqueIndex:idx_reviews_book_user" json:"book_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_reviews_book_user;index" json:"user_id"`
	Rating    int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	Approved  bool      `gorm:"default:false;index" json:"approved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Book *Book `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE;" json:"book,omitempty"`
}

func (Category) TableName() string { return "categories" }
func (Book) TableName() string     { return "books" }
func (Review) TableName() string   { return "reviews" }

// BeforeSave fills the category slug
func (c *Category) BeforeSave(tx *gorm.DB) error {
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return nil
}

// BeforeSave enforces the offer rule and the digital-stock invariant
func (b *Book) BeforeSave(tx *gorm.DB) error {
	if b.Slug == "" {
		b.Slug = Slugify(b.Title)
	}
	if b.Format == "" {
		b.Format = FormatPDF
	}
	b.UnlimitedStock = true
	b.ApplyOfferRule()
	return nil
}

// ApplyOfferRule sets OnOffer iff the discount price is positive and below the list price,
// and clears the discount otherwise.
func (b *Book) ApplyOfferRule() {
	if b.DiscountPrice != nil && *b.DiscountPrice > 0 && *b.DiscountPrice < b.Price {
		b.OnOffer = true
		return
	}
	b.OnOffer = false
	b.DiscountPrice = nil
}

// CurrentPrice is the price a customer pays now
func (b *Book) CurrentPrice() int64 {
	if b.OnOffer && b.DiscountPrice != nil {
		return *b.DiscountPrice
	}
	return b.Price
}

// DiscountPercentage is the whole-percent saving while on offer
func (b *Book) DiscountPercentage() int {
	if b.OnOffer && b.DiscountPrice != nil && b.Price > 0 {
		return int((b.Price - *b.DiscountPrice) * 100 / b.Price)
	}
	return 0
}

// DownloadName is the attachment filename served for the book
func (b *Book) DownloadName() string {
	return fmt.Sprintf("%s.%s", b.Slug, b.Format)
}

// HumanFileSize renders a byte count as "1.5 MB"
func HumanFileSize(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.1f TB", value)
}
