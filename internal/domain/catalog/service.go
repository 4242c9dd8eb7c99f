// internal/domain/catalog/service.go
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/pkg/pagination"
	"gorm.io/gorm"
)

// purchasedStatuses are the order states that grant ownership of a book
var purchasedStatuses = []string{"paid", "processing", "completed"}

// Service handles catalog queries and book administration
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new catalog service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// BookListRequest represents public catalog filters
type BookListRequest struct {
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	CategoryID uint   `form:"category"`
	Query      string `form:"q"`
	PriceMin   *int64 `form:"price_min"`
	PriceMax   *int64 `form:"price_max"`
	Sort       string `form:"sort"` // recent, price_asc, price_desc, title
}

// AdminBookListRequest represents back-office book filters
type AdminBookListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Query string `form:"q"`
}

// BookCreateRequest represents book creation data
type BookCreateRequest struct {
	Title            string  `json:"title" binding:"required,max=200"`
	Author           string  `json:"author" binding:"required,max=150"`
	CategoryID       *uint   `json:"category_id"`
	Description      string  `json:"description" binding:"required"`
	ShortDescription string  `json:"short_description" binding:"max=300"`
	Price            int64   `json:"price" binding:"min=0"`
	DiscountPrice    *int64  `json:"discount_price" binding:"omitempty,min=0"`
	Format           string  `json:"format"`
	Pages            *int    `json:"pages"`
	ISBN             *string `json:"isbn" binding:"omitempty,max=20"`
	CoverURL         string  `json:"cover_url"`
	PreviewURL       string  `json:"preview_url"`
	Featured         bool    `json:"featured"`
	IsNew            *bool   `json:"is_new"`
	IsActive         *bool   `json:"is_active"`
	Slug             string  `json:"slug"`
	MetaDescription  string  `json:"meta_description" binding:"max=160"`
	MetaKeywords     string  `json:"meta_keywords" binding:"max=255"`
}

// BookUpdateRequest represents book update data
type BookUpdateRequest struct {
	Title            *string `json:"title" binding:"omitempty,max=200"`
	Author           *string `json:"author" binding:"omitempty,max=150"`
	CategoryID       *uint   `json:"category_id"`
	Description      *string `json:"description"`
	ShortDescription *string `json:"short_description" binding:"omitempty,max=300"`
	Price            *int64  `json:"price" binding:"omitempty,min=0"`
	DiscountPrice    *int64  `json:"discount_price" binding:"omitempty,min=0"`
	ClearDiscount    bool    `json:"clear_discount"`
	Format           *string `json:"format"`
	Pages            *int    `json:"pages"`
	ISBN             *string `json:"isbn" binding:"omitempty,max=20"`
	CoverURL         *string `json:"cover_url"`
	PreviewURL       *string `json:"preview_url"`
	Featured         *bool   `json:"featured"`
	IsNew            *bool   `json:"is_new"`
	IsActive         *bool   `json:"is_active"`
	MetaDescription  *string `json:"meta_description" binding:"omitempty,max=160"`
	MetaKeywords     *string `json:"meta_keywords" binding:"omitempty,max=255"`
}

// BookListResponse represents a page of books
type BookListResponse struct {
	Books      []Book                `json:"books"`
	Pagination pagination.Pagination `json:"pagination"`
}

// HomeResponse is the storefront landing payload
type HomeResponse struct {
	Featured   []Book     `json:"featured"`
	New        []Book     `json:"new"`
	OnOffer    []Book     `json:"on_offer"`
	Categories []Category `json:"categories"`
}

// BookDetail is a book plus everything the detail page shows
type BookDetail struct {
	Book             *Book         `json:"book"`
	Related          []Book        `json:"related"`
	AlreadyPurchased bool          `json:"already_purchased"`
	Reviews          []Review      `json:"reviews"`
	Rating           ReviewSummary `json:"rating"`
}

// Home returns the featured, new and discounted shelves
func (s *Service) Home() (*HomeResponse, error) {
	resp := &HomeResponse{}

	shelves := []struct {
		column string
		dest   *[]Book
	}{
		{"featured", &resp.Featured},
		{"is_new", &resp.New},
		{"on_offer", &resp.OnOffer},
	}
	for _, shelf := range shelves {
		err := s.db.Where(shelf.column+" = ? AND is_active = ?", true, true).
			Order("created_at DESC").
			Limit(8).
			Find(shelf.dest).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load %s books: %w", shelf.column, err)
		}
	}

	if err := s.db.Where("is_active = ?", true).Order("sort_order ASC, name ASC").Find(&resp.Categories).Error; err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	return resp, nil
}

// ListBooks returns active books matching the catalog filters
func (s *Service) ListBooks(req *BookListRequest) (*BookListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit, s.config.Store.CatalogPageSize)

	query := s.db.Model(&Book{}).Where("books.is_active = ?", true)

	if req.CategoryID != 0 {
		query = query.Where("books.category_id = ?", req.CategoryID)
	}

	if q := strings.TrimSpace(req.Query); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		query = query.
			Joins("LEFT JOIN categories ON categories.id = books.category_id").
			Where("LOWER(books.title) LIKE ? OR LOWER(books.author) LIKE ? OR LOWER(categories.name) LIKE ?", term, term, term)
	}

	if req.PriceMin != nil {
		query = query.Where("books.price >= ?", *req.PriceMin)
	}
	if req.PriceMax != nil {
		query = query.Where("books.price <= ?", *req.PriceMax)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	var books []Book
	err := query.Preload("Category").
		Order(catalogOrder(req.Sort)).
		Scopes(pagination.Scope(page, limit)).
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	return &BookListResponse{
		Books:      books,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

func catalogOrder(sort string) string {
	switch sort {
	case "price_asc":
		return "books.price ASC"
	case "price_desc":
		return "books.price DESC"
	case "title":
		return "books.title ASC"
	default:
		return "books.created_at DESC"
	}
}

// ListOffers returns active books currently on offer
func (s *Service) ListOffers(page, limit int) (*BookListResponse, error) {
	page, limit = pagination.Normalize(page, limit, s.config.Store.CatalogPageSize)

	query := s.db.Model(&Book{}).Where("on_offer = ? AND is_active = ?", true, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count offers: %w", err)
	}

	var books []Book
	if err := query.Order("created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	return &BookListResponse{
		Books:      books,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// GetActiveBook returns an active book by ID
func (s *Service) GetActiveBook(id uint) (*Book, error) {
	var book Book
	if err := s.db.Where("id = ? AND is_active = ?", id, true).First(&book).Error; err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return &book, nil
}

// GetBookBySlug returns any book by slug, active or not
func (s *Service) GetBookBySlug(slug string) (*Book, error) {
	var book Book
	if err := s.db.Preload("Category").Where("slug = ?", slug).First(&book).Error; err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}
	return &book, nil
}

// GetBookDetail returns an active book with related titles, approved reviews and,
// for a signed-in user, whether they already own it.
func (s *Service) GetBookDetail(slug string, userID *uint) (*BookDetail, error) {
	var book Book
	if err := s.db.Preload("Category").Where("slug = ? AND is_active = ?", slug, true).First(&book).Error; err != nil {
		return nil, notFound(err, ErrBookNotFound)
	}

	detail := &BookDetail{Book: &book}

	related := s.db.Where("id <> ? AND is_active = ?", book.ID, true)
	if book.CategoryID != nil {
		related = related.Where("category_id = ?", *book.CategoryID)
	} else {
		related = related.Where("category_id IS NULL")
	}
	if err := related.Order("created_at DESC").Limit(4).Find(&detail.Related).Error; err != nil {
		return nil, fmt.Errorf("failed to load related books: %w", err)
	}

	if userID != nil {
		owned, err := s.HasPurchased(*userID, book.ID)
		if err != nil {
			return nil, err
		}
		detail.AlreadyPurchased = owned
	}

	if err := s.db.Where("book_id = ? AND approved = ?", book.ID, true).Order("created_at DESC").Find(&detail.Reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}
	detail.Rating = summarize(detail.Reviews)

	return detail, nil
}

// HasPurchased reports whether userID holds a paid order containing bookID
func (s *Service) HasPurchased(userID, bookID uint) (bool, error) {
	var count int64
	err := s.db.Table("orders").
		Joins("JOIN order_lines ON order_lines.order_id = orders.id").
		Where("orders.user_id = ? AND order_lines.book_id = ? AND orders.status IN ?", userID, bookID, purchasedStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check purchase: %w", err)
	}
	return count > 0, nil
}

// AdminListBooks lists every book newest first, searchable by title, author or ISBN
func (s *Service) AdminListBooks(req *AdminBookListRequest) (*BookListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit, 15)

	query := s.db.Model(&Book{})
	if q := strings.TrimSpace(req.Query); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?", term, term, term)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	var books []Book
	if err := query.Preload("Category").Order("created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	return &BookListResponse{
		Books:      books,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

// CreateBook creates a book on behalf of a staff member
func (s *Service) CreateBook(createdBy uint, req *BookCreateRequest) (*Book, error) {
	format := FormatPDF
	if req.Format != "" {
		f, err := ParseFormat(req.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}

	if err := s.checkCategory(req.CategoryID); err != nil {
		return nil, err
	}
	if err := s.checkISBN(req.ISBN, 0); err != nil {
		return nil, err
	}

	base := req.Slug
	if base == "" {
		base = req.Title
	}
	slug, err := s.uniqueSlug(Slugify(base), 0)
	if err != nil {
		return nil, err
	}

	book := Book{
		Title:            strings.TrimSpace(req.Title),
		Author:           strings.TrimSpace(req.Author),
		CategoryID:       req.CategoryID,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Price:            req.Price,
		DiscountPrice:    req.DiscountPrice,
		Format:           format,
		Pages:            req.Pages,
		ISBN:             normalizeISBN(req.ISBN),
		CoverURL:         req.CoverURL,
		PreviewURL:       req.PreviewURL,
		Featured:         req.Featured,
		IsNew:            boolOr(req.IsNew, true),
		IsActive:         boolOr(req.IsActive, true),
		Slug:             slug,
		MetaDescription:  req.MetaDescription,
		MetaKeywords:     req.MetaKeywords,
		CreatedByID:      &createdBy,
	}

	if err := s.db.Create(&book).Error; err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	return s.GetBookBySlug(book.Slug)
}

// UpdateBook applies the non-nil fields of req. The book is saved through its
// hooks so the offer rule is re-evaluated on every change.
func (s *Service) UpdateBook(slug string, req *BookUpdateRequest) (*Book, error) {
	book, err := s.GetBookBySlug(slug)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		book.Author = strings.TrimSpace(*req.Author)
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(req.CategoryID); err != nil {
			return nil, err
		}
		book.CategoryID = req.CategoryID
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.ShortDescription != nil {
		book.ShortDescription = *req.ShortDescription
	}
	if req.Price != nil {
		book.Price = *req.Price
	}
	if req.ClearDiscount {
		book.DiscountPrice = nil
	} else if req.DiscountPrice != nil {
		book.DiscountPrice = req.DiscountPrice
	}
	if req.Format != nil {
		f, err := ParseFormat(*req.Format)
		if err != nil {
			return nil, err
		}
		book.Format = f
	}
	if req.Pages != nil {
		book.Pages = req.Pages
	}
	if req.ISBN != nil {
		if err := s.checkISBN(req.ISBN, book.ID); err != nil {
			return nil, err
		}
		book.ISBN = normalizeISBN(req.ISBN)
	}
	if req.CoverURL != nil {
		book.CoverURL = *req.CoverURL
	}
	if req.PreviewURL != nil {
		book.PreviewURL = *req.PreviewURL
	}
	if req.Featured != nil {
		book.Featured = *req.Featured
	}
	if req.IsNew != nil {
		book.IsNew = *req.IsNew
	}
	if req.IsActive != nil {
		book.IsActive = *req.IsActive
	}
	if req.MetaDescription != nil {
		book.MetaDescription = *req.MetaDescription
	}
	if req.MetaKeywords != nil {
		book.MetaKeywords = *req.MetaKeywords
	}

	book.Category = nil
	if err := s.db.Save(book).Error; err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	return s.GetBookBySlug(book.Slug)
}

// DeleteBook removes a book nobody has ordered. Order lines reference their
// book with ON DELETE RESTRICT, so a purchased book must be deactivated.
func (s *Service) DeleteBook(slug string) error {
	res := s.db.Where("slug = ?", slug).Delete(&Book{})
	if errors.Is(res.Error, gorm.ErrForeignKeyViolated) {
		return ErrBookPurchased
	}
	if res.Error != nil {
		return fmt.Errorf("failed to delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// AttachFile records the stored digital file of a book
func (s *Service) AttachFile(slug, key string, size int64, format Format) (*Book, error) {
	res := s.db.Model(&Book{}).Where("slug = ?", slug).Updates(map[string]interface{}{
		"file_key":        key,
		"file_size_bytes": size,
		"file_size":       HumanFileSize(size),
		"format":          format,
	})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to attach file: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrBookNotFound
	}
	return s.GetBookBySlug(slug)
}

// AttachCover records the public URL of a book cover
func (s *Service) AttachCover(slug, url string) (*Book, error) {
	res := s.db.Model(&Book{}).Where("slug = ?", slug).Update("cover_url", url)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to attach cover: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrBookNotFound
	}
	return s.GetBookBySlug(slug)
}

func (s *Service) checkCategory(id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := s.db.Model(&Category{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *Service) checkISBN(isbn *string, exceptID uint) error {
	normalized := normalizeISBN(isbn)
	if normalized == nil {
		return nil
	}
	var count int64
	if err := s.db.Model(&Book{}).Where("isbn = ? AND id <> ?", *normalized, exceptID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check isbn: %w", err)
	}
	if count > 0 {
		return ErrISBNExists
	}
	return nil
}

// uniqueSlug appends -2, -3, ... to base until no other book uses it
func (s *Service) uniqueSlug(base string, exceptID uint) (string, error) {
	if base == "" {
		base = "book"
	}
	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := s.db.Model(&Book{}).Where("slug = ? AND id <> ?", candidate, exceptID).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func normalizeISBN(isbn *string) *string {
	if isbn == nil {
		return nil
	}
	v := strings.TrimSpace(*isbn)
	if v == "" {
		return nil
	}
	return &v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("database error: %w", err)
}
