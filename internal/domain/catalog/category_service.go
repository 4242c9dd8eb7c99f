// internal/domain/catalog/category_service.go
package catalog

import (
	"fmt"
	"strings"

	"github.com/your-org/bookstore-backend/internal/config"
	"gorm.io/gorm"
)

// CategoryService handles category business logic
type CategoryService struct {
	db     *gorm.DB
	config *config.Config
}

// NewCategoryService creates a new category service
func NewCategoryService(db *gorm.DB, cfg *config.Config) *CategoryService {
	return &CategoryService{
		db:     db,
		config: cfg,
	}
}

// CategoryCreateRequest represents category creation data
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Slug        string `json:"slug"`
	SortOrder   int    `json:"sort_order"`
	IsActive    *bool  `json:"is_active"`
}

// CategoryUpdateRequest represents category update data
type CategoryUpdateRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	SortOrder   *int    `json:"sort_order"`
	IsActive    *bool   `json:"is_active"`
}

// CategoryWithBookCount represents category with its number of active books
type CategoryWithBookCount struct {
	Category
	BookCount int64 `json:"book_count"`
}

// GetCategories returns categories ordered by sort order then name
func (s *CategoryService) GetCategories(includeInactive bool) ([]Category, error) {
	var categories []Category

	query := s.db.Model(&Category{}).Order("sort_order ASC, name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}

	return categories, nil
}

// GetCategoriesWithBookCount is the back-office category listing
func (s *CategoryService) GetCategoriesWithBookCount() ([]CategoryWithBookCount, error) {
	var rows []CategoryWithBookCount
	err := s.db.Model(&Category{}).
		Select("categories.*, COUNT(books.id) AS book_count").
		Joins("LEFT JOIN books ON books.category_id = categories.id AND books.is_active = ?", true).
		Group("categories.id").
		Order("categories.sort_order ASC, categories.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve categories: %w", err)
	}
	return rows, nil
}

// GetCategory returns a category by ID
func (s *CategoryService) GetCategory(id uint) (*Category, error) {
	var category Category
	if err := s.db.First(&category, id).Error; err != nil {
		return nil, notFound(err, ErrCategoryNotFound)
	}
	return &category, nil
}

// CreateCategory creates a new category
func (s *CategoryService) CreateCategory(req *CategoryCreateRequest) (*Category, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.checkName(name, 0); err != nil {
		return nil, err
	}

	slug := req.Slug
	if slug == "" {
		slug = name
	}

	category := Category{
		Name:        name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Slug:        Slugify(slug),
		SortOrder:   req.SortOrder,
		IsActive:    boolOr(req.IsActive, true),
	}

	if err := s.db.Create(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return &category, nil
}

// UpdateCategory updates an existing category
func (s *CategoryService) UpdateCategory(id uint, req *CategoryUpdateRequest) (*Category, error) {
	category, err := s.GetCategory(id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := s.checkName(name, id); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update category: %w", err)
		}
	}

	return s.GetCategory(id)
}

// DeleteCategory removes a category. Its books keep existing without one.
func (s *CategoryService) DeleteCategory(id uint) error {
	res := s.db.Delete(&Category{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete category: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *CategoryService) checkName(name string, exceptID uint) error {
	var count int64
	if err := s.db.Model(&Category{}).Where("LOWER(name) = LOWER(?) AND id <> ?", name, exceptID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check category name: %w", err)
	}
	if count > 0 {
		return ErrCategoryExists
	}
	return nil
}
