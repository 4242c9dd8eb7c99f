// internal/domain/user/admin_service.go
package user

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/pkg/pagination"
	"gorm.io/gorm"
)

// AdminService handles back-office user management
type AdminService struct {
	db     *gorm.DB
	config *config.Config
}

// NewAdminService creates a new admin user service
func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:     db,
		config: cfg,
	}
}

// UserListRequest represents user list query parameters
type UserListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Query string `form:"q"`
	Type  string `form:"type"` // customer, admin
}

// UserListResponse represents user list with pagination
type UserListResponse struct {
	Users      []UserWithStats       `json:"users"`
	Pagination pagination.Pagination `json:"pagination"`
}

// UserWithStats represents user with order statistics
type UserWithStats struct {
	User
	OrderCount  int64      `json:"order_count"`
	TotalSpent  int64      `json:"total_spent"`
	LastOrderAt *time.Time `json:"last_order_at"`
}

// AdminUpdateUserRequest is what staff may change on an account
type AdminUpdateUserRequest struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// GetUsers lists users newest first with search and type filters
func (s *AdminService) GetUsers(req *UserListRequest) (*UserListResponse, error) {
	page, limit := pagination.Normalize(req.Page, req.Limit, s.config.Store.AdminPageSize)

	query := s.db.Model(&User{})

	if q := strings.TrimSpace(req.Query); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(username) LIKE ?",
			term, term, term, term,
		)
	}

	switch req.Type {
	case "customer":
		query = query.Where("role = ?", RoleCustomer)
	case "admin":
		query = query.Where("role IN ?", []Role{RoleAdmin, RoleStaff})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var users []User
	if err := query.Order("created_at DESC").Scopes(pagination.Scope(page, limit)).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	stats, err := s.orderStats(users)
	if err != nil {
		return nil, err
	}

	result := make([]UserWithStats, 0, len(users))
	for _, u := range users {
		row := UserWithStats{User: u}
		if st, ok := stats[u.ID]; ok {
			row.OrderCount = st.OrderCount
			row.TotalSpent = st.TotalSpent
			row.LastOrderAt = st.LastOrderAt
		}
		result = append(result, row)
	}

	return &UserListResponse{
		Users:      result,
		Pagination: pagination.New(page, limit, total),
	}, nil
}

type userOrderStats struct {
	UserID      uint
	OrderCount  int64
	TotalSpent  int64
	LastOrderAt *time.Time
}

func (s *AdminService) orderStats(users []User) (map[uint]userOrderStats, error) {
	out := make(map[uint]userOrderStats, len(users))
	if len(users) == 0 {
		return out, nil
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	var rows []userOrderStats
	err := s.db.Table("orders").
		Select(`user_id,
			COUNT(*) AS order_count,
			COALESCE(SUM(CASE WHEN paid THEN total ELSE 0 END), 0) AS total_spent,
			MAX(created_at) AS last_order_at`).
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order stats: %w", err)
	}

	for _, r := range rows {
		out[r.UserID] = r
	}
	return out, nil
}

// GetUser returns a single account
func (s *AdminService) GetUser(userID uint) (*UserWithStats, error) {
	var u User
	if err := s.db.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	stats, err := s.orderStats([]User{u})
	if err != nil {
		return nil, err
	}
	st := stats[u.ID]

	return &UserWithStats{
		User:        u,
		OrderCount:  st.OrderCount,
		TotalSpent:  st.TotalSpent,
		LastOrderAt: st.LastOrderAt,
	}, nil
}

// UpdateUser changes role and active flag. Staff cannot demote or deactivate themselves.
func (s *AdminService) UpdateUser(actorID, userID uint, req *AdminUpdateUserRequest) (*UserWithStats, error) {
	updates := map[string]interface{}{}

	if req.Role != nil {
		role, err := ParseRole(*req.Role)
		if err != nil {
			return nil, err
		}
		if actorID == userID && role == RoleCustomer {
			return nil, ErrSelfModification
		}
		updates["role"] = role
	}
	if req.IsActive != nil {
		if actorID == userID && !*req.IsActive {
			return nil, fmt.Errorf("%w: cannot deactivate your own account", ErrSelfModification)
		}
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		res := s.db.Model(&User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, ErrUserNotFound
		}
	}

	return s.GetUser(userID)
}

// DeleteUser removes an account and, through foreign keys, its cart, wishlist and reviews
func (s *AdminService) DeleteUser(actorID, userID uint) error {
	if actorID == userID {
		return fmt.Errorf("%w: cannot delete your own account", ErrSelfModification)
	}

	res := s.db.Delete(&User{}, userID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountUsers returns the number of accounts
func (s *AdminService) CountUsers() (int64, error) {
	var total int64
	err := s.db.Model(&User{}).Count(&total).Error
	return total, err
}
