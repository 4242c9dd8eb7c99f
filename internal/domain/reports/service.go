// internal/domain/reports/service.go
package reports

import (
	"errors"
	"fmt"
	"time"

	"github.com/your-org/bookstore-backend/internal/domain/order"
	"gorm.io/gorm"
)

var ErrInvalidDateRange = errors.New("invalid date range")

// DateLayout is the accepted format of report date filters
const DateLayout = "2006-01-02"

// revenueStatuses are the order states counted as sales
var revenueStatuses = []order.Status{order.StatusPaid, order.StatusProcessing, order.StatusCompleted}

// Service builds the back-office reports
type Service struct {
	db *gorm.DB
}

// NewService creates a new reports service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DashboardStats represents overall dashboard statistics
type DashboardStats struct {
	TotalRevenue     int64         `json:"total_revenue"` // In cents
	RevenueThisMonth int64         `json:"revenue_this_month"`
	TotalOrders      int64         `json:"total_orders"`
	PendingOrders    int64         `json:"pending_orders"`
	TotalUsers       int64         `json:"total_users"`
	AvgOrderValue    int64         `json:"avg_order_value"`
	RecentOrders     []order.Order `json:"recent_orders"`
}

// SalesReport represents sales over a date range
type SalesReport struct {
	StartDate    string           `json:"start_date,omitempty"`
	EndDate      string           `json:"end_date,omitempty"`
	TotalRevenue int64            `json:"total_revenue"`
	TotalOrders  int64            `json:"total_orders"`
	DailySales   []TimeSeriesData `json:"daily_sales"`
	TopBooks     []BookSalesData  `json:"top_books"`
	TopCustomers []CustomerData   `json:"top_customers"`
}

// Supporting data structures
type TimeSeriesData struct {
	Date  string `json:"date"`
	Total int64  `json:"total"`
	Count int64  `json:"count"`
}

type BookSalesData struct {
	BookID    uint   `json:"book_id"`
	Title     string `json:"title"`
	UnitsSold int64  `json:"units_sold"`
	Revenue   int64  `json:"revenue"`
}

type CustomerData struct {
	UserID     uint   `json:"user_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	TotalSpent int64  `json:"total_spent"`
	OrderCount int64  `json:"order_count"`
}

// SalesFilter bounds a sales report. Both dates are inclusive days.
type SalesFilter struct {
	Start *time.Time
	End   *time.Time
}

// ParseSalesFilter reads YYYY-MM-DD bounds; empty values leave a side open
func ParseSalesFilter(start, end string) (SalesFilter, error) {
	var f SalesFilter
	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return f, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidDateRange)
		}
		f.Start = &t
	}
	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return f, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidDateRange)
		}
		f.End = &t
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return f, fmt.Errorf("%w: end_date is before start_date", ErrInvalidDateRange)
	}
	return f, nil
}

// GetDashboardStats retrieves overall dashboard statistics
func (s *Service) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{}
	now := time.Now().UTC()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	if err := s.db.Raw("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status IN ?", revenueStatuses).
		Scan(&stats.TotalRevenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if err := s.db.Raw("SELECT COALESCE(SUM(total), 0) FROM orders WHERE status IN ? AND created_at >= ?", revenueStatuses, thisMonth).
		Scan(&stats.RevenueThisMonth).Error; err != nil {
		return nil, fmt.Errorf("failed to sum monthly revenue: %w", err)
	}
	if err := s.db.Raw("SELECT COUNT(*) FROM orders").Scan(&stats.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	if err := s.db.Raw("SELECT COUNT(*) FROM orders WHERE status = ?", order.StatusPendingPayment).
		Scan(&stats.PendingOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending orders: %w", err)
	}
	if err := s.db.Raw("SELECT COUNT(*) FROM users").Scan(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	var paidOrders int64
	if err := s.db.Raw("SELECT COUNT(*) FROM orders WHERE status IN ?", revenueStatuses).
		Scan(&paidOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count paid orders: %w", err)
	}
	if paidOrders > 0 {
		stats.AvgOrderValue = stats.TotalRevenue / paidOrders
	}

	if err := s.db.Preload("User").Order("created_at DESC").Limit(5).
		Find(&stats.RecentOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent orders: %w", err)
	}

	return stats, nil
}

// GetSalesReport aggregates sales in the filter's range
func (s *Service) GetSalesReport(f SalesFilter) (*SalesReport, error) {
	report := &SalesReport{
		DailySales:   []TimeSeriesData{},
		TopBooks:     []BookSalesData{},
		TopCustomers: []CustomerData{},
	}
	if f.Start != nil {
		report.StartDate = f.Start.Format(DateLayout)
	}
	if f.End != nil {
		report.EndDate = f.End.Format(DateLayout)
	}

	where, args := f.conditions("o.")

	if err := s.db.Raw(`
		SELECT
			TO_CHAR(DATE(o.created_at), 'YYYY-MM-DD') AS date,
			COALESCE(SUM(o.total), 0) AS total,
			COUNT(*) AS count
		FROM orders o
		WHERE `+where+`
		GROUP BY DATE(o.created_at)
		ORDER BY DATE(o.created_at)
	`, args...).Scan(&report.DailySales).Error; err != nil {
		return nil, fmt.Errorf("failed to get daily sales: %w", err)
	}

	for _, day := range report.DailySales {
		report.TotalRevenue += day.Total
		report.TotalOrders += day.Count
	}

	if err := s.db.Raw(`
		SELECT
			ol.book_id,
			ol.book_title AS title,
			SUM(ol.quantity) AS units_sold,
			SUM(ol.line_total) AS revenue
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE `+where+`
		GROUP BY ol.book_id, ol.book_title
		ORDER BY units_sold DESC, revenue DESC
		LIMIT 10
	`, args...).Scan(&report.TopBooks).Error; err != nil {
		return nil, fmt.Errorf("failed to get top books: %w", err)
	}

	if err := s.db.Raw(`
		SELECT
			u.id AS user_id,
			u.first_name,
			u.last_name,
			u.email,
			SUM(o.total) AS total_spent,
			COUNT(o.id) AS order_count
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE `+where+`
		GROUP BY u.id, u.first_name, u.last_name, u.email
		ORDER BY total_spent DESC
		LIMIT 10
	`, args...).Scan(&report.TopCustomers).Error; err != nil {
		return nil, fmt.Errorf("failed to get top customers: %w", err)
	}

	return report, nil
}

// conditions returns the WHERE clause shared by every sales query. The end
// date is inclusive, so the bound is the start of the following day.
func (f SalesFilter) conditions(alias string) (string, []interface{}) {
	where := alias + "status IN ?"
	args := []interface{}{revenueStatuses}
	if f.Start != nil {
		where += " AND " + alias + "created_at >= ?"
		args = append(args, *f.Start)
	}
	if f.End != nil {
		where += " AND " + alias + "created_at < ?"
		args = append(args, f.End.AddDate(0, 0, 1))
	}
	return where, args
}
