// internal/interfaces/http/handlers/analytics.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/domain/reports"
	"github.com/your-org/bookstore-backend/internal/pkg/money"
)

// AnalyticsHandler handles the back-office dashboard and reports
type AnalyticsHandler struct {
	reportsService *reports.Service
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(reportsService *reports.Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		reportsService: reportsService,
	}
}

// GetDashboard handles GET /admin/dashboard
func (h *AnalyticsHandler) GetDashboard(c *gin.Context) {
	stats, err := h.reportsService.GetDashboardStats()
	if err != nil {
		respondWithError(c, err, "Failed to retrieve dashboard statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Dashboard statistics retrieved successfully",
		"data": gin.H{
			"total_revenue":      money.Format(stats.TotalRevenue),
			"revenue_this_month": money.Format(stats.RevenueThisMonth),
			"avg_order_value":    money.Format(stats.AvgOrderValue),
			"total_orders":       stats.TotalOrders,
			"pending_orders":     stats.PendingOrders,
			"total_users":        stats.TotalUsers,
			"recent_orders":      stats.RecentOrders,
			"raw":                stats,
		},
	})
}

// GetSalesReport handles GET /admin/reports/sales?start_date=&end_date=
func (h *AnalyticsHandler) GetSalesReport(c *gin.Context) {
	filter, err := reports.ParseSalesFilter(c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondWithError(c, err, "Invalid date range")
		return
	}

	report, err := h.reportsService.GetSalesReport(filter)
	if err != nil {
		respondWithError(c, err, "Failed to retrieve sales report")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sales report retrieved successfully",
		"data": gin.H{
			"total_revenue": money.Format(report.TotalRevenue),
			"total_orders":  report.TotalOrders,
			"raw":           report,
		},
	})
}
