// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/domain/delivery"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/payment"
	"github.com/your-org/bookstore-backend/internal/domain/reports"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/domain/wishlist"
	redisdb "github.com/your-org/bookstore-backend/internal/infrastructure/database/redis"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/handlers"
	"github.com/your-org/bookstore-backend/internal/interfaces/http/middleware"
	"github.com/your-org/bookstore-backend/internal/pkg/auth"
	"github.com/your-org/bookstore-backend/internal/pkg/email"
	"github.com/your-org/bookstore-backend/internal/pkg/pdf"
	"github.com/your-org/bookstore-backend/internal/pkg/storage"
	"gorm.io/gorm"
)

// Dependencies are the shared resources handlers are built from
type Dependencies struct {
	DB       *gorm.DB
	Redis    *redisdb.Client
	Config   *config.Config
	Storage  storage.Provider
	Mailer   *email.EmailService
	JWT      *auth.JWTManager
	Throttle *middleware.DownloadThrottle
}

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth      *handlers.AuthHandler
	Profile   *handlers.UserProfileHandler
	Books     *handlers.BookHandler
	Uploads   *handlers.UploadHandler
	Category  *handlers.CategoryHandler
	Reviews   *handlers.ReviewHandler
	Cart      *handlers.CartHandler
	Checkout  *handlers.CheckoutHandler
	Orders    *handlers.OrderHandler
	Invoices  *handlers.InvoiceHandler
	Downloads *handlers.DownloadHandler
	Wishlist  *handlers.WishlistHandler
	Payments  *handlers.PaymentHandler
	Analytics *handlers.AnalyticsHandler
	Users     *handlers.UserAdminHandler
	Coupons   *handlers.CouponHandler
}

// NewHandlers wires services and handlers
func NewHandlers(deps *Dependencies) *Handlers {
	db, cfg := deps.DB, deps.Config

	userService := user.NewService(db, cfg)
	catalogService := catalog.NewService(db, cfg)
	cartService := cart.NewService(db, deps.Redis, cfg)
	couponService := coupon.NewService(db, cfg)
	orderService := order.NewService(db, cfg, deps.Mailer)
	paymentService := payment.NewService(db, cfg, orderService, payment.DefaultGateways(cfg)...)

	return &Handlers{
		Auth:      handlers.NewAuthHandler(userService, deps.Mailer),
		Profile:   handlers.NewUserProfileHandler(userService, orderService),
		Books:     handlers.NewBookHandler(catalogService),
		Uploads:   handlers.NewUploadHandler(catalogService, deps.Storage, cfg),
		Category:  handlers.NewCategoryHandler(catalog.NewCategoryService(db, cfg)),
		Reviews:   handlers.NewReviewHandler(catalog.NewReviewService(db)),
		Cart:      handlers.NewCartHandler(cartService),
		Checkout:  handlers.NewCheckoutHandler(paymentService, cartService, couponService),
		Orders:    handlers.NewOrderHandler(orderService),
		Invoices:  handlers.NewInvoiceHandler(orderService, pdf.NewService(cfg)),
		Downloads: handlers.NewDownloadHandler(delivery.NewService(db, cfg, deps.Storage)),
		Wishlist:  handlers.NewWishlistHandler(wishlist.NewService(db)),
		Payments:  handlers.NewPaymentHandler(paymentService),
		Analytics: handlers.NewAnalyticsHandler(reports.NewService(db)),
		Users:     handlers.NewUserAdminHandler(user.NewAdminService(db, cfg)),
		Coupons:   handlers.NewCouponHandler(couponService),
	}
}

// SetupRoutes registers the /api/v1 routes
func SetupRoutes(rg *gin.RouterGroup, h *Handlers, jwtManager *auth.JWTManager, throttle *middleware.DownloadThrottle) {
	requireAuth := middleware.AuthMiddleware(jwtManager)
	optionalAuth := middleware.OptionalAuthMiddleware(jwtManager)

	SetupAuthRoutes(rg, h, requireAuth)
	SetupCatalogRoutes(rg, h, requireAuth, optionalAuth)
	SetupCartRoutes(rg, h, requireAuth, optionalAuth)
	SetupOrderRoutes(rg, h, requireAuth, throttle)
	SetupAdminRoutes(rg, h, requireAuth)

	rg.POST("/webhooks/stripe", h.Payments.StripeWebhook)
}

// SetupAuthRoutes sets up authentication and profile routes
func SetupAuthRoutes(rg *gin.RouterGroup, h *Handlers, requireAuth gin.HandlerFunc) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.RefreshToken)
		authGroup.POST("/logout", requireAuth, h.Auth.Logout)
	}

	profile := rg.Group("/profile")
	profile.Use(requireAuth)
	{
		profile.GET("", h.Profile.GetProfile)
		profile.PUT("", h.Profile.UpdateProfile)
		profile.PUT("/password", h.Profile.ChangePassword)
	}
}

// SetupCatalogRoutes sets up the public storefront routes
func SetupCatalogRoutes(rg *gin.RouterGroup, h *Handlers, requireAuth, optionalAuth gin.HandlerFunc) {
	public := rg.Group("")
	public.Use(optionalAuth) // signed-in users see whether they own a book
	{
		public.GET("/home", h.Books.Home)
		public.GET("/categories", h.Category.GetCategories)
		public.GET("/books", h.Books.GetBooks)
		public.GET("/books/offers", h.Books.GetOffers)
		public.GET("/books/:slug", h.Books.GetBook)
		public.GET("/books/:slug/reviews", h.Reviews.GetReviews)
	}

	rg.POST("/books/:slug/reviews", requireAuth, h.Reviews.CreateReview)
}

// SetupCartRoutes sets up cart routes. Guests use X-Session-ID.
func SetupCartRoutes(rg *gin.RouterGroup, h *Handlers, requireAuth, optionalAuth gin.HandlerFunc) {
	cartGroup := rg.Group("/cart")
	cartGroup.Use(optionalAuth)
	{
		cartGroup.GET("", h.Cart.GetCart)
		cartGroup.POST("/items", h.Cart.AddToCart)
		cartGroup.DELETE("/items/:id", h.Cart.RemoveFromCart)

		signedIn := cartGroup.Group("")
		signedIn.Use(requireAuth)
		{
			signedIn.PATCH("/items/:id", h.Cart.UpdateCartItem)
			signedIn.DELETE("", h.Cart.ClearCart)
			signedIn.GET("/count", h.Cart.GetCartCount)
			signedIn.POST("/merge", h.Cart.MergeGuestCart)
		}
	}

	wishlistGroup := rg.Group("/wishlist")
	wishlistGroup.Use(requireAuth)
	{
		wishlistGroup.GET("", h.Wishlist.GetWishlist)
		wishlistGroup.POST("", h.Wishlist.AddToWishlist)
		wishlistGroup.GET("/count", h.Wishlist.GetWishlistCount)
		wishlistGroup.DELETE("/:book_id", h.Wishlist.RemoveFromWishlist)
		wishlistGroup.POST("/items/:id/move-to-cart", h.Wishlist.MoveToCart)
	}
}

// SetupOrderRoutes sets up checkout, order and download routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *Handlers, requireAuth gin.HandlerFunc, throttle *middleware.DownloadThrottle) {
	rg.POST("/coupons/validate", requireAuth, h.Checkout.ValidateCoupon)
	rg.POST("/checkout", requireAuth, h.Checkout.Checkout)

	orders := rg.Group("/orders")
	orders.Use(requireAuth)
	{
		orders.GET("", h.Orders.GetOrders)
		orders.GET("/:number", h.Orders.GetOrder)
		orders.GET("/:number/invoice", h.Invoices.GenerateInvoice)
		orders.POST("/:number/cancel", h.Orders.CancelOrder)
	}

	downloads := rg.Group("/downloads")
	downloads.Use(requireAuth)
	{
		downloads.GET("", h.Downloads.GetDownloads)
		downloads.GET("/:token", throttle.Middleware(), h.Downloads.Download)
	}
}

// SetupAdminRoutes sets up back-office routes for admin and staff accounts
func SetupAdminRoutes(rg *gin.RouterGroup, h *Handlers, requireAuth gin.HandlerFunc) {
	admin := rg.Group("/admin")
	admin.Use(requireAuth)
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("/dashboard", h.Analytics.GetDashboard)
		admin.GET("/reports/sales", h.Analytics.GetSalesReport)

		orders := admin.Group("/orders")
		{
			orders.GET("", h.Orders.AdminGetOrders)
			orders.GET("/:number", h.Orders.AdminGetOrder)
			orders.PUT("/:number/status", h.Orders.AdminUpdateOrderStatus)
			orders.GET("/:number/invoice", h.Invoices.GenerateInvoice)
		}

		books := admin.Group("/books")
		{
			books.GET("", h.Books.AdminGetBooks)
			books.GET("/:slug", h.Books.AdminGetBook)
			books.POST("", h.Books.AdminCreateBook)
			books.PUT("/:slug", h.Books.AdminUpdateBook)
			books.DELETE("/:slug", h.Books.AdminDeleteBook)
			books.POST("/:slug/file", h.Uploads.UploadBookFile)
			books.POST("/:slug/cover", h.Uploads.UploadCover)
		}

		categories := admin.Group("/categories")
		{
			categories.GET("", h.Category.AdminGetCategories)
			categories.GET("/:id", h.Category.AdminGetCategory)
			categories.POST("", h.Category.AdminCreateCategory)
			categories.PUT("/:id", h.Category.AdminUpdateCategory)
			categories.DELETE("/:id", h.Category.AdminDeleteCategory)
		}

		users := admin.Group("/users")
		{
			users.GET("", h.Users.GetUsers)
			users.GET("/:id", h.Users.GetUser)
			users.PUT("/:id", h.Users.UpdateUser)
			users.DELETE("/:id", h.Users.DeleteUser)
		}

		coupons := admin.Group("/coupons")
		{
			coupons.GET("", h.Coupons.AdminGetCoupons)
			coupons.GET("/:id", h.Coupons.AdminGetCoupon)
			coupons.POST("", h.Coupons.AdminCreateCoupon)
			coupons.PUT("/:id", h.Coupons.AdminUpdateCoupon)
			coupons.DELETE("/:id", h.Coupons.AdminDeleteCoupon)
		}

		reviews := admin.Group("/reviews")
		{
			reviews.GET("", h.Reviews.AdminGetReviews)
			reviews.POST("/:id/approve", h.Reviews.AdminApproveReview)
			reviews.DELETE("/:id", h.Reviews.AdminDeleteReview)
		}
	}
}
