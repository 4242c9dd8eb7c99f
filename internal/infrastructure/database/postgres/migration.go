// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/domain/delivery"
	"github.com/your-org/bookstore-backend/internal/domain/order"
	"github.com/your-org/bookstore-backend/internal/domain/user"
	"github.com/your-org/bookstore-backend/internal/domain/wishlist"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&user.User{},

		&catalog.Category{},
		&catalog.Book{},
		&catalog.Review{},

		&coupon.Coupon{},
		&cart.CartItem{},
		&wishlist.WishlistItem{},

		&order.Order{},
		&order.OrderLine{},
		&order.OrderHistory{},
		&order.Payment{},

		&delivery.DigitalDelivery{},
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	for _, model := range Models() {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
		log.Printf("✅ Migrated: %T", model)
	}

	log.Println("✅ All database migrations completed successfully")
	return nil
}

// indexes are the composite and partial indexes AutoMigrate cannot express
var indexes = []string{
	// Storefront listings
	"CREATE INDEX IF NOT EXISTS idx_books_active_created ON books(is_active, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_books_category_active ON books(category_id, is_active)",
	"CREATE INDEX IF NOT EXISTS idx_books_featured ON books(featured) WHERE is_active = true",
	"CREATE INDEX IF NOT EXISTS idx_books_on_offer ON books(on_offer) WHERE is_active = true",
	"CREATE INDEX IF NOT EXISTS idx_books_search ON books USING gin(to_tsvector('english', title || ' ' || author || ' ' || coalesce(description, '')))",

	"CREATE INDEX IF NOT EXISTS idx_reviews_book_approved ON reviews(book_id, approved)",

	// Orders and reports
	"CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at)",
	"CREATE INDEX IF NOT EXISTS idx_orders_paid_created ON orders(created_at) WHERE paid = true",
	"CREATE INDEX IF NOT EXISTS idx_order_history_order_created ON order_history(order_id, created_at)",

	// Downloads
	"CREATE INDEX IF NOT EXISTS idx_deliveries_user_created ON digital_deliveries(user_id, created_at DESC)",

	"CREATE INDEX IF NOT EXISTS idx_coupons_active_window ON coupons(starts_at, ends_at) WHERE is_active = true",
}

// CreateIndexes creates additional database indexes for performance
func (m *Migration) CreateIndexes() error {
	log.Println("📊 Creating database indexes...")

	successCount := 0
	for _, statement := range indexes {
		if err := m.db.Exec(statement).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			continue
		}
		successCount++
	}

	log.Printf("✅ Database indexes created: %d/%d successful", successCount, len(indexes))
	return nil
}

// SeedInitialData seeds the database with development data
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := m.seedUser("admin@bookstore.local", "admin", "Admin#12345", user.RoleAdmin); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	if err := m.seedUser("reader@bookstore.local", "reader", "Reader#12345", user.RoleCustomer); err != nil {
		return fmt.Errorf("failed to seed test user: %w", err)
	}
	if err := m.seedBooks(); err != nil {
		return fmt.Errorf("failed to seed books: %w", err)
	}
	if err := m.seedCoupons(); err != nil {
		return fmt.Errorf("failed to seed coupons: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedCategories() error {
	var count int64
	if err := m.db.Model(&catalog.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️ Categories already exist, skipping...")
		return nil
	}

	categories := []catalog.Category{
		{Name: "Fiction", Description: "Novels and short stories", SortOrder: 1, IsActive: true},
		{Name: "Science", Description: "Popular science and research", SortOrder: 2, IsActive: true},
		{Name: "Technology", Description: "Programming, systems and engineering", SortOrder: 3, IsActive: true},
		{Name: "History", Description: "History and biography", SortOrder: 4, IsActive: true},
		{Name: "Children", Description: "Books for young readers", SortOrder: 5, IsActive: true},
	}

	if err := m.db.Create(&categories).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %d categories", len(categories))
	return nil
}

func (m *Migration) seedUser(email, username, password string, role user.Role) error {
	var existing user.User
	err := m.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		log.Printf("⏭️ User %s already exists", email)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u := user.User{
		Email:         email,
		Username:      username,
		Password:      string(hashedPassword),
		FirstName:     username,
		Role:          role,
		IsActive:      true,
		EmailVerified: true,
	}
	if err := m.db.Create(&u).Error; err != nil {
		return err
	}

	log.Printf("✅ Created %s user: %s (password: %s)", role, email, password)
	return nil
}

func (m *Migration) seedBooks() error {
	var count int64
	if err := m.db.Model(&catalog.Book{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️ Books already exist, skipping...")
		return nil
	}

	categoryID := func(name string) *uint {
		var c catalog.Category
		if err := m.db.Where("name = ?", name).First(&c).Error; err != nil {
			return nil
		}
		return &c.ID
	}
	discount := func(cents int64) *int64 { return &cents }

	books := []catalog.Book{
		{
			Title:       "The Quiet Orbit",
			Author:      "Mara Ellison",
			CategoryID:  categoryID("Fiction"),
			Description: "A lighthouse keeper on a research station listens for a signal nobody else can hear.",
			Price:       1499,
			Format:      catalog.FormatEPUB,
			Featured:    true,
			IsActive:    true,
		},
		{
			Title:         "Practical Concurrency",
			Author:        "Devin Rao",
			CategoryID:    categoryID("Technology"),
			Description:   "Patterns for writing correct concurrent services, from channels to distributed locks.",
			Price:         3999,
			DiscountPrice: discount(2999),
			Format:        catalog.FormatPDF,
			Featured:      true,
			IsActive:      true,
		},
		{
			Title:       "Small Worlds",
			Author:      "Ines Okafor",
			CategoryID:  categoryID("Science"),
			Description: "How microbes shaped the planet and everything living on it.",
			Price:       1999,
			Format:      catalog.FormatPDF,
			IsActive:    true,
		},
		{
			Title:         "Rivers of Salt",
			Author:        "Tomas Lindqvist",
			CategoryID:    categoryID("History"),
			Description:   "The trade routes that built and ruined medieval cities.",
			Price:         2499,
			DiscountPrice: discount(1799),
			Format:        catalog.FormatMOBI,
			IsActive:      true,
		},
	}

	for i := range books {
		if err := m.db.Create(&books[i]).Error; err != nil {
			return err
		}
		log.Printf("✅ Created book: %s", books[i].Title)
	}
	return nil
}

func (m *Migration) seedCoupons() error {
	var count int64
	if err := m.db.Model(&coupon.Coupon{}).Where("code = ?", "WELCOME10").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️ Welcome coupon already exists")
		return nil
	}

	now := time.Now()
	welcome := coupon.Coupon{
		Code:         "WELCOME10",
		Description:  "10% off your first order",
		DiscountType: coupon.DiscountPercentage,
		Value:        10,
		MaxUses:      100,
		StartsAt:     now,
		EndsAt:       now.AddDate(1, 0, 0),
		IsActive:     true,
	}
	if err := m.db.Create(&welcome).Error; err != nil {
		return err
	}

	log.Println("✅ Created coupon: WELCOME10")
	return nil
}

// DropAllTables drops every table. Development only.
func (m *Migration) DropAllTables() error {
	log.Println("⚠️ WARNING: Dropping all database tables...")

	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := m.db.Migrator().DropTable(models[i]); err != nil {
			log.Printf("⚠️ Failed to drop table for %T: %v", models[i], err)
		}
	}

	log.Println("✅ All tables dropped successfully")
	return nil
}

// GetTableInfo logs the row count of every public table
func (m *Migration) GetTableInfo() error {
	var tables []string
	if err := m.db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename").Scan(&tables).Error; err != nil {
		return err
	}

	log.Println("📊 Database Tables Information:")
	var total int64
	for _, table := range tables {
		var count int64
		m.db.Table(table).Count(&count)
		total += count
		log.Printf("   %-25s | %d records", table, count)
	}
	log.Printf("📈 Total records: %d in %d tables", total, len(tables))
	return nil
}
