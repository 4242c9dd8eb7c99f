package wishlist

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/domain/catalog"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

var bookColumns = []string{"id", "title", "price", "is_active"}

func TestAddToWishlist_UnknownBook(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db)

	mock.ExpectQuery(`SELECT \* FROM "books" WHERE id = \$1 AND is_active = \$2`).
		WithArgs(99, true, 1).
		WillReturnRows(sqlmock.NewRows(bookColumns))

	_, err := svc.AddToWishlist(7, &AddToWishlistRequest{BookID: 99})
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
}

func TestAddToWishlist_IsIdempotent(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db)

	added := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE id = \$1 AND is_active = \$2`).
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow(3, "Rayuela", 20000, true))
	mock.ExpectQuery(`SELECT \* FROM "wishlist_items" WHERE "wishlist_items"\."user_id" = \$1 AND "wishlist_items"\."book_id" = \$2`).
		WithArgs(7, 3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "created_at"}).AddRow(4, 7, 3, added))

	item, err := svc.AddToWishlist(7, &AddToWishlistRequest{BookID: 3})
	require.NoError(t, err)

	assert.Equal(t, uint(4), item.ID)
	assert.Equal(t, added, item.AddedAt)
	assert.True(t, item.IsAvailable)
	assert.Equal(t, int64(20000), item.CurrentPrice)
}

func TestAddToWishlist_CreatesItem(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db)

	mock.ExpectQuery(`SELECT \* FROM "books" WHERE id = \$1 AND is_active = \$2`).
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow(3, "Rayuela", 20000, true))
	mock.ExpectQuery(`SELECT \* FROM "wishlist_items" WHERE "wishlist_items"\."user_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "wishlist_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

	item, err := svc.AddToWishlist(7, &AddToWishlistRequest{BookID: 3})
	require.NoError(t, err)
	assert.Equal(t, uint(5), item.ID)
	assert.Equal(t, uint(3), item.BookID)
}

func TestRemoveFromWishlist_Missing(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db)

	mock.ExpectExec(`DELETE FROM "wishlist_items" WHERE user_id = \$1 AND book_id = \$2`).
		WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, svc.RemoveFromWishlist(7, 3), ErrItemNotFound)
}

func TestMoveToCart(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "wishlist_items" WHERE id = \$1 AND user_id = \$2`).
		WithArgs(4, 7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id"}).AddRow(4, 7, 3))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow(3, "Rayuela", 20000, true))
	mock.ExpectQuery(`INSERT INTO "cart_items" .* ON CONFLICT \("user_id","book_id"\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`DELETE FROM "wishlist_items" WHERE "wishlist_items"\."id" = \$1`).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, svc.MoveToCart(7, 4))
}

func TestMoveToCart_OtherUsersItem(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "wishlist_items" WHERE id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id"}))
	mock.ExpectRollback()

	assert.ErrorIs(t, svc.MoveToCart(8, 4), ErrItemNotFound)
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	items := []WishlistItemResponse{
		{IsAvailable: true, CurrentPrice: 20000, AddedAt: now.Add(-24 * time.Hour)},
		{IsAvailable: true, CurrentPrice: 15000, AddedAt: now.AddDate(0, -1, 0)},
		{IsAvailable: false, CurrentPrice: 9000, AddedAt: now},
	}

	summary := summarize(items, now)

	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 2, summary.AvailableItems)
	assert.Equal(t, 1, summary.UnavailableItems)
	assert.Equal(t, int64(35000), summary.TotalValue)
	assert.Equal(t, 2, summary.RecentlyAdded)
}
