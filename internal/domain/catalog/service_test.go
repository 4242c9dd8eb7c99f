package catalog

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

func TestUniqueSlugAppendsSuffix(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())

	mock.ExpectQuery(`SELECT count\(\*\) FROM "books" WHERE slug = \$1`).
		WithArgs("rayuela", 0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "books" WHERE slug = \$1`).
		WithArgs("rayuela-2", 0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "books" WHERE slug = \$1`).
		WithArgs("rayuela-3", 0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	slug, err := svc.uniqueSlug("rayuela", 0)
	require.NoError(t, err)
	assert.Equal(t, "rayuela-3", slug)
}

func TestHasPurchased(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())

	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders" JOIN order_lines ON order_lines\.order_id = orders\.id WHERE orders\.user_id = \$1 AND order_lines\.book_id = \$2 AND orders\.status IN \(\$3,\$4,\$5\)`).
		WithArgs(5, 7, "paid", "processing", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	owned, err := svc.HasPurchased(5, 7)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestDeleteBook_NotFound(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())

	mock.ExpectExec(`DELETE FROM "books" WHERE slug = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.DeleteBook("missing")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeleteBook_PurchasedBookIsKept(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())

	mock.ExpectExec(`DELETE FROM "books" WHERE slug = \$1`).
		WithArgs("rayuela").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "fk_order_lines_book"})

	err := svc.DeleteBook("rayuela")
	assert.ErrorIs(t, err, ErrBookPurchased)
}

func TestGetBookDetail_NotFound(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	svc := NewService(db, testutil.Config())

	mock.ExpectQuery(`SELECT \* FROM "books" WHERE slug = \$1 AND is_active = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetBookDetail("missing", nil)
	assert.ErrorIs(t, err, ErrBookNotFound)
}
