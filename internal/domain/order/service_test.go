package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/bookstore-backend/internal/domain/cart"
	"github.com/your-org/bookstore-backend/internal/domain/coupon"
	"github.com/your-org/bookstore-backend/internal/pkg/email"
	"github.com/your-org/bookstore-backend/internal/testutil"
)

type fakeNotifier struct {
	confirmations []email.OrderConfirmationData
	updates       []email.OrderStatusUpdateData
	err           error
}

func (f *fakeNotifier) SendOrderConfirmationEmail(_ context.Context, data email.OrderConfirmationData) error {
	f.confirmations = append(f.confirmations, data)
	return f.err
}

func (f *fakeNotifier) SendOrderStatusUpdateEmail(_ context.Context, data email.OrderStatusUpdateData) error {
	f.updates = append(f.updates, data)
	return f.err
}

var orderColumns = []string{"id", "order_number", "user_id", "status", "payment_method", "subtotal", "tax_amount", "total", "paid", "created_at"}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeNotifier) {
	db, mock := testutil.NewMockDB(t)
	notifier := &fakeNotifier{}
	return NewService(db, testutil.Config(), notifier), mock, notifier
}

func orderRow(id uint, status Status, paid bool) *sqlmock.Rows {
	return sqlmock.NewRows(orderColumns).
		AddRow(id, "ORD-1", 7, string(status), "simulated", 10000, 1600, 11600, paid, time.Now())
}

func TestCheckout_EmptyCart(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cart_items" WHERE user_id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "quantity"}))
	mock.ExpectRollback()

	_, err := svc.Checkout(7, &CheckoutRequest{PaymentMethod: PaymentMethodSimulated})
	assert.ErrorIs(t, err, cart.ErrCartEmpty)
}

func TestCheckout_InactiveBook(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cart_items" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "quantity"}).AddRow(1, 7, 3, 1))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "is_active"}).AddRow(3, "Retired", 10000, false))
	mock.ExpectRollback()

	_, err := svc.Checkout(7, &CheckoutRequest{PaymentMethod: PaymentMethodSimulated})
	assert.ErrorIs(t, err, ErrBookUnavailable)
}

func TestCheckout_SnapshotsCartIntoPendingOrder(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "cart_items" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "quantity"}).
			AddRow(1, 7, 3, 1).
			AddRow(2, 7, 4, 2))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" IN \(\$1,\$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "discount_price", "on_offer", "is_active"}).
			AddRow(3, "Rayuela", 20000, nil, false, true).
			AddRow(4, "Ficciones", 18000, 15000, true, true))
	mock.ExpectQuery(`INSERT INTO "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO "order_lines"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM "cart_items" WHERE user_id = \$1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	o, err := svc.Checkout(7, &CheckoutRequest{PaymentMethod: PaymentMethodSimulated})
	require.NoError(t, err)

	assert.Equal(t, uint(10), o.ID)
	assert.Equal(t, StatusPendingPayment, o.Status)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Ficciones", o.Lines[1].BookTitle)
	assert.Equal(t, int64(15000), o.Lines[1].UnitPrice)
	assert.Equal(t, int64(30000), o.Lines[1].LineTotal)
	assert.Equal(t, int64(50000), o.Subtotal)
	assert.Equal(t, int64(8000), o.TaxAmount)
	assert.Equal(t, int64(58000), o.Total)
	assert.Regexp(t, `^ORD-\d{20}-0007-\d{4}$`, o.OrderNumber)
}

var couponColumns = []string{"id", "code", "discount_type", "value", "max_uses", "used_count", "is_active"}

// expectSingleBookCart expects the cart load for one copy of a 20000 book
func expectSingleBookCart(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT \* FROM "cart_items" WHERE user_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "quantity"}).AddRow(1, 7, 3, 1))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "price", "is_active"}).AddRow(3, "Rayuela", 20000, true))
}

func expectCouponRedeemed(mock sqlmock.Sqlmock, code, discountType string, value int64) {
	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count \+ 1 WHERE code = \$1 AND is_active = \$2 AND used_count < max_uses AND starts_at <= \$3 AND ends_at >= \$4`).
		WithArgs(code, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "coupons" WHERE code = \$1`).
		WillReturnRows(sqlmock.NewRows(couponColumns).AddRow(2, code, discountType, value, 10, 1, true))
}

func expectOrderWritten(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`INSERT INTO "orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery(`INSERT INTO "order_lines"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`DELETE FROM "cart_items" WHERE user_id = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestCheckout_CouponDiscountIsTaxedAfter(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	expectSingleBookCart(mock)
	expectCouponRedeemed(mock, "VERANO10", "percentage", 10)
	expectOrderWritten(mock)
	mock.ExpectCommit()

	o, err := svc.Checkout(7, &CheckoutRequest{PaymentMethod: PaymentMethodSimulated, CouponCode: " verano10 "})
	require.NoError(t, err)

	assert.Equal(t, "VERANO10", o.CouponCode)
	assert.Equal(t, int64(20000), o.Subtotal)
	assert.Equal(t, int64(2000), o.DiscountAmount)
	// 16% of 18000
	assert.Equal(t, int64(2880), o.TaxAmount)
	assert.Equal(t, int64(20880), o.Total)
}

func TestCheckout_FixedCouponCappedAtSubtotal(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	expectSingleBookCart(mock)
	expectCouponRedeemed(mock, "REGALO", "fixed", 50000)
	expectOrderWritten(mock)
	mock.ExpectCommit()

	o, err := svc.Checkout(7, &CheckoutRequest{PaymentMethod: PaymentMethodSimulated, CouponCode: "REGALO"})
	require.NoError(t, err)

	assert.Equal(t, int64(20000), o.DiscountAmount)
	assert.Zero(t, o.TaxAmount)
	assert.Zero(t, o.Total)
}

func TestCheckout_ExhaustedCouponRollsBack(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	expectSingleBookCart(mock)
	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count \+ 1`).
		WithArgs("AGOTADO", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := svc.Checkout(7, &CheckoutRequest{PaymentMethod: PaymentMethodSimulated, CouponCode: "AGOTADO"})
	assert.ErrorIs(t, err, coupon.ErrCouponInvalid)
}

func TestMarkPaid_NonPendingIsNoop(t *testing.T) {
	svc, mock, notifier := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "paid"=\$1,"paid_at"=\$2,"status"=\$3,"updated_at"=\$4 WHERE id = \$5 AND status = \$6`).
		WithArgs(true, sqlmock.AnyArg(), "paid", sqlmock.AnyArg(), 10, "pending_payment").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1`).
		WillReturnRows(orderRow(10, StatusCompleted, true))
	mock.ExpectQuery(`SELECT \* FROM "order_lines" WHERE "order_lines"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "book_id"}).AddRow(1, 10, 3))

	o, changed, err := svc.MarkPaid(context.Background(), 10, nil)
	require.NoError(t, err)

	assert.False(t, changed)
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Empty(t, notifier.confirmations)
}

func TestMarkPaid_UnknownOrder(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, _, err := svc.MarkPaid(context.Background(), 99, nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMarkPaid_IssuesDeliveriesAndEmails(t *testing.T) {
	svc, mock, notifier := newTestService(t)
	notifier.err = errors.New("smtp down")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "paid"=\$1,"paid_at"=\$2,"status"=\$3,"updated_at"=\$4 WHERE id = \$5 AND status = \$6`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1`).
		WillReturnRows(orderRow(10, StatusPaid, true))
	mock.ExpectQuery(`SELECT \* FROM "order_lines" WHERE "order_lines"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "book_id", "book_title", "quantity", "unit_price", "line_total"}).
			AddRow(1, 10, 3, "Rayuela", 1, 10000, 10000))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(`INSERT INTO "digital_deliveries" .* ON CONFLICT \("order_id","book_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT \* FROM "digital_deliveries" WHERE order_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "book_id", "user_id", "token", "expires_at", "max_downloads"}).
			AddRow(1, 10, 3, 7, "tok-1", time.Now().AddDate(1, 0, 0), 3))
	mock.ExpectQuery(`SELECT \* FROM "books" WHERE "books"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "format"}).AddRow(3, "Rayuela", "epub"))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name"}).AddRow(7, "ana@example.com", "Ana", "Pérez"))

	o, changed, err := svc.MarkPaid(context.Background(), 10, nil)
	require.NoError(t, err, "email failure must not fail the payment")

	assert.True(t, changed)
	assert.Equal(t, StatusPaid, o.Status)
	require.Len(t, notifier.confirmations, 1)

	sent := notifier.confirmations[0]
	assert.Equal(t, "ana@example.com", sent.UserEmail)
	assert.Equal(t, "$116.00", sent.Total)
	require.Len(t, sent.Downloads, 1)
	assert.Equal(t, "http://localhost:8080/api/v1/downloads/tok-1", sent.Downloads[0].URL)
	assert.Equal(t, "epub", sent.Downloads[0].Format)
	assert.Equal(t, 3, sent.Downloads[0].MaxDownloads)
}

func TestUpdateStatus_RejectsIllegalTransition(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1`).
		WithArgs("ORD-1", 1).
		WillReturnRows(orderRow(10, StatusCompleted, true))

	_, err := svc.UpdateStatus(context.Background(), "ORD-1", &UpdateStatusRequest{Status: "processing"}, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.UpdateStatus(context.Background(), "ORD-1", &UpdateStatusRequest{Status: "shipped"}, 1)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateStatus_RefundRevokesDeliveries(t *testing.T) {
	svc, mock, notifier := newTestService(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 ORDER BY "orders"\."id" LIMIT \$2`).
		WillReturnRows(orderRow(10, StatusPaid, true))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("refunded", sqlmock.AnyArg(), 10, "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectExec(`UPDATE "digital_deliveries" SET "expires_at"=\$1,"updated_at"=\$2 WHERE order_id = \$3 AND expires_at > \$4`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1 ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "ana@example.com"))

	// reload for the response
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 ORDER BY "orders"\."id" LIMIT \$2`).
		WillReturnRows(orderRow(10, StatusRefunded, true))
	mock.ExpectQuery(`SELECT \* FROM "order_history" WHERE "order_history"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "action"}).AddRow(6, 10, "refunded"))
	mock.ExpectQuery(`SELECT \* FROM "order_lines" WHERE "order_lines"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE "payments"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "ana@example.com"))

	o, err := svc.UpdateStatus(context.Background(), "ORD-1", &UpdateStatusRequest{Status: "refunded", Comment: "Duplicate purchase"}, 1)
	require.NoError(t, err)

	assert.Equal(t, StatusRefunded, o.Status)
	require.Len(t, notifier.updates, 1)
	assert.Equal(t, "refunded", notifier.updates[0].Status)
	assert.Equal(t, "Duplicate purchase", notifier.updates[0].Comment)
}

func TestCancelMine_OnlyPending(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 AND user_id = \$2`).
		WithArgs("ORD-1", 7, 1).
		WillReturnRows(orderRow(10, StatusPaid, true))

	_, err := svc.CancelMine(context.Background(), 7, "ORD-1")
	assert.ErrorIs(t, err, ErrNotCancellable)
}

func TestCancelPending_ReleasesCoupon(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows(append(orderColumns, "coupon_code", "discount_amount")).
			AddRow(10, "ORD-1", 7, "pending_payment", "stripe", 20000, 2880, 20880, false, time.Now(), "VERANO10", 2000))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("cancelled", sqlmock.AnyArg(), 10, "pending_payment").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`UPDATE "coupons" SET "used_count"=used_count - 1 WHERE code = \$1 AND used_count > 0`).
		WithArgs("VERANO10").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE "payments" SET "processed_at"=\$1,"status"=\$2,"updated_at"=\$3 WHERE order_id = \$4 AND status = \$5`).
		WithArgs(sqlmock.AnyArg(), "failed", sqlmock.AnyArg(), 10, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := svc.CancelPending(context.Background(), 10, nil, "Checkout session expired")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestUpdateStatus_PaidCancellationKeepsCouponUsed(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 ORDER BY "orders"\."id" LIMIT \$2`).
		WillReturnRows(sqlmock.NewRows(append(orderColumns, "coupon_code")).
			AddRow(10, "ORD-1", 7, "paid", "stripe", 20000, 2880, 20880, true, time.Now(), "VERANO10"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("cancelled", sqlmock.AnyArg(), 10, "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectExec(`UPDATE "digital_deliveries" SET "expires_at"=\$1,"updated_at"=\$2 WHERE order_id = \$3 AND expires_at > \$4`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1 ORDER BY`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "ana@example.com"))
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 ORDER BY "orders"\."id" LIMIT \$2`).
		WillReturnRows(orderRow(10, StatusCancelled, true))
	mock.ExpectQuery(`SELECT \* FROM "order_history" WHERE "order_history"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "action"}).AddRow(6, 10, "cancelled"))
	mock.ExpectQuery(`SELECT \* FROM "order_lines" WHERE "order_lines"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectQuery(`SELECT \* FROM "payments" WHERE "payments"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1$`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "ana@example.com"))

	// no coupons UPDATE is expected; an unexpected statement fails the test
	_, err := svc.UpdateStatus(context.Background(), "ORD-1", &UpdateStatusRequest{Status: "cancelled"}, 1)
	require.NoError(t, err)
}

func TestGetMine_OtherUsersOrderIsMissing(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 AND user_id = \$2`).
		WithArgs("ORD-1", 8, 1).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := svc.GetMine(8, "ORD-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestInvoiceOrder_RequiresSettledOrder(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE order_number = \$1 AND user_id = \$2`).
		WillReturnRows(orderRow(10, StatusPendingPayment, false))
	mock.ExpectQuery(`SELECT \* FROM "order_lines" WHERE "order_lines"\."order_id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id"}))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "ana@example.com"))

	_, err := svc.InvoiceOrder(7, "ORD-1", false)
	assert.ErrorIs(t, err, ErrInvoiceUnavailable)
}

func TestExpireStalePending(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery(`SELECT "id" FROM "orders" WHERE status = \$1 AND created_at < \$2 ORDER BY id ASC`).
		WithArgs("pending_payment", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(`SELECT \* FROM "orders" WHERE "orders"\."id" = \$1`).
		WillReturnRows(orderRow(5, StatusPendingPayment, false))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
		WithArgs("cancelled", sqlmock.AnyArg(), 5, "pending_payment").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "order_history"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
	mock.ExpectCommit()
	mock.ExpectExec(`UPDATE "payments" SET "processed_at"=\$1,"status"=\$2,"updated_at"=\$3 WHERE order_id = \$4 AND status = \$5`).
		WithArgs(sqlmock.AnyArg(), "failed", sqlmock.AnyArg(), 5, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := svc.ExpireStalePending(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExpireStalePending_StopsOnCancelledContext(t *testing.T) {
	svc, _, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := svc.ExpireStalePending(ctx, 24*time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)

	_, err = svc.CancelPending(ctx, 5, nil, "Payment window expired")
	assert.ErrorIs(t, err, context.Canceled)
}
