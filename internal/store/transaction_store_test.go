package store

import (
	"context"
	"testing"

	"flightbooking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionStoreCreate(t *testing.T) {
	tx, log := recordExec()
	bookingID := "b-1"
	entry := TransactionInput{
		ID:            "t-1",
		UserID:        "p-1",
		BookingID:     &bookingID,
		Type:          models.TransactionPayment,
		Amount:        4500,
		BalanceBefore: 10000,
		BalanceAfter:  5500,
		Description:   "Booking SK101",
	}
	require.NoError(t, NewTransactionStore(fakeConn{}).Create(context.Background(), tx, entry))

	require.Len(t, *log, 1)
	assert.Equal(t, []any{"t-1", "p-1", &bookingID, models.TransactionPayment, int64(4500), int64(10000), int64(5500), "Booking SK101"}, (*log)[0].args)
}

func TestTransactionStoreListByUserNewestFirst(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	conn := fakeConn{
		selectFn: func(_ context.Context, dest any, query string, args ...any) error {
			gotQuery, gotArgs = query, args
			*dest.(*[]models.Transaction) = []models.Transaction{{ID: "t-2", TransactionType: models.TransactionRefund}}
			return nil
		},
	}

	rows, err := NewTransactionStore(conn).ListByUser(context.Background(), "p-1", 25, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.TransactionRefund, rows[0].TransactionType)
	assert.Contains(t, gotQuery, "ORDER BY created_at DESC")
	assert.Equal(t, []any{"p-1", 25, 50}, gotArgs)
}
