package orders

import (
	"context"
	"testing"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Les deux implémentations doivent satisfaire le contrat complet.
var (
	_ Store = (*ScyllaStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

func seedOrder(t *testing.T, store *MemoryStore) models.Order {
	t.Helper()
	o := models.Order{
		ID:            gocql.TimeUUID(),
		OrderNumber:   "1A2B3C4D",
		UserID:        "user123",
		TotalAmount:   150000,
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
	}
	p := models.Payment{
		ID:      gocql.TimeUUID(),
		OrderID: o.ID,
		Method:  models.PaymentMethodBankTransfer,
		Amount:  o.TotalAmount,
		Status:  models.PaymentPending,
	}
	require.NoError(t, store.Insert(context.Background(), o, p))
	return o
}

func TestConfirmPayment_OnlyFromPending(t *testing.T) {
	store := NewMemoryStore()
	o := seedOrder(t, store)

	applied, err := store.ConfirmPayment(context.Background(), o.ID, "TXN-42")
	require.NoError(t, err)
	assert.True(t, applied)

	// Deuxième confirmation : perdue.
	applied, err = store.ConfirmPayment(context.Background(), o.ID, "TXN-43")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	// Le statut de commande ne bouge pas au paiement.
	assert.Equal(t, models.OrderPending, got.Status)

	payment, err := store.GetPayment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "TXN-42", payment.TransactionID)
	require.NotNil(t, payment.PaidAt)
}

func TestMarkCancelled_LosesAgainstConfirmed(t *testing.T) {
	store := NewMemoryStore()
	o := seedOrder(t, store)

	applied, err := store.ConfirmPayment(context.Background(), o.ID, "TXN-42")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = store.MarkCancelled(context.Background(), o.ID, "changé d'avis")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.NotEqual(t, models.OrderCancelled, got.Status)
}

func TestConfirmPayment_LosesAgainstCancelled(t *testing.T) {
	store := NewMemoryStore()
	o := seedOrder(t, store)

	applied, err := store.MarkCancelled(context.Background(), o.ID, "changé d'avis")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = store.ConfirmPayment(context.Background(), o.ID, "TXN-42")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, models.PaymentCancelled, got.PaymentStatus)
	assert.Equal(t, "changé d'avis", got.CancelReason)
	require.NotNil(t, got.CancelledAt)
}

func TestGetByNumber(t *testing.T) {
	store := NewMemoryStore()
	o := seedOrder(t, store)

	got, err := store.GetByNumber(context.Background(), "1A2B3C4D")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = store.GetByNumber(context.Background(), "XXXXXXXX")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	exists, err := store.OrderNumberExists(context.Background(), "1A2B3C4D")
	require.NoError(t, err)
	assert.True(t, exists)
}
