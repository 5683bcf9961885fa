package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dahlia_back_end/internal/coupon"
	"dahlia_back_end/internal/models"
	"dahlia_back_end/internal/orders"
	"dahlia_back_end/internal/shipping"
	"dahlia_back_end/internal/stock"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCatalog struct {
	products map[gocql.UUID]models.Product
}

func (c *memCatalog) Product(ctx context.Context, id gocql.UUID) (models.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return models.Product{}, stock.ErrProductNotFound
	}
	return p, nil
}

type memAddressBook struct {
	addresses map[gocql.UUID]models.Address
}

func (b *memAddressBook) Address(ctx context.Context, id gocql.UUID) (models.Address, error) {
	a, ok := b.addresses[id]
	if !ok {
		return models.Address{}, gocql.ErrNotFound
	}
	return a, nil
}

type startedVerification struct {
	amount  float64
	content string
}

type fakeVerifier struct {
	mu        sync.Mutex
	started   map[gocql.UUID]startedVerification
	stopped   map[gocql.UUID]bool
	refuseAll bool
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		started: make(map[gocql.UUID]startedVerification),
		stopped: make(map[gocql.UUID]bool),
	}
}

func (v *fakeVerifier) StartVerification(orderID gocql.UUID, amount float64, content string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.refuseAll {
		return false
	}
	v.started[orderID] = startedVerification{amount: amount, content: content}
	return true
}

func (v *fakeVerifier) StopVerification(orderID gocql.UUID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped[orderID] = true
}

type fixture struct {
	coordinator *Coordinator
	ledger      *stock.MemoryLedger
	coupons     *coupon.MemoryStore
	orders      *orders.MemoryStore
	verifier    *fakeVerifier
	catalog     *memCatalog
	addresses   *memAddressBook

	userID    string
	addressID gocql.UUID
	mug       models.Product // 50000, stock 10
	teapot    models.Product // 120000, stock 3
}

func newFixture() *fixture {
	f := &fixture{
		ledger:   stock.NewMemoryLedger(),
		coupons:  coupon.NewMemoryStore(),
		orders:   orders.NewMemoryStore(),
		verifier: newFakeVerifier(),
		userID:   "user123",
	}

	f.mug = models.Product{ID: gocql.TimeUUID(), Name: "Mug", Price: 50000, IsActive: true}
	f.teapot = models.Product{ID: gocql.TimeUUID(), Name: "Théière", Price: 120000, IsActive: true}
	f.ledger.SetStock(f.mug.ID, 10)
	f.ledger.SetStock(f.teapot.ID, 3)

	f.addressID = gocql.TimeUUID()
	f.addresses = &memAddressBook{addresses: map[gocql.UUID]models.Address{
		f.addressID: {ID: f.addressID, UserID: f.userID, Zone: models.ZoneLocal},
	}}
	f.catalog = &memCatalog{products: map[gocql.UUID]models.Product{
		f.mug.ID:    f.mug,
		f.teapot.ID: f.teapot,
	}}

	f.coordinator = NewCoordinator(
		f.ledger,
		coupon.NewEngine(f.coupons),
		f.orders,
		f.catalog,
		f.addresses,
		shipping.NewZoneCalculator(),
		f.verifier,
	)
	return f
}

func (f *fixture) request(items ...ItemRequest) Request {
	return Request{
		UserID:        f.userID,
		AddressID:     f.addressID,
		PaymentMethod: models.PaymentMethodBankTransfer,
		Items:         items,
	}
}

func TestCheckout_BankTransfer(t *testing.T) {
	f := newFixture()

	order, err := f.coordinator.Checkout(context.Background(), f.request(
		ItemRequest{ProductID: f.mug.ID, Quantity: 2},
		ItemRequest{ProductID: f.teapot.ID, Quantity: 1},
	))

	require.NoError(t, err)
	require.Len(t, order.OrderNumber, 8)
	assert.Equal(t, 220000.0, order.Subtotal)
	assert.Equal(t, 15000.0, order.DeliveryCharges) // zone locale
	assert.Equal(t, 235000.0, order.TotalAmount)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentPending, order.PaymentStatus)

	// Prix figés sur les lignes.
	require.Len(t, order.Items, 2)
	assert.Equal(t, 50000.0, order.Items[0].UnitPrice)
	assert.Equal(t, 100000.0, order.Items[0].LineTotal)

	// Stock décrémenté.
	assert.Equal(t, 8, f.ledger.Stock(f.mug.ID))
	assert.Equal(t, 2, f.ledger.Stock(f.teapot.ID))

	// Commande persistée avec son paiement en attente.
	stored, err := f.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)
	payment, err := f.orders.GetPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodBankTransfer, payment.Method)
	assert.Equal(t, order.TotalAmount, payment.Amount)

	// Vérification lancée avec le libellé DH + numéro et le montant exact.
	v, ok := f.verifier.started[order.ID]
	require.True(t, ok)
	assert.Equal(t, "DH"+order.OrderNumber, v.content)
	assert.Equal(t, order.TotalAmount, v.amount)
}

func TestCheckout_CardDoesNotStartVerification(t *testing.T) {
	f := newFixture()

	req := f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 1})
	req.PaymentMethod = models.PaymentMethodCard

	order, err := f.coordinator.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.Empty(t, f.verifier.started)

	payment, err := f.orders.GetPayment(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodCard, payment.Method)
}

func TestCheckout_RollsBackReservationsOnFailure(t *testing.T) {
	f := newFixture()

	// La théière n'a que 3 exemplaires : la deuxième ligne échoue.
	_, err := f.coordinator.Checkout(context.Background(), f.request(
		ItemRequest{ProductID: f.mug.ID, Quantity: 2},
		ItemRequest{ProductID: f.teapot.ID, Quantity: 5},
	))

	var insufficient *stock.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, f.teapot.ID, insufficient.ProductID)

	// La réservation du mug a été relâchée.
	assert.Equal(t, 10, f.ledger.Stock(f.mug.ID))
	assert.Equal(t, 3, f.ledger.Stock(f.teapot.ID))

	// Rien de persisté, rien en vérification.
	list, err := f.orders.ListByUser(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Empty(t, f.verifier.started)
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		mutate  func(*Request)
		wantErr error
	}{
		{"panier vide", func(r *Request) { r.Items = nil }, ErrInvalidRequest},
		{"quantité nulle", func(r *Request) { r.Items[0].Quantity = 0 }, ErrInvalidRequest},
		{"moyen de paiement inconnu", func(r *Request) { r.PaymentMethod = "espèces" }, ErrInvalidRequest},
		{"client manquant", func(r *Request) { r.UserID = "" }, ErrInvalidRequest},
		{"adresse inconnue", func(r *Request) { r.AddressID = gocql.TimeUUID() }, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 1})
			tt.mutate(&req)
			_, err := f.coordinator.Checkout(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCheckout_AddressOwnedByAnotherUser(t *testing.T) {
	f := newFixture()

	req := f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 1})
	req.UserID = "autre-client"

	_, err := f.coordinator.Checkout(context.Background(), req)

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCheckout_AppliesCouponAndConsumesIt(t *testing.T) {
	f := newFixture()

	f.coupons.Put(models.Coupon{
		ID:        gocql.TimeUUID(),
		Code:      "MOINS10",
		Type:      models.CouponTypePercentage,
		Value:     10,
		Quantity:  3,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	})

	req := f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 2})
	req.CouponCodes = []string{"MOINS10"}

	order, err := f.coordinator.Checkout(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 100000.0, order.Subtotal)
	assert.Equal(t, 10000.0, order.DiscountAmount)
	assert.Equal(t, 105000.0, order.TotalAmount) // 100000 − 10000 + 15000
	assert.Equal(t, []string{"MOINS10"}, order.AppliedCoupons)

	stored, err := f.coupons.GetByCode(context.Background(), "MOINS10")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Quantity)
}

func TestCheckout_ExhaustedCouponRollsBackStock(t *testing.T) {
	f := newFixture()

	f.coupons.Put(models.Coupon{
		ID:        gocql.TimeUUID(),
		Code:      "EPUISE",
		Type:      models.CouponTypeFixed,
		Value:     5000,
		Quantity:  0,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	})

	req := f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 2})
	req.CouponCodes = []string{"EPUISE"}

	_, err := f.coordinator.Checkout(context.Background(), req)

	assert.ErrorIs(t, err, coupon.ErrCouponExhausted)
	assert.Equal(t, 10, f.ledger.Stock(f.mug.ID))
}

// failingInsertStore refuse la persistance, tout le reste passe au MemoryStore.
type failingInsertStore struct {
	*orders.MemoryStore
	insertErr error
}

func (s *failingInsertStore) Insert(ctx context.Context, order models.Order, payment models.Payment) error {
	return s.insertErr
}

func TestCheckout_PersistFailureRestoresCouponsAndStock(t *testing.T) {
	f := newFixture()

	percent := models.Coupon{
		ID:        gocql.TimeUUID(),
		Code:      "MOINS10",
		Type:      models.CouponTypePercentage,
		Value:     10,
		Quantity:  3,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	}
	fixed := models.Coupon{
		ID:        gocql.TimeUUID(),
		Code:      "FIXE5K",
		Type:      models.CouponTypeFixed,
		Value:     5000,
		Quantity:  1,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		IsActive:  true,
	}
	f.coupons.Put(percent)
	f.coupons.Put(fixed)

	broken := &failingInsertStore{MemoryStore: f.orders, insertErr: errors.New("scylla indisponible")}
	coordinator := NewCoordinator(
		f.ledger,
		coupon.NewEngine(f.coupons),
		broken,
		f.catalog,
		f.addresses,
		shipping.NewZoneCalculator(),
		f.verifier,
	)

	req := f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 2})
	req.CouponCodes = []string{"MOINS10", "FIXE5K"}

	_, err := coordinator.Checkout(context.Background(), req)
	require.Error(t, err)

	// Aucun effet de bord ne survit à l'échec : stock et coupons restitués.
	assert.Equal(t, 10, f.ledger.Stock(f.mug.ID))

	storedPercent, err := f.coupons.GetByCode(context.Background(), "MOINS10")
	require.NoError(t, err)
	assert.Equal(t, 3, storedPercent.Quantity)

	storedFixed, err := f.coupons.GetByCode(context.Background(), "FIXE5K")
	require.NoError(t, err)
	assert.Equal(t, 1, storedFixed.Quantity)

	assert.Empty(t, f.verifier.started)
}

func TestCheckout_FreeShippingAboveThreshold(t *testing.T) {
	f := newFixture()

	// 610000 de sous-total, au-dessus du seuil de livraison offerte.
	order, err := f.coordinator.Checkout(context.Background(), f.request(
		ItemRequest{ProductID: f.teapot.ID, Quantity: 3},
		ItemRequest{ProductID: f.mug.ID, Quantity: 5},
	))

	require.NoError(t, err)
	assert.Equal(t, 610000.0, order.Subtotal)
	assert.Equal(t, 0.0, order.DeliveryCharges)
	assert.Equal(t, 610000.0, order.TotalAmount)
}

func TestCheckout_VerificationRefusalDoesNotFailOrder(t *testing.T) {
	f := newFixture()
	f.verifier.refuseAll = true

	order, err := f.coordinator.Checkout(context.Background(),
		f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 1}))

	require.NoError(t, err)

	// La commande est bien engagée malgré la mise en file refusée.
	_, err = f.orders.GetByID(context.Background(), order.ID)
	assert.NoError(t, err)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture()

	order, err := f.coordinator.Checkout(context.Background(),
		f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 2}))
	require.NoError(t, err)
	require.Equal(t, 8, f.ledger.Stock(f.mug.ID))

	err = f.coordinator.CancelOrder(context.Background(), order.ID, f.userID, "changé d'avis")

	require.NoError(t, err)

	got, err := f.orders.GetByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, models.PaymentCancelled, got.PaymentStatus)
	assert.Equal(t, "changé d'avis", got.CancelReason)

	// Stock restitué et vérification arrêtée.
	assert.Equal(t, 10, f.ledger.Stock(f.mug.ID))
	assert.True(t, f.verifier.stopped[order.ID])
}

func TestCancelOrder_Forbidden(t *testing.T) {
	f := newFixture()

	order, err := f.coordinator.Checkout(context.Background(),
		f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 1}))
	require.NoError(t, err)

	err = f.coordinator.CancelOrder(context.Background(), order.ID, "autre-client", "test")

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture()

	err := f.coordinator.CancelOrder(context.Background(), gocql.TimeUUID(), f.userID, "test")

	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}

func TestCancelOrder_LosesAgainstConfirmedPayment(t *testing.T) {
	f := newFixture()

	order, err := f.coordinator.Checkout(context.Background(),
		f.request(ItemRequest{ProductID: f.mug.ID, Quantity: 2}))
	require.NoError(t, err)

	// Le virement est confirmé juste avant l'annulation.
	applied, err := f.orders.ConfirmPayment(context.Background(), order.ID, "TXN-1")
	require.NoError(t, err)
	require.True(t, applied)

	err = f.coordinator.CancelOrder(context.Background(), order.ID, f.userID, "trop tard")

	assert.ErrorIs(t, err, ErrOrderNotCancellable)
	// Le stock reste consommé : la commande part en préparation.
	assert.Equal(t, 8, f.ledger.Stock(f.mug.ID))
}
