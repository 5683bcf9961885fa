package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dahlia_back_end/internal/models"
	"dahlia_back_end/internal/orders"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFeed simule le relevé bancaire, avec un nombre d'échecs avant succès.
type fakeFeed struct {
	mu           sync.Mutex
	transactions []models.BankTransaction
	failuresLeft int
	calls        int
}

func (f *fakeFeed) Recent(ctx context.Context) ([]models.BankTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, errors.New("timeout réseau")
	}
	return f.transactions, nil
}

func (f *fakeFeed) set(txs []models.BankTransaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions = txs
}

func newTestScheduler(feed *fakeFeed, store *orders.MemoryStore) *Scheduler {
	s := NewScheduler(feed, store)
	s.PollInterval = 5 * time.Millisecond
	s.Deadline = time.Second
	return s
}

func seedPendingOrder(t *testing.T, store *orders.MemoryStore) models.Order {
	t.Helper()
	o := models.Order{
		ID:            gocql.TimeUUID(),
		OrderNumber:   "1A2B3C4D",
		UserID:        "user123",
		TotalAmount:   150000,
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
	}
	require.NoError(t, store.Insert(context.Background(), o, models.Payment{
		OrderID: o.ID,
		Method:  models.PaymentMethodBankTransfer,
		Amount:  o.TotalAmount,
		Status:  models.PaymentPending,
	}))
	return o
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		tx      models.BankTransaction
		amount  float64
		content string
		want    bool
	}{
		{
			"libellé exact au milieu du texte",
			models.BankTransaction{AmountIn: 150000, Content: "CK 150000 DH1A2B3C4D ND ABC"},
			150000, "DH1A2B3C4D", true,
		},
		{
			"casse différente",
			models.BankTransaction{AmountIn: 150000, Content: "virement dh1a2b3c4d merci"},
			150000, "DH1A2B3C4D", true,
		},
		{
			"montant différent",
			models.BankTransaction{AmountIn: 150001, Content: "DH1A2B3C4D"},
			150000, "DH1A2B3C4D", false,
		},
		{
			"libellé absent",
			models.BankTransaction{AmountIn: 150000, Content: "CK 150000 ND ABC"},
			150000, "DH1A2B3C4D", false,
		},
		{
			"sortie de compte ignorée",
			models.BankTransaction{AmountIn: 0, AmountOut: 150000, Content: "DH1A2B3C4D"},
			150000, "DH1A2B3C4D", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.tx, tt.amount, tt.content))
		})
	}
}

func TestScheduler_ConfirmsOnMatch(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	feed := &fakeFeed{transactions: []models.BankTransaction{
		{ID: "TXN-1", AmountIn: 99999, Content: "autre virement"},
		{ID: "TXN-2", AmountIn: 150000, Content: "CK 150000 DH1A2B3C4D ND ABC"},
	}}

	s := newTestScheduler(feed, store)
	defer s.Shutdown()

	confirmed := make(chan gocql.UUID, 1)
	s.OnConfirmed = func(orderID gocql.UUID) { confirmed <- orderID }

	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))

	select {
	case id := <-confirmed:
		assert.Equal(t, o.ID, id)
	case <-time.After(time.Second):
		t.Fatal("confirmation jamais reçue")
	}

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderPending, got.Status) // le statut de commande ne bouge pas

	payment, err := store.GetPayment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "TXN-2", payment.TransactionID)

	assert.Eventually(t, func() bool { return !s.IsVerifying(o.ID) },
		time.Second, 5*time.Millisecond)
}

func TestScheduler_TimesOutAndLeavesPaymentPending(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	feed := &fakeFeed{} // relevé vide, jamais de match
	s := newTestScheduler(feed, store)
	s.Deadline = 30 * time.Millisecond
	defer s.Shutdown()

	timedOut := make(chan gocql.UUID, 1)
	s.OnTimedOut = func(orderID gocql.UUID) { timedOut <- orderID }

	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))

	select {
	case id := <-timedOut:
		assert.Equal(t, o.ID, id)
	case <-time.After(time.Second):
		t.Fatal("échéance jamais atteinte")
	}

	// Paiement laissé en attente pour réconciliation manuelle.
	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.PaymentStatus)

	assert.Eventually(t, func() bool { return !s.IsVerifying(o.ID) },
		time.Second, 5*time.Millisecond)
}

func TestScheduler_DuplicateStartIsNoOp(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	s := newTestScheduler(&fakeFeed{}, store)
	defer s.Shutdown()

	assert.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))
	assert.False(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))
	assert.True(t, s.IsVerifying(o.ID))
}

func TestScheduler_MatchAfterCancelIsSuppressed(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	feed := &fakeFeed{} // pas encore de transaction
	s := newTestScheduler(feed, store)
	defer s.Shutdown()

	confirmed := make(chan gocql.UUID, 1)
	s.OnConfirmed = func(orderID gocql.UUID) { confirmed <- orderID }

	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))

	// La commande est annulée pendant que la vérification tourne…
	applied, err := store.MarkCancelled(context.Background(), o.ID, "changé d'avis")
	require.NoError(t, err)
	require.True(t, applied)

	// …puis le virement arrive quand même.
	feed.set([]models.BankTransaction{
		{ID: "TXN-1", AmountIn: 150000, Content: "DH1A2B3C4D"},
	})

	// La tâche se termine sans confirmer : la transition perdante est absorbée.
	assert.Eventually(t, func() bool { return !s.IsVerifying(o.ID) },
		time.Second, 5*time.Millisecond)

	select {
	case <-confirmed:
		t.Fatal("le hook de confirmation ne doit pas être appelé")
	default:
	}

	got, err := store.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, models.PaymentCancelled, got.PaymentStatus)
}

func TestScheduler_FeedErrorsAreTransient(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	feed := &fakeFeed{
		failuresLeft: 3,
		transactions: []models.BankTransaction{
			{ID: "TXN-1", AmountIn: 150000, Content: "DH1A2B3C4D"},
		},
	}
	s := newTestScheduler(feed, store)
	defer s.Shutdown()

	confirmed := make(chan gocql.UUID, 1)
	s.OnConfirmed = func(orderID gocql.UUID) { confirmed <- orderID }

	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))

	select {
	case <-confirmed:
	case <-time.After(time.Second):
		t.Fatal("la tâche aurait dû survivre aux erreurs du relevé")
	}
}

// blockingFeed retient chaque lecture du relevé jusqu'au déblocage global,
// pour contrôler l'ordre d'extinction des goroutines.
type blockingFeed struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFeed) Recent(ctx context.Context) ([]models.BankTransaction, error) {
	f.entered <- struct{}{}
	<-f.release
	return nil, nil
}

func TestScheduler_RestartAfterStopKeepsNewTask(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	feed := &blockingFeed{entered: make(chan struct{}, 32), release: make(chan struct{})}
	s := NewScheduler(feed, store)
	s.PollInterval = 5 * time.Millisecond
	s.Deadline = time.Second
	defer s.Shutdown()

	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))
	<-feed.entered // la première tâche est bloquée dans la lecture du relevé

	s.StopVerification(o.ID)
	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))
	<-feed.entered // la deuxième tâche tourne

	// La première goroutine meurt : elle ne doit pas retirer du registre
	// l'entrée de la tâche relancée.
	close(feed.release)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.IsVerifying(o.ID))

	s.StopVerification(o.ID)
	assert.False(t, s.IsVerifying(o.ID))
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	store := orders.NewMemoryStore()
	o := seedPendingOrder(t, store)

	s := newTestScheduler(&fakeFeed{}, store)
	defer s.Shutdown()

	// Stop sans tâche : sans effet.
	s.StopVerification(o.ID)

	require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))
	s.StopVerification(o.ID)
	s.StopVerification(o.ID)

	assert.False(t, s.IsVerifying(o.ID))
}

func TestScheduler_ShutdownStopsEverything(t *testing.T) {
	store := orders.NewMemoryStore()
	s := newTestScheduler(&fakeFeed{}, store)

	for i := 0; i < 5; i++ {
		o := seedPendingOrder(t, store)
		require.True(t, s.StartVerification(o.ID, o.TotalAmount, o.TransferContent()))
	}

	s.Shutdown() // bloque jusqu'à l'arrêt de toutes les goroutines

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.tasks)
}
