package stock

import (
	"context"
	"sync"
	"time"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// MemoryLedger est l'implémentation en mémoire, utilisée par les tests et en
// dev local. Mêmes garanties que ScyllaLedger, via un mutex.
type MemoryLedger struct {
	mu        sync.Mutex
	stocks    map[gocql.UUID]int
	movements []models.StockMovement
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{stocks: make(map[gocql.UUID]int)}
}

// SetStock initialise le stock d'un produit (setup de test).
func (l *MemoryLedger) SetStock(productID gocql.UUID, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stocks[productID] = quantity
}

func (l *MemoryLedger) Stock(productID gocql.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stocks[productID]
}

func (l *MemoryLedger) Movements() []models.StockMovement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.StockMovement, len(l.movements))
	copy(out, l.movements)
	return out
}

func (l *MemoryLedger) Reserve(ctx context.Context, productID gocql.UUID, quantity int, ref Reference) error {
	return l.adjust(productID, -quantity, ref)
}

func (l *MemoryLedger) Release(ctx context.Context, productID gocql.UUID, quantity int, ref Reference) error {
	return l.adjust(productID, quantity, ref)
}

func (l *MemoryLedger) adjust(productID gocql.UUID, delta int, ref Reference) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.stocks[productID]
	if !ok {
		return ErrProductNotFound
	}

	next := current + delta
	if next < 0 {
		return &InsufficientStockError{
			ProductID: productID,
			Available: current,
			Requested: -delta,
		}
	}

	l.stocks[productID] = next
	l.movements = append(l.movements, models.StockMovement{
		ID:        gocql.TimeUUID(),
		ProductID: productID,
		Quantity:  delta,
		PrevStock: current,
		NewStock:  next,
		RefType:   ref.Type,
		RefID:     ref.ID,
		Actor:     ref.Actor,
		CreatedAt: time.Now(),
	})
	return nil
}
