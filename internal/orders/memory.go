package orders

import (
	"context"
	"sync"
	"time"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// MemoryStore est le Store en mémoire pour les tests et le dev local.
// Mêmes gardes conditionnelles que la version Scylla.
type MemoryStore struct {
	mu       sync.Mutex
	orders   map[gocql.UUID]models.Order
	payments map[gocql.UUID]models.Payment // clé = order id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[gocql.UUID]models.Order),
		payments: make(map[gocql.UUID]models.Payment),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, order models.Order, payment models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	s.payments[order.ID] = payment
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id gocql.UUID) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) GetByNumber(ctx context.Context, number string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			return o, nil
		}
	}
	return models.Order{}, ErrOrderNotFound
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []models.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			list = append(list, o)
		}
	}
	return list, nil
}

func (s *MemoryStore) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetPayment(ctx context.Context, orderID gocql.UUID) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return models.Payment{}, ErrOrderNotFound
	}
	return p, nil
}

func (s *MemoryStore) ConfirmPayment(ctx context.Context, orderID gocql.UUID, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.PaymentStatus != models.PaymentPending {
		return false, nil
	}

	now := time.Now()
	o.PaymentStatus = models.PaymentPaid
	o.UpdatedAt = now
	s.orders[orderID] = o

	p := s.payments[orderID]
	p.Status = models.PaymentPaid
	p.TransactionID = transactionID
	p.PaidAt = &now
	s.payments[orderID] = p

	return true, nil
}

func (s *MemoryStore) MarkCancelled(ctx context.Context, orderID gocql.UUID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.PaymentStatus != models.PaymentPending {
		return false, nil
	}

	now := time.Now()
	o.Status = models.OrderCancelled
	o.PaymentStatus = models.PaymentCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	s.orders[orderID] = o

	p := s.payments[orderID]
	p.Status = models.PaymentCancelled
	s.payments[orderID] = p

	return true, nil
}
