package coupon

import (
	"context"
	"strings"
	"sync"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

type usageKey struct {
	couponID gocql.UUID
	orderID  gocql.UUID
}

// MemoryStore est le Store en mémoire pour les tests et le dev local.
type MemoryStore struct {
	mu      sync.Mutex
	byCode  map[string]models.Coupon
	usages  map[usageKey]models.CouponUsage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byCode: make(map[string]models.Coupon),
		usages: make(map[usageKey]models.CouponUsage),
	}
}

func (s *MemoryStore) Put(c models.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCode[strings.ToUpper(c.Code)] = c
}

func (s *MemoryStore) GetByCode(ctx context.Context, code string) (models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[strings.ToUpper(code)]
	if !ok {
		return models.Coupon{}, ErrCouponNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListAutoApply(ctx context.Context) ([]models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Coupon
	for _, c := range s.byCode {
		if c.IsAutoApply {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) DecrementQuantity(ctx context.Context, couponID gocql.UUID, prev int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, c := range s.byCode {
		if c.ID != couponID {
			continue
		}
		if c.Quantity != prev || prev <= 0 {
			return false, nil
		}
		c.Quantity--
		s.byCode[code] = c
		return true, nil
	}
	return false, ErrCouponNotFound
}

func (s *MemoryStore) IncrementQuantity(ctx context.Context, couponID gocql.UUID, prev int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for code, c := range s.byCode {
		if c.ID != couponID {
			continue
		}
		if c.Quantity != prev || prev < 0 {
			return false, nil
		}
		c.Quantity++
		s.byCode[code] = c
		return true, nil
	}
	return false, ErrCouponNotFound
}

func (s *MemoryStore) RecordUsage(ctx context.Context, usage models.CouponUsage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{couponID: usage.CouponID, orderID: usage.OrderID}
	if _, exists := s.usages[key]; exists {
		return false, nil
	}
	s.usages[key] = usage
	return true, nil
}

func (s *MemoryStore) DeleteUsage(ctx context.Context, couponID, orderID gocql.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := usageKey{couponID: couponID, orderID: orderID}
	if _, exists := s.usages[key]; !exists {
		return false, nil
	}
	delete(s.usages, key)
	return true, nil
}

// Used indique si le coupon a été consommé pour la commande. Aide de test.
func (s *MemoryStore) Used(couponID, orderID gocql.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.usages[usageKey{couponID: couponID, orderID: orderID}]
	return ok
}
