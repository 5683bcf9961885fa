package coupon

import (
	"context"
	"strings"
	"time"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// ScyllaStore persiste les coupons dans le keyspace orders.
type ScyllaStore struct {
	session *gocql.Session
}

func NewScyllaStore(session *gocql.Session) *ScyllaStore {
	return &ScyllaStore{session: session}
}

const couponColumns = `id, code, type, value, min_order_amount, max_discount_amount,
	quantity, is_auto_apply, starts_at, expires_at, is_active, created_by, created_at, updated_at`

func scanCoupon(scan func(...interface{}) error) (models.Coupon, error) {
	var c models.Coupon
	err := scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MinOrderAmount,
		&c.MaxDiscountAmount, &c.Quantity, &c.IsAutoApply, &c.StartsAt,
		&c.ExpiresAt, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *ScyllaStore) GetByCode(ctx context.Context, code string) (models.Coupon, error) {
	q := s.session.Query(
		`SELECT `+couponColumns+` FROM coupons WHERE code = ? LIMIT 1`,
		strings.ToUpper(code),
	).WithContext(ctx)

	c, err := scanCoupon(q.Scan)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Coupon{}, ErrCouponNotFound
		}
		return models.Coupon{}, err
	}
	return c, nil
}

func (s *ScyllaStore) ListAutoApply(ctx context.Context) ([]models.Coupon, error) {
	iter := s.session.Query(
		`SELECT `+couponColumns+` FROM coupons WHERE is_auto_apply = true ALLOW FILTERING`,
	).WithContext(ctx).Iter()

	var coupons []models.Coupon
	var c models.Coupon
	for iter.Scan(&c.ID, &c.Code, &c.Type, &c.Value, &c.MinOrderAmount,
		&c.MaxDiscountAmount, &c.Quantity, &c.IsAutoApply, &c.StartsAt,
		&c.ExpiresAt, &c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt) {
		coupons = append(coupons, c)
		c = models.Coupon{}
	}
	return coupons, iter.Close()
}

func (s *ScyllaStore) DecrementQuantity(ctx context.Context, couponID gocql.UUID, prev int) (bool, error) {
	var seen int
	return s.session.Query(
		`UPDATE coupons SET quantity = ?, updated_at = ? WHERE id = ? IF quantity = ?`,
		prev-1, time.Now(), couponID, prev,
	).WithContext(ctx).ScanCAS(&seen)
}

func (s *ScyllaStore) IncrementQuantity(ctx context.Context, couponID gocql.UUID, prev int) (bool, error) {
	var seen int
	return s.session.Query(
		`UPDATE coupons SET quantity = ?, updated_at = ? WHERE id = ? IF quantity = ?`,
		prev+1, time.Now(), couponID, prev,
	).WithContext(ctx).ScanCAS(&seen)
}

func (s *ScyllaStore) RecordUsage(ctx context.Context, usage models.CouponUsage) (bool, error) {
	// IF NOT EXISTS sur (coupon_id, order_id) : c'est la clé d'idempotence
	// qui empêche le double décrément en cas de retry.
	return s.session.Query(`
		INSERT INTO coupon_usage (coupon_id, order_id, user_id, discount, used_at)
		VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		usage.CouponID, usage.OrderID, usage.UserID, usage.Discount, usage.UsedAt,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
}

func (s *ScyllaStore) DeleteUsage(ctx context.Context, couponID, orderID gocql.UUID) (bool, error) {
	return s.session.Query(
		`DELETE FROM coupon_usage WHERE coupon_id = ? AND order_id = ? IF EXISTS`,
		couponID, orderID,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
}
