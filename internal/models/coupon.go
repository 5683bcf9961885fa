package models

import (
	"time"

	"github.com/gocql/gocql"
)

const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

type Coupon struct {
	ID                gocql.UUID `json:"id"`
	Code              string     `json:"code"`
	Type              string     `json:"type"` // "percentage", "fixed"
	Value             float64    `json:"value"`
	MinOrderAmount    float64    `json:"min_order_amount"`
	MaxDiscountAmount float64    `json:"max_discount_amount"` // plafond pour "percentage", 0 = pas de plafond
	Quantity          int        `json:"quantity"`            // -1 = illimité
	IsAutoApply       bool       `json:"is_auto_apply"`
	StartsAt          time.Time  `json:"starts_at"`
	ExpiresAt         time.Time  `json:"expires_at"`
	IsActive          bool       `json:"is_active"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Unlimited indique si le coupon n'a pas de quota d'utilisation.
func (c Coupon) Unlimited() bool {
	return c.Quantity < 0
}

type CouponUsage struct {
	CouponID gocql.UUID `json:"coupon_id"`
	OrderID  gocql.UUID `json:"order_id"`
	UserID   string     `json:"user_id"`
	Discount float64    `json:"discount"`
	UsedAt   time.Time  `json:"used_at"`
}

// AppliedCoupon décrit un coupon retenu lors d'un checkout, avec la réduction
// effectivement calculée sur le montant restant.
type AppliedCoupon struct {
	Coupon   Coupon  `json:"coupon"`
	Discount float64 `json:"discount"`
}
