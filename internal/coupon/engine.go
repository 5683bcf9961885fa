// Package coupon valide les codes promo et calcule les réductions.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

var (
	ErrCouponNotFound   = errors.New("coupon introuvable")
	ErrCouponInactive   = errors.New("coupon inactif")
	ErrCouponNotStarted = errors.New("coupon pas encore valide")
	ErrCouponExpired    = errors.New("coupon expiré")
	ErrCouponExhausted  = errors.New("coupon épuisé")
	ErrMinOrderNotMet   = errors.New("montant minimum de commande non atteint")
)

// Store est le contrat de persistance minimal de l'Engine.
// RecordUsage est un insert conditionnel : il retourne false si le coupon a
// déjà été consommé pour cette commande (clé d'idempotence = id de commande) ;
// DeleteUsage est la suppression conditionnelle inverse. DecrementQuantity et
// IncrementQuantity sont des CAS : appliqués seulement si la quantité courante
// vaut encore `prev`, jamais en dessous de 0.
type Store interface {
	GetByCode(ctx context.Context, code string) (models.Coupon, error)
	ListAutoApply(ctx context.Context) ([]models.Coupon, error)
	DecrementQuantity(ctx context.Context, couponID gocql.UUID, prev int) (bool, error)
	IncrementQuantity(ctx context.Context, couponID gocql.UUID, prev int) (bool, error)
	RecordUsage(ctx context.Context, usage models.CouponUsage) (bool, error)
	DeleteUsage(ctx context.Context, couponID, orderID gocql.UUID) (bool, error)
}

type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Validate vérifie qu'un code est utilisable pour un montant de commande.
// Mêmes contrôles que côté admin, dans le même ordre.
func (e *Engine) Validate(ctx context.Context, code string, orderAmount float64) (models.Coupon, error) {
	c, err := e.store.GetByCode(ctx, code)
	if err != nil {
		return models.Coupon{}, err
	}

	now := e.now()

	if !c.IsActive {
		return models.Coupon{}, ErrCouponInactive
	}
	if now.Before(c.StartsAt) {
		return models.Coupon{}, ErrCouponNotStarted
	}
	if now.After(c.ExpiresAt) {
		return models.Coupon{}, ErrCouponExpired
	}
	if !c.Unlimited() && c.Quantity == 0 {
		return models.Coupon{}, ErrCouponExhausted
	}
	if orderAmount < c.MinOrderAmount {
		return models.Coupon{}, ErrMinOrderNotMet
	}

	return c, nil
}

// ComputeDiscount calcule la réduction d'un coupon sur un montant.
// Jamais négative, jamais supérieure au montant.
func ComputeDiscount(c models.Coupon, amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	var discount float64
	switch c.Type {
	case models.CouponTypePercentage:
		discount = amount * c.Value / 100
		if c.MaxDiscountAmount > 0 && discount > c.MaxDiscountAmount {
			discount = c.MaxDiscountAmount
		}
	case models.CouponTypeFixed:
		discount = c.Value
	}

	if discount < 0 {
		return 0
	}
	if discount > amount {
		return amount
	}
	return discount
}

// ResolveAutoApply retourne les coupons auto-applicables valides pour ce
// montant, triés par réduction décroissante. Le checkout ne retient que le
// premier quand le client n'a fourni aucun code.
func (e *Engine) ResolveAutoApply(ctx context.Context, orderAmount float64) ([]models.Coupon, error) {
	candidates, err := e.store.ListAutoApply(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []models.Coupon
	for _, c := range candidates {
		if _, err := e.Validate(ctx, c.Code, orderAmount); err != nil {
			continue
		}
		eligible = append(eligible, c)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return ComputeDiscount(eligible[i], orderAmount) > ComputeDiscount(eligible[j], orderAmount)
	})

	return eligible, nil
}

// ResolveDiscounts détermine les coupons retenus pour un checkout.
// Codes explicites : prioritaires, appliqués dans l'ordre fourni, chacun
// validé et recalculé sur le montant restant (empilement séquentiel, le
// minimum de commande s'apprécie donc après les réductions précédentes).
// Sans code : le meilleur coupon auto-applicable, seul. Le total est borné
// au sous-total.
func (e *Engine) ResolveDiscounts(ctx context.Context, subtotal float64, codes []string) ([]models.AppliedCoupon, float64, error) {
	if len(codes) > 0 {
		var applied []models.AppliedCoupon
		remaining := subtotal
		for _, code := range codes {
			c, err := e.Validate(ctx, code, remaining)
			if err != nil {
				return nil, 0, err
			}
			discount := ComputeDiscount(c, remaining)
			applied = append(applied, models.AppliedCoupon{Coupon: c, Discount: discount})
			remaining -= discount
		}
		return applied, subtotal - remaining, nil
	}

	eligible, err := e.ResolveAutoApply(ctx, subtotal)
	if err != nil {
		return nil, 0, err
	}
	if len(eligible) == 0 {
		return nil, 0, nil
	}

	best := eligible[0]
	discount := ComputeDiscount(best, subtotal)
	return []models.AppliedCoupon{{Coupon: best, Discount: discount}}, discount, nil
}

// Apply consomme le coupon pour une commande. C'est le seul chemin qui
// décrémente la quantité, et il est idempotent par commande : un retry de
// checkout ne décrémente pas deux fois.
func (e *Engine) Apply(ctx context.Context, c models.Coupon, orderID gocql.UUID, userID string, discount float64) error {
	inserted, err := e.store.RecordUsage(ctx, models.CouponUsage{
		CouponID: c.ID,
		OrderID:  orderID,
		UserID:   userID,
		Discount: discount,
		UsedAt:   e.now(),
	})
	if err != nil {
		return err
	}
	if !inserted {
		// Déjà consommé pour cette commande.
		return nil
	}

	if c.Unlimited() {
		return nil
	}

	// Décrément CAS : sous contention on relit et on retente, sans jamais
	// passer sous zéro.
	prev := c.Quantity
	for attempt := 0; attempt < 8; attempt++ {
		if prev == 0 {
			return ErrCouponExhausted
		}
		applied, err := e.store.DecrementQuantity(ctx, c.ID, prev)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		fresh, err := e.store.GetByCode(ctx, c.Code)
		if err != nil {
			return err
		}
		prev = fresh.Quantity
	}
	return ErrCouponExhausted
}

// Revert défait Apply pour une commande dont le checkout a échoué après la
// consommation : l'usage est effacé et, pour un coupon à quantité finie,
// l'exemplaire est rendu. Sans effet si le coupon n'avait pas été consommé
// pour cette commande.
func (e *Engine) Revert(ctx context.Context, c models.Coupon, orderID gocql.UUID) error {
	removed, err := e.store.DeleteUsage(ctx, c.ID, orderID)
	if err != nil {
		return err
	}
	if !removed || c.Unlimited() {
		return nil
	}

	fresh, err := e.store.GetByCode(ctx, c.Code)
	if err != nil {
		return err
	}
	prev := fresh.Quantity
	for attempt := 0; attempt < 8; attempt++ {
		applied, err := e.store.IncrementQuantity(ctx, c.ID, prev)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		fresh, err = e.store.GetByCode(ctx, c.Code)
		if err != nil {
			return err
		}
		prev = fresh.Quantity
	}
	return fmt.Errorf("restitution du coupon %s impossible", c.Code)
}
