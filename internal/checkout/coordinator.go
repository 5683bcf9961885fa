// Package checkout orchestre le passage de commande : stock, coupons, frais
// de livraison, persistance et lancement de la vérification de paiement.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"dahlia_back_end/internal/coupon"
	"dahlia_back_end/internal/models"
	"dahlia_back_end/internal/orders"
	"dahlia_back_end/internal/shipping"
	"dahlia_back_end/internal/stock"

	"github.com/gocql/gocql"
)

var (
	ErrInvalidRequest       = errors.New("requête de checkout invalide")
	ErrForbidden            = errors.New("accès refusé")
	ErrOrderNotCancellable  = errors.New("commande non annulable")
	ErrOrderNumberCollision = errors.New("génération du numéro de commande impossible")
)

// Catalog fournit les produits au moment du checkout : le prix et le nom
// sont figés dans la commande à cet instant.
type Catalog interface {
	Product(ctx context.Context, id gocql.UUID) (models.Product, error)
}

// AddressBook fournit les adresses de livraison.
type AddressBook interface {
	Address(ctx context.Context, id gocql.UUID) (models.Address, error)
}

// VerificationControl est la poignée du coordinateur sur le scheduler de
// vérification : lancer au checkout par virement, arrêter à l'annulation.
type VerificationControl interface {
	StartVerification(orderID gocql.UUID, expectedAmount float64, transferContent string) bool
	StopVerification(orderID gocql.UUID)
}

type ItemRequest struct {
	ProductID gocql.UUID `json:"product_id" binding:"required"`
	Quantity  int        `json:"quantity" binding:"required"`
}

type Request struct {
	UserID        string
	AddressID     gocql.UUID
	PaymentMethod string
	Items         []ItemRequest
	CouponCodes   []string
}

type Coordinator struct {
	ledger    stock.Ledger
	coupons   *coupon.Engine
	store     orders.Store
	catalog   Catalog
	addresses AddressBook
	fees      shipping.FeeCalculator
	verifier  VerificationControl
}

func NewCoordinator(
	ledger stock.Ledger,
	coupons *coupon.Engine,
	store orders.Store,
	catalog Catalog,
	addresses AddressBook,
	fees shipping.FeeCalculator,
	verifier VerificationControl,
) *Coordinator {
	return &Coordinator{
		ledger:    ledger,
		coupons:   coupons,
		store:     store,
		catalog:   catalog,
		addresses: addresses,
		fees:      fees,
		verifier:  verifier,
	}
}

// Checkout crée la commande. En cas d'échec après des réservations de stock,
// tout ce qui a été réservé est relâché avant de retourner l'erreur.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (models.Order, error) {
	if err := validate(req); err != nil {
		return models.Order{}, err
	}

	addr, err := c.addresses.Address(ctx, req.AddressID)
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: adresse introuvable", ErrInvalidRequest)
	}
	if addr.UserID != req.UserID {
		return models.Order{}, ErrForbidden
	}

	orderID := gocql.TimeUUID()
	number, err := c.generateOrderNumber(ctx)
	if err != nil {
		return models.Order{}, err
	}

	reserveRef := stock.Reference{Type: models.StockRefOrder, ID: number, Actor: req.UserID}

	// Réservation du stock, ligne par ligne. Au premier échec, on relâche tout
	// ce qui a déjà été pris : une commande est tout ou rien.
	var reserved []ItemRequest
	rollback := func() {
		for _, r := range reserved {
			if err := c.ledger.Release(context.Background(), r.ProductID, r.Quantity,
				stock.Reference{Type: models.StockRefCancellation, ID: number, Actor: req.UserID}); err != nil {
				log.Printf("❌ Rollback de stock impossible (produit %s, commande %s): %v", r.ProductID, number, err)
			}
		}
	}

	var items []models.OrderItem
	var subtotal float64
	for _, reqItem := range req.Items {
		product, err := c.catalog.Product(ctx, reqItem.ProductID)
		if err != nil {
			rollback()
			return models.Order{}, err
		}
		if !product.IsActive {
			rollback()
			return models.Order{}, fmt.Errorf("%w: produit %s indisponible", ErrInvalidRequest, product.Name)
		}

		if err := c.ledger.Reserve(ctx, reqItem.ProductID, reqItem.Quantity, reserveRef); err != nil {
			rollback()
			return models.Order{}, err
		}
		reserved = append(reserved, reqItem)

		lineTotal := product.Price * float64(reqItem.Quantity)
		items = append(items, models.OrderItem{
			OrderID:   orderID,
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  reqItem.Quantity,
			UnitPrice: product.Price,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}

	applied, discount, err := c.coupons.ResolveDiscounts(ctx, subtotal, req.CouponCodes)
	if err != nil {
		rollback()
		return models.Order{}, err
	}

	fee := c.fees.FeeForAddress(addr, subtotal)
	total := subtotal - discount + fee
	if total < 0 {
		total = 0
	}

	// Consommation des coupons avant la persistance : si le dernier exemplaire
	// vient d'être pris par un autre checkout, celui-ci échoue proprement.
	// Tout échec ultérieur restitue ce qui a été consommé.
	var consumed []models.AppliedCoupon
	revertCoupons := func() {
		for _, a := range consumed {
			if err := c.coupons.Revert(context.Background(), a.Coupon, orderID); err != nil {
				log.Printf("❌ Restitution du coupon %s impossible (commande %s): %v", a.Coupon.Code, number, err)
			}
		}
	}

	var codes []string
	for _, a := range applied {
		if err := c.coupons.Apply(ctx, a.Coupon, orderID, req.UserID, a.Discount); err != nil {
			revertCoupons()
			rollback()
			return models.Order{}, err
		}
		consumed = append(consumed, a)
		codes = append(codes, a.Coupon.Code)
	}

	now := time.Now()
	order := models.Order{
		ID:              orderID,
		OrderNumber:     number,
		UserID:          req.UserID,
		AddressID:       req.AddressID,
		Items:           items,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		DeliveryCharges: fee,
		TotalAmount:     total,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentPending,
		AppliedCoupons:  codes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	payment := models.Payment{
		ID:        gocql.TimeUUID(),
		OrderID:   orderID,
		Method:    req.PaymentMethod,
		Amount:    total,
		Status:    models.PaymentPending,
		CreatedAt: now,
	}

	if err := c.store.Insert(ctx, order, payment); err != nil {
		revertCoupons()
		rollback()
		return models.Order{}, err
	}

	// La commande est engagée : un échec de mise en file n'annule rien, la
	// réconciliation manuelle reste possible.
	if req.PaymentMethod == models.PaymentMethodBankTransfer {
		if started := c.verifier.StartVerification(orderID, total, order.TransferContent()); !started {
			log.Printf("⚠️ Vérification non lancée pour la commande %s (déjà en file ?)", number)
		}
	}

	log.Printf("✅ Commande %s créée pour %s (total %.0f, paiement %s)",
		number, req.UserID, total, req.PaymentMethod)
	return order, nil
}

// CancelOrder annule une commande du client. La transition conditionnelle du
// store garantit qu'une annulation et une confirmation de paiement simultanées
// n'ont qu'un seul gagnant.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID gocql.UUID, userID, reason string) error {
	o, err := c.store.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o.UserID != userID {
		return ErrForbidden
	}
	if !o.Status.IsCancellable() {
		return ErrOrderNotCancellable
	}

	applied, err := c.store.MarkCancelled(ctx, orderID, reason)
	if err != nil {
		return err
	}
	if !applied {
		// Le paiement vient d'être confirmé : trop tard pour annuler.
		return ErrOrderNotCancellable
	}

	for _, item := range o.Items {
		if err := c.ledger.Release(ctx, item.ProductID, item.Quantity,
			stock.Reference{Type: models.StockRefCancellation, ID: o.OrderNumber, Actor: userID}); err != nil {
			log.Printf("❌ Stock non restitué (produit %s, commande %s): %v", item.ProductID, o.OrderNumber, err)
		}
	}

	c.verifier.StopVerification(orderID)

	log.Printf("✅ Commande %s annulée par %s (%s)", o.OrderNumber, userID, reason)
	return nil
}

func validate(req Request) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: client manquant", ErrInvalidRequest)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: panier vide", ErrInvalidRequest)
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantité invalide", ErrInvalidRequest)
		}
	}
	switch req.PaymentMethod {
	case models.PaymentMethodBankTransfer, models.PaymentMethodCard:
		return nil
	default:
		return fmt.Errorf("%w: moyen de paiement inconnu", ErrInvalidRequest)
	}
}
