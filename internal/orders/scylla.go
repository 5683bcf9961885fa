package orders

import (
	"context"
	"log"
	"time"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// ScyllaStore persiste les commandes dans le keyspace orders.
type ScyllaStore struct {
	session *gocql.Session
}

func NewScyllaStore(session *gocql.Session) *ScyllaStore {
	return &ScyllaStore{session: session}
}

const orderColumns = `id, order_number, user_id, address_id, subtotal, discount_amount,
	delivery_charges, total_amount, status, payment_status, applied_coupons,
	cancel_reason, cancelled_at, created_at, updated_at`

func scanOrder(scan func(...interface{}) error) (models.Order, error) {
	var o models.Order
	err := scan(&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.Subtotal,
		&o.DiscountAmount, &o.DeliveryCharges, &o.TotalAmount, &o.Status,
		&o.PaymentStatus, &o.AppliedCoupons, &o.CancelReason, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// Insert écrit la commande, ses lignes et le paiement dans un batch logged :
// soit tout passe, soit rien.
func (s *ScyllaStore) Insert(ctx context.Context, order models.Order, payment models.Payment) error {
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	batch.Query(`
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OrderNumber, order.UserID, order.AddressID,
		order.Subtotal, order.DiscountAmount, order.DeliveryCharges,
		order.TotalAmount, order.Status, order.PaymentStatus,
		order.AppliedCoupons, order.CancelReason, order.CancelledAt,
		order.CreatedAt, order.UpdatedAt,
	)

	for _, item := range order.Items {
		batch.Query(`
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.OrderID, item.ProductID, item.Name, item.Quantity,
			item.UnitPrice, item.LineTotal,
		)
	}

	batch.Query(`
		INSERT INTO payments (id, order_id, method, amount, transaction_id, status, paid_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID, payment.OrderID, payment.Method, payment.Amount,
		payment.TransactionID, payment.Status, payment.PaidAt, payment.CreatedAt,
	)

	return s.session.ExecuteBatch(batch)
}

func (s *ScyllaStore) GetByID(ctx context.Context, id gocql.UUID) (models.Order, error) {
	q := s.session.Query(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id,
	).WithContext(ctx)

	o, err := scanOrder(q.Scan)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, err
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	o.Items = items
	return o, nil
}

func (s *ScyllaStore) GetByNumber(ctx context.Context, number string) (models.Order, error) {
	var id gocql.UUID
	err := s.session.Query(
		`SELECT id FROM orders WHERE order_number = ? LIMIT 1 ALLOW FILTERING`, number,
	).WithContext(ctx).Scan(&id)
	if err != nil {
		if err == gocql.ErrNotFound {
			return models.Order{}, ErrOrderNotFound
		}
		return models.Order{}, err
	}
	return s.GetByID(ctx, id)
}

func (s *ScyllaStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	iter := s.session.Query(
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ALLOW FILTERING`, userID,
	).WithContext(ctx).Iter()

	var list []models.Order
	var o models.Order
	for iter.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.Subtotal,
		&o.DiscountAmount, &o.DeliveryCharges, &o.TotalAmount, &o.Status,
		&o.PaymentStatus, &o.AppliedCoupons, &o.CancelReason, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt) {
		list = append(list, o)
		o = models.Order{}
	}
	return list, iter.Close()
}

func (s *ScyllaStore) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var id gocql.UUID
	err := s.session.Query(
		`SELECT id FROM orders WHERE order_number = ? LIMIT 1 ALLOW FILTERING`, number,
	).WithContext(ctx).Scan(&id)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *ScyllaStore) GetPayment(ctx context.Context, orderID gocql.UUID) (models.Payment, error) {
	var p models.Payment
	err := s.session.Query(`
		SELECT id, order_id, method, amount, transaction_id, status, paid_at, created_at
		FROM payments WHERE order_id = ? LIMIT 1 ALLOW FILTERING`, orderID,
	).WithContext(ctx).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount,
		&p.TransactionID, &p.Status, &p.PaidAt, &p.CreatedAt)
	if err == gocql.ErrNotFound {
		return models.Payment{}, ErrOrderNotFound
	}
	return p, err
}

// ConfirmPayment passe le paiement à "paid", seulement s'il est encore
// "pending". Retourne false si la transition a déjà été perdue (commande
// annulée ou déjà payée).
func (s *ScyllaStore) ConfirmPayment(ctx context.Context, orderID gocql.UUID, transactionID string) (bool, error) {
	now := time.Now()

	var seen string
	applied, err := s.session.Query(`
		UPDATE orders SET payment_status = ?, updated_at = ?
		WHERE id = ? IF payment_status = ?`,
		models.PaymentPaid, now, orderID, models.PaymentPending,
	).WithContext(ctx).ScanCAS(&seen)
	if err != nil || !applied {
		return false, err
	}

	// La ligne payments suit, hors LWT : la commande est la source de vérité.
	if err := s.session.Query(`
		UPDATE payments SET status = ?, transaction_id = ?, paid_at = ?
		WHERE order_id = ?`,
		models.PaymentPaid, transactionID, now, orderID,
	).WithContext(ctx).Exec(); err != nil {
		log.Printf("⚠️ Paiement confirmé mais ligne payments non mise à jour (commande %s): %v", orderID, err)
	}

	return true, nil
}

// MarkCancelled annule la commande, seulement si le paiement est encore
// "pending". Même garde que ConfirmPayment : un seul des deux gagne.
func (s *ScyllaStore) MarkCancelled(ctx context.Context, orderID gocql.UUID, reason string) (bool, error) {
	now := time.Now()

	var seen string
	applied, err := s.session.Query(`
		UPDATE orders SET status = ?, payment_status = ?, cancel_reason = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? IF payment_status = ?`,
		models.OrderCancelled, models.PaymentCancelled, reason, now, now,
		orderID, models.PaymentPending,
	).WithContext(ctx).ScanCAS(&seen)
	if err != nil || !applied {
		return false, err
	}

	if err := s.session.Query(`
		UPDATE payments SET status = ? WHERE order_id = ?`,
		models.PaymentCancelled, orderID,
	).WithContext(ctx).Exec(); err != nil {
		log.Printf("⚠️ Commande annulée mais ligne payments non mise à jour (commande %s): %v", orderID, err)
	}

	return true, nil
}

func (s *ScyllaStore) loadItems(ctx context.Context, orderID gocql.UUID) ([]models.OrderItem, error) {
	iter := s.session.Query(`
		SELECT order_id, product_id, name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ?`, orderID,
	).WithContext(ctx).Iter()

	var items []models.OrderItem
	var it models.OrderItem
	for iter.Scan(&it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice, &it.LineTotal) {
		items = append(items, it)
	}
	return items, iter.Close()
}
