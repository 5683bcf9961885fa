package stock

import (
	"context"
	"fmt"
	"log"
	"time"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// Nombre d'essais CAS avant d'abandonner sous forte contention.
const casMaxAttempts = 8

// ScyllaLedger implémente Ledger avec des transactions légères (LWT) :
// le `IF stock = ?` garantit que lire-décider-écrire est un seul pas atomique
// côté cluster, pas deux requêtes vulnérables à une course.
type ScyllaLedger struct {
	session *gocql.Session
}

func NewScyllaLedger(session *gocql.Session) *ScyllaLedger {
	return &ScyllaLedger{session: session}
}

func (l *ScyllaLedger) Reserve(ctx context.Context, productID gocql.UUID, quantity int, ref Reference) error {
	return l.adjust(ctx, productID, -quantity, ref)
}

func (l *ScyllaLedger) Release(ctx context.Context, productID gocql.UUID, quantity int, ref Reference) error {
	return l.adjust(ctx, productID, quantity, ref)
}

// adjust applique un delta signé avec un CAS retenté sous contention.
func (l *ScyllaLedger) adjust(ctx context.Context, productID gocql.UUID, delta int, ref Reference) error {
	var current int
	if err := l.session.Query(
		`SELECT stock FROM products WHERE product_id = ?`, productID,
	).WithContext(ctx).Scan(&current); err != nil {
		if err == gocql.ErrNotFound {
			return ErrProductNotFound
		}
		return err
	}

	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		next := current + delta
		if next < 0 {
			return &InsufficientStockError{
				ProductID: productID,
				Available: current,
				Requested: -delta,
			}
		}

		applied, err := l.session.Query(
			`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			next, time.Now(), productID, current,
		).WithContext(ctx).ScanCAS(&current)
		if err != nil {
			return err
		}
		if applied {
			l.recordMovement(ctx, productID, delta, current, next, ref)
			return nil
		}
		// Pas appliqué : `current` contient maintenant la valeur vue par le
		// cluster, on retente dessus.
	}

	return fmt.Errorf("stock produit %s: contention CAS persistante", productID)
}

// recordMovement ajoute la ligne d'audit. Un échec ici ne doit pas annuler
// l'ajustement déjà appliqué : on logge et on continue.
func (l *ScyllaLedger) recordMovement(ctx context.Context, productID gocql.UUID, delta, prev, next int, ref Reference) {
	movement := models.StockMovement{
		ID:        gocql.TimeUUID(),
		ProductID: productID,
		Quantity:  delta,
		PrevStock: prev,
		NewStock:  next,
		RefType:   ref.Type,
		RefID:     ref.ID,
		Actor:     ref.Actor,
		CreatedAt: time.Now(),
	}

	if err := l.session.Query(`
		INSERT INTO stock_movements (
			id, product_id, quantity, prev_stock, new_stock, ref_type, ref_id, actor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		movement.ID, movement.ProductID, movement.Quantity, movement.PrevStock,
		movement.NewStock, movement.RefType, movement.RefID, movement.Actor,
		movement.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		log.Printf("⚠️ Erreur enregistrement mouvement stock: %v", err)
	}
}
