// Package stock tient le stock produit et son journal de mouvements.
// La règle absolue : un stock négatif n'est jamais observable, même sous
// réservations concurrentes.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocql/gocql"
)

var ErrProductNotFound = errors.New("produit introuvable")

// InsufficientStockError nomme le produit fautif : le checkout le remonte
// tel quel au client.
type InsufficientStockError struct {
	ProductID gocql.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuffisant pour %s: disponible %d, demandé %d",
		e.ProductID, e.Available, e.Requested)
}

// Reference relie un mouvement de stock à son origine (commande, annulation…).
type Reference struct {
	Type  string // models.StockRefOrder, models.StockRefCancellation, ...
	ID    string
	Actor string
}

// Ledger expose les deux seules opérations dont le checkout a besoin.
// Reserve échoue avec *InsufficientStockError si le stock courant est
// inférieur à la quantité demandée ; le test-puis-décrément est atomique.
// Release est l'incrément symétrique utilisé à l'annulation.
type Ledger interface {
	Reserve(ctx context.Context, productID gocql.UUID, quantity int, ref Reference) error
	Release(ctx context.Context, productID gocql.UUID, quantity int, ref Reference) error
}
