// Package orders persiste les commandes et leurs transitions de paiement.
package orders

import (
	"context"
	"errors"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

var ErrOrderNotFound = errors.New("commande introuvable")

// Store est le contrat de persistance des commandes.
//
// ConfirmPayment et MarkCancelled sont des transitions conditionnelles :
// elles ne s'appliquent que si le paiement est encore "pending" et retournent
// false sinon. C'est ce qui garantit un seul gagnant quand une annulation et
// une confirmation arrivent en même temps.
type Store interface {
	Insert(ctx context.Context, order models.Order, payment models.Payment) error
	GetByID(ctx context.Context, id gocql.UUID) (models.Order, error)
	GetByNumber(ctx context.Context, number string) (models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	GetPayment(ctx context.Context, orderID gocql.UUID) (models.Payment, error)
	ConfirmPayment(ctx context.Context, orderID gocql.UUID, transactionID string) (bool, error)
	MarkCancelled(ctx context.Context, orderID gocql.UUID, reason string) (bool, error)
}
