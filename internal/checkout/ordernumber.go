package checkout

import (
	"context"
	"crypto/rand"
	"math/big"
)

// Alphabet sans caractères ambigus (pas de 0/O ni 1/I/L) : le numéro est
// recopié à la main par le client dans son libellé de virement.
const orderNumberAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	orderNumberLength      = 8
	orderNumberMaxAttempts = 5
)

// generateOrderNumber tire un numéro aléatoire et vérifie qu'il est libre.
// Une collision est improbable (31^8 combinaisons) ; si elle persiste après
// plusieurs tirages, on abandonne plutôt que de boucler.
func (c *Coordinator) generateOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < orderNumberMaxAttempts; attempt++ {
		number, err := randomOrderNumber()
		if err != nil {
			return "", err
		}
		exists, err := c.store.OrderNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", ErrOrderNumberCollision
}

func randomOrderNumber() (string, error) {
	max := big.NewInt(int64(len(orderNumberAlphabet)))
	buf := make([]byte, orderNumberLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = orderNumberAlphabet[n.Int64()]
	}
	return string(buf), nil
}
