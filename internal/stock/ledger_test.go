package stock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRef(id string) Reference {
	return Reference{Type: models.StockRefOrder, ID: id, Actor: "user123"}
}

func TestReserve_DecrementsAndLogsMovement(t *testing.T) {
	ledger := NewMemoryLedger()
	productID := gocql.TimeUUID()
	ledger.SetStock(productID, 10)

	err := ledger.Reserve(context.Background(), productID, 3, orderRef("CMD-1"))

	require.NoError(t, err)
	assert.Equal(t, 7, ledger.Stock(productID))

	movements := ledger.Movements()
	require.Len(t, movements, 1)
	assert.Equal(t, -3, movements[0].Quantity)
	assert.Equal(t, 10, movements[0].PrevStock)
	assert.Equal(t, 7, movements[0].NewStock)
	assert.Equal(t, models.StockRefOrder, movements[0].RefType)
}

func TestReserve_InsufficientStock(t *testing.T) {
	ledger := NewMemoryLedger()
	productID := gocql.TimeUUID()
	ledger.SetStock(productID, 2)

	err := ledger.Reserve(context.Background(), productID, 3, orderRef("CMD-1"))

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, productID, insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Available)
	assert.Equal(t, 3, insufficient.Requested)

	// Aucun effet de bord en cas d'échec.
	assert.Equal(t, 2, ledger.Stock(productID))
	assert.Empty(t, ledger.Movements())
}

func TestReserve_UnknownProduct(t *testing.T) {
	ledger := NewMemoryLedger()

	err := ledger.Reserve(context.Background(), gocql.TimeUUID(), 1, orderRef("CMD-1"))

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRelease_SymmetricIncrement(t *testing.T) {
	ledger := NewMemoryLedger()
	productID := gocql.TimeUUID()
	ledger.SetStock(productID, 5)

	require.NoError(t, ledger.Reserve(context.Background(), productID, 5, orderRef("CMD-1")))
	require.NoError(t, ledger.Release(context.Background(), productID, 5,
		Reference{Type: models.StockRefCancellation, ID: "CMD-1", Actor: "user123"}))

	assert.Equal(t, 5, ledger.Stock(productID))

	movements := ledger.Movements()
	require.Len(t, movements, 2)
	assert.Equal(t, models.StockRefCancellation, movements[1].RefType)
	assert.Equal(t, 5, movements[1].Quantity)
}

// Avec stock = N et des demandes concurrentes dont la somme dépasse N,
// seules les demandes satisfiables passent et le stock final reste ≥ 0.
func TestReserve_ConcurrentNeverNegative(t *testing.T) {
	ledger := NewMemoryLedger()
	productID := gocql.TimeUUID()
	ledger.SetStock(productID, 10)

	const workers = 25 // 25 × 1 unité demandée, 10 disponibles

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, failed := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Reserve(context.Background(), productID, 1, orderRef("CMD-X"))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			var insufficient *InsufficientStockError
			if errors.As(err, &insufficient) {
				failed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, failed)
	assert.Equal(t, 0, ledger.Stock(productID))
	assert.Len(t, ledger.Movements(), 10)
}
