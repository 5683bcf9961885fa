package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Types de référence d'un mouvement de stock.
const (
	StockRefOrder        = "Order"
	StockRefCancellation = "Cancellation"
	StockRefRestock      = "Restock"
	StockRefAdjustment   = "Adjustment"
)

// StockMovement est un journal en append-only : jamais modifié, jamais supprimé.
type StockMovement struct {
	ID        gocql.UUID `json:"id"`
	ProductID gocql.UUID `json:"product_id"`
	Quantity  int        `json:"quantity"` // delta signé (-3 = réservation de 3)
	PrevStock int        `json:"prev_stock"`
	NewStock  int        `json:"new_stock"`
	RefType   string     `json:"ref_type"` // "Order", "Cancellation", ...
	RefID     string     `json:"ref_id"`
	Actor     string     `json:"actor"`
	CreatedAt time.Time  `json:"created_at"`
}

type StockAlert struct {
	ID             gocql.UUID `json:"id"`
	ProductID      gocql.UUID `json:"product_id"`
	ProductName    string     `json:"product_name"`
	CurrentStock   int        `json:"current_stock"`
	ThresholdStock int        `json:"threshold_stock"`
	AlertType      string     `json:"alert_type"` // "low_stock", "out_of_stock"
	IsResolved     bool       `json:"is_resolved"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}
