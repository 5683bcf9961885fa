package models

import (
	"time"

	"github.com/gocql/gocql"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// IsCancellable indique si une commande peut encore être annulée par le client.
// Une fois expédiée (ou au-delà), c'est trop tard.
func (s OrderStatus) IsCancellable() bool {
	return s == OrderPending || s == OrderProcessing
}

type Order struct {
	ID              gocql.UUID    `json:"id"`
	OrderNumber     string        `json:"order_number"` // 8 caractères alphanumériques, unique
	UserID          string        `json:"user_id"`
	AddressID       gocql.UUID    `json:"address_id"`
	Items           []OrderItem   `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	DiscountAmount  float64       `json:"discount_amount"`
	DeliveryCharges float64       `json:"delivery_charges"`
	TotalAmount     float64       `json:"total_amount"` // Subtotal - DiscountAmount + DeliveryCharges
	Status          OrderStatus   `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	AppliedCoupons  []string      `json:"applied_coupons,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// OrderItem fige le prix unitaire au moment de l'achat : le prix du catalogue
// peut changer ensuite, la commande ne bouge plus.
type OrderItem struct {
	OrderID   gocql.UUID `json:"order_id"`
	ProductID gocql.UUID `json:"product_id"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	UnitPrice float64    `json:"unit_price"`
	LineTotal float64    `json:"line_total"`
}

type Payment struct {
	ID            gocql.UUID    `json:"id"`
	OrderID       gocql.UUID    `json:"order_id"`
	Method        string        `json:"method"` // "bank_transfer", "card"
	Amount        float64       `json:"amount"`
	TransactionID string        `json:"transaction_id,omitempty"` // id externe (banque ou Stripe)
	Status        PaymentStatus `json:"status"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

const (
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCard         = "card"
)

// TransferPrefix précède le numéro de commande dans le libellé de virement.
// Contrat avec la banque : ne pas modifier sans coordination.
const TransferPrefix = "DH"

// TransferContent retourne le libellé de virement attendu pour cette commande.
func (o Order) TransferContent() string {
	return TransferPrefix + o.OrderNumber
}
