package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"dahlia_back_end/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"
)

// StripeHandler gère le paiement par carte : création du PaymentIntent et
// webhook de confirmation. La confirmation passe par la même transition
// conditionnelle que les virements.
type StripeHandler struct {
	Orders orders.Store
}

// CreatePaymentIntent crée un PaymentIntent pour une commande déjà passée
// en paiement carte.
func (h *StripeHandler) CreatePaymentIntent(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide"})
		return
	}

	orderUUID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := h.Orders.GetByID(c.Request.Context(), gocql.UUID(orderUUID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if order.UserID != c.GetString("user_id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Commande d'un autre client"})
		return
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(order.TotalAmount * 100)),
		Currency: stripe.String("eur"),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"user_id":      order.UserID,
		},
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		log.Println("❌ Erreur Stripe:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("💳 PaymentIntent créé : %s (commande %s)", intent.ID, order.OrderNumber)

	c.JSON(http.StatusOK, gin.H{
		"clientSecret": intent.ClientSecret,
		"paymentId":    intent.ID,
	})
}

// Webhook reçoit les événements Stripe.
func (h *StripeHandler) Webhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event

	if secret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
			return
		}
	} else {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			log.Println("❌ Signature Stripe invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
			return
		}
	}

	h.handleEvent(c, event)
	c.Status(http.StatusOK)
}

func (h *StripeHandler) handleEvent(c *gin.Context, event stripe.Event) {
	if event.Type != "payment_intent.succeeded" {
		log.Printf("ℹ️ Événement Stripe ignoré : %s", event.Type)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Println("❌ Erreur décodage PaymentIntent:", err)
		return
	}

	orderIDRaw := pi.Metadata["order_id"]
	if orderIDRaw == "" {
		log.Println("⚠️ PaymentIntent sans order_id, ignoré")
		return
	}

	orderUUID, err := uuid.Parse(orderIDRaw)
	if err != nil {
		log.Println("❌ order_id invalide dans les métadonnées:", orderIDRaw)
		return
	}

	applied, err := h.Orders.ConfirmPayment(c.Request.Context(), gocql.UUID(orderUUID), pi.ID)
	if err != nil {
		log.Println("❌ Confirmation Stripe impossible:", err)
		return
	}
	if !applied {
		// Déjà payée ou annulée : le webhook peut arriver plusieurs fois.
		log.Printf("🔁 Paiement %s déjà traité ou commande plus en attente", pi.ID)
		return
	}

	log.Printf("✅ Paiement carte confirmé pour la commande %s (%s)",
		pi.Metadata["order_number"], pi.ID)
}
