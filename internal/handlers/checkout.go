package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"dahlia_back_end/internal/checkout"
	"dahlia_back_end/internal/coupon"
	"dahlia_back_end/internal/database"
	"dahlia_back_end/internal/models"
	"dahlia_back_end/internal/orders"
	"dahlia_back_end/internal/services"
	"dahlia_back_end/internal/stock"
	"dahlia_back_end/internal/utils"
	"dahlia_back_end/internal/verification"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CheckoutHandler expose le passage et l'annulation de commande.
type CheckoutHandler struct {
	Coordinator *checkout.Coordinator
	Scheduler   *verification.Scheduler
	Orders      orders.Store
}

type checkoutRequest struct {
	AddressID     string                 `json:"address_id" binding:"required"`
	PaymentMethod string                 `json:"payment_method" binding:"required"`
	Items         []checkout.ItemRequest `json:"items"`
	CouponCodes   []string               `json:"coupon_codes"`
}

// Checkout crée une commande. Sans items explicites, le panier Redis du
// client fait foi.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	addressUUID, err := uuid.Parse(req.AddressID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID adresse invalide"})
		return
	}

	items := req.Items
	if len(items) == 0 {
		items, err = loadCartItems(userID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Panier vide ou introuvable"})
			return
		}
	}

	order, err := h.Coordinator.Checkout(c.Request.Context(), checkout.Request{
		UserID:        userID,
		AddressID:     gocql.UUID(addressUUID),
		PaymentMethod: req.PaymentMethod,
		Items:         items,
		CouponCodes:   req.CouponCodes,
	})
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	// Panier consommé.
	database.Redis.Del(context.Background(), "cart:"+userID)

	resp := gin.H{"order": order}
	if req.PaymentMethod == models.PaymentMethodBankTransfer {
		resp["transfer"] = transferInstructions(order)
	}

	c.JSON(http.StatusCreated, resp)
}

// Cancel annule une commande du client connecté.
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	c.ShouldBindJSON(&body)
	if body.Reason == "" {
		body.Reason = "Annulée par le client"
	}

	userID := c.GetString("user_id")
	err = h.Coordinator.CancelOrder(c.Request.Context(), gocql.UUID(orderUUID), userID, body.Reason)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "Commande annulée"})
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
	case errors.Is(err, checkout.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Commande d'un autre client"})
	case errors.Is(err, checkout.ErrOrderNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": "Commande non annulable"})
	default:
		log.Println("❌ Erreur annulation:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
	}
}

// VerificationStatus indique si la vérification de virement tourne encore.
func (h *CheckoutHandler) VerificationStatus(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
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

	c.JSON(http.StatusOK, gin.H{
		"is_verifying":   h.Scheduler.IsVerifying(order.ID),
		"payment_status": order.PaymentStatus,
	})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// VerificationWS pousse l'état de la vérification au client jusqu'à la fin
// de la tâche, puis envoie le statut de paiement final et ferme.
func (h *CheckoutHandler) VerificationWS(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}
	orderID := gocql.UUID(orderUUID)

	order, err := h.Orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if order.UserID != c.GetString("user_id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Commande d'un autre client"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("❌ Upgrade websocket échoué:", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		verifying := h.Scheduler.IsVerifying(orderID)

		current, err := h.Orders.GetByID(context.Background(), orderID)
		if err != nil {
			return
		}

		msg := gin.H{
			"is_verifying":   verifying,
			"payment_status": current.PaymentStatus,
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
		if !verifying {
			return
		}
	}
}

func loadCartItems(userID string) ([]checkout.ItemRequest, error) {
	cartData, err := database.Redis.Get(context.Background(), "cart:"+userID).Result()
	if err != nil {
		return nil, err
	}

	var cartItems []models.CartItem
	if err := json.Unmarshal([]byte(cartData), &cartItems); err != nil {
		return nil, err
	}

	items := make([]checkout.ItemRequest, 0, len(cartItems))
	for _, item := range cartItems {
		productUUID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("ID produit invalide: %s", item.ProductID)
		}
		items = append(items, checkout.ItemRequest{
			ProductID: gocql.UUID(productUUID),
			Quantity:  item.Quantity,
		})
	}
	return items, nil
}

// transferInstructions construit les consignes de virement, avec un QR soit
// hébergé sur MinIO, soit inline si MinIO est indisponible.
func transferInstructions(order models.Order) gin.H {
	instructions := gin.H{
		"content": order.TransferContent(),
		"amount":  order.TotalAmount,
	}

	png, err := utils.GenerateTransferQR(order)
	if err != nil {
		log.Println("⚠️ Génération QR échouée:", err)
		return instructions
	}

	objectName := fmt.Sprintf("transfers/%s.png", order.OrderNumber)
	if url, err := services.UploadBytes(context.Background(), objectName, png, "image/png"); err == nil {
		instructions["qr_url"] = url
	} else {
		instructions["qr_inline"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}

	return instructions
}

func respondCheckoutError(c *gin.Context, err error) {
	var insufficient *stock.InsufficientStockError

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Stock insuffisant",
			"product":   insufficient.ProductID.String(),
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.Is(err, stock.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
	case errors.Is(err, checkout.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Adresse introuvable ou non autorisée"})
	case errors.Is(err, checkout.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, coupon.ErrCouponNotFound),
		errors.Is(err, coupon.ErrCouponInactive),
		errors.Is(err, coupon.ErrCouponNotStarted),
		errors.Is(err, coupon.ErrCouponExpired),
		errors.Is(err, coupon.ErrCouponExhausted),
		errors.Is(err, coupon.ErrMinOrderNotMet):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon refusé", "details": err.Error()})
	default:
		log.Println("❌ Erreur checkout:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
	}
}
