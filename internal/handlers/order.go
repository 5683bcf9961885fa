package handlers

import (
	"net/http"

	"dahlia_back_end/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// OrderHandler expose la consultation des commandes du client connecté.
type OrderHandler struct {
	Store orders.Store
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID := c.GetString("user_id")

	list, err := h.Store.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := h.Store.GetByID(c.Request.Context(), gocql.UUID(orderUUID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}
	if order.UserID != c.GetString("user_id") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Commande d'un autre client"})
		return
	}

	payment, err := h.Store.GetPayment(c.Request.Context(), order.ID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"order": order})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order, "payment": payment})
}
