package handlers

import (
	"errors"
	"log"
	"net/http"

	"dahlia_back_end/internal/database"
	"dahlia_back_end/internal/models"
	"dahlia_back_end/internal/stock"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
)

// InventoryHandler expose les opérations de stock réservées aux admins.
// Tout passe par le ledger : chaque mouvement laisse une ligne d'audit.
type InventoryHandler struct {
	Ledger stock.Ledger
}

type stockAdjustment struct {
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason"`
}

// Restock (admin) ajoute du stock après réception fournisseur.
func (h *InventoryHandler) Restock(c *gin.Context) {
	productID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID produit invalide"})
		return
	}

	var req stockAdjustment
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantité invalide"})
		return
	}

	ref := stock.Reference{Type: models.StockRefRestock, ID: req.Reason, Actor: c.GetString("user_id")}
	if err := h.Ledger.Release(c.Request.Context(), productID, req.Quantity, ref); err != nil {
		respondStockError(c, err)
		return
	}

	log.Printf("✅ Réassort de %d sur le produit %s", req.Quantity, productID)
	c.JSON(http.StatusOK, gin.H{"message": "Stock mis à jour"})
}

// Adjust (admin) corrige un stock (inventaire, casse, vol). Le delta peut
// être négatif, sans jamais passer le stock sous zéro.
func (h *InventoryHandler) Adjust(c *gin.Context) {
	productID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID produit invalide"})
		return
	}

	var req stockAdjustment
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quantité invalide"})
		return
	}

	ref := stock.Reference{Type: models.StockRefAdjustment, ID: req.Reason, Actor: c.GetString("user_id")}

	if req.Quantity > 0 {
		err = h.Ledger.Release(c.Request.Context(), productID, req.Quantity, ref)
	} else {
		err = h.Ledger.Reserve(c.Request.Context(), productID, -req.Quantity, ref)
	}
	if err != nil {
		respondStockError(c, err)
		return
	}

	log.Printf("✅ Ajustement de %+d sur le produit %s", req.Quantity, productID)
	c.JSON(http.StatusOK, gin.H{"message": "Stock ajusté"})
}

// Movements (admin) liste l'historique des mouvements d'un produit.
func (h *InventoryHandler) Movements(c *gin.Context) {
	productID, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID produit invalide"})
		return
	}

	session, err := database.GetProductsSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(`
		SELECT id, product_id, quantity, prev_stock, new_stock, ref_type, ref_id, actor, created_at
		FROM stock_movements WHERE product_id = ? ALLOW FILTERING`, productID,
	).WithContext(c.Request.Context()).Iter()

	var movements []models.StockMovement
	var m models.StockMovement
	for iter.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.PrevStock, &m.NewStock,
		&m.RefType, &m.RefID, &m.Actor, &m.CreatedAt) {
		movements = append(movements, m)
	}
	if err := iter.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"movements": movements, "count": len(movements)})
}

// LowStockAlerts (admin) liste les produits sous leur seuil d'alerte.
func (h *InventoryHandler) LowStockAlerts(c *gin.Context) {
	session, err := database.GetProductsSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(`
		SELECT product_id, name, stock, low_stock_threshold FROM products`,
	).WithContext(c.Request.Context()).Iter()

	var alerts []models.StockAlert
	var id gocql.UUID
	var name string
	var current, threshold int
	for iter.Scan(&id, &name, &current, &threshold) {
		if threshold <= 0 || current > threshold {
			continue
		}
		alertType := "low_stock"
		if current == 0 {
			alertType = "out_of_stock"
		}
		alerts = append(alerts, models.StockAlert{
			ProductID:      id,
			ProductName:    name,
			CurrentStock:   current,
			ThresholdStock: threshold,
			AlertType:      alertType,
		})
	}
	if err := iter.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func respondStockError(c *gin.Context, err error) {
	var insufficient *stock.InsufficientStockError

	switch {
	case errors.Is(err, stock.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Produit introuvable"})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Stock insuffisant",
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	default:
		log.Println("❌ Erreur stock:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
	}
}
