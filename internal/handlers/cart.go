package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"dahlia_back_end/internal/database"
	"dahlia_back_end/internal/models"

	"github.com/gin-gonic/gin"
)

// Le panier vit dans Redis, une clé par client, TTL 7 jours.
const cartTTL = 7 * 24 * time.Hour

func cartKey(userID string) string {
	return "cart:" + userID
}

// GetCart retourne le panier du client connecté.
func GetCart(c *gin.Context) {
	userID := c.GetString("user_id")

	data, err := database.Redis.Get(context.Background(), cartKey(userID)).Result()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"items": []models.CartItem{}})
		return
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture panier"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SaveCart remplace le panier du client connecté.
func SaveCart(c *gin.Context) {
	userID := c.GetString("user_id")

	var req struct {
		Items []models.CartItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	for _, item := range req.Items {
		if item.Quantity < 1 || item.ProductID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Ligne de panier invalide"})
			return
		}
	}

	data, err := json.Marshal(req.Items)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	if err := database.Redis.Set(context.Background(), cartKey(userID), data, cartTTL).Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur sauvegarde panier"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": req.Items})
}

// ClearCart vide le panier.
func ClearCart(c *gin.Context) {
	userID := c.GetString("user_id")
	database.Redis.Del(context.Background(), cartKey(userID))
	c.JSON(http.StatusOK, gin.H{"message": "Panier vidé"})
}
