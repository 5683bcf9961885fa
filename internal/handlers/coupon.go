package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"dahlia_back_end/internal/coupon"
	"dahlia_back_end/internal/database"
	"dahlia_back_end/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
)

// CouponHandler expose la validation côté client et le CRUD admin.
type CouponHandler struct {
	Engine *coupon.Engine
}

// ValidateCoupon permet au front de prévisualiser la réduction avant le
// checkout. La consommation réelle n'a lieu qu'au passage de commande.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req struct {
		Code   string  `json:"code" binding:"required"`
		Amount float64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	validated, err := h.Engine.Validate(c.Request.Context(), req.Code, req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon refusé", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"coupon":   validated,
		"discount": coupon.ComputeDiscount(validated, req.Amount),
	})
}

type couponPayload struct {
	Code              string  `json:"code" binding:"required"`
	Type              string  `json:"type" binding:"required"`
	Value             float64 `json:"value" binding:"required"`
	MinOrderAmount    float64 `json:"min_order_amount"`
	MaxDiscountAmount float64 `json:"max_discount_amount"`
	Quantity          int     `json:"quantity"`
	IsAutoApply       bool    `json:"is_auto_apply"`
	StartsAt          string  `json:"starts_at"`
	ExpiresAt         string  `json:"expires_at" binding:"required"`
}

// CreateCoupon (admin) enregistre un nouveau code promo.
func CreateCoupon(c *gin.Context) {
	var req couponPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	if req.Type != models.CouponTypePercentage && req.Type != models.CouponTypeFixed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type de coupon inconnu"})
		return
	}
	if req.Type == models.CouponTypePercentage && (req.Value <= 0 || req.Value > 100) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pourcentage invalide"})
		return
	}

	startsAt := time.Now()
	if req.StartsAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.StartsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Date de début invalide"})
			return
		}
		startsAt = parsed
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Date d'expiration invalide"})
		return
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	now := time.Now()
	id := gocql.TimeUUID()
	err = session.Query(`
		INSERT INTO coupons (id, code, type, value, min_order_amount, max_discount_amount,
			quantity, is_auto_apply, starts_at, expires_at, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, true, ?, ?, ?)`,
		id, strings.ToUpper(req.Code), req.Type, req.Value, req.MinOrderAmount,
		req.MaxDiscountAmount, req.Quantity, req.IsAutoApply, startsAt, expiresAt,
		c.GetString("user_id"), now, now,
	).WithContext(c.Request.Context()).Exec()
	if err != nil {
		log.Println("❌ Erreur création coupon:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	log.Printf("✅ Coupon %s créé (%s %.0f)", strings.ToUpper(req.Code), req.Type, req.Value)
	c.JSON(http.StatusCreated, gin.H{"id": id, "code": strings.ToUpper(req.Code)})
}

// ListCoupons (admin) liste tous les coupons.
func ListCoupons(c *gin.Context) {
	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(`
		SELECT id, code, type, value, min_order_amount, max_discount_amount,
			quantity, is_auto_apply, starts_at, expires_at, is_active, created_by, created_at, updated_at
		FROM coupons`,
	).WithContext(c.Request.Context()).Iter()

	var coupons []models.Coupon
	var cp models.Coupon
	for iter.Scan(&cp.ID, &cp.Code, &cp.Type, &cp.Value, &cp.MinOrderAmount,
		&cp.MaxDiscountAmount, &cp.Quantity, &cp.IsAutoApply, &cp.StartsAt,
		&cp.ExpiresAt, &cp.IsActive, &cp.CreatedBy, &cp.CreatedAt, &cp.UpdatedAt) {
		coupons = append(coupons, cp)
	}
	if err := iter.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coupons": coupons, "count": len(coupons)})
}

// ToggleCoupon (admin) active ou désactive un coupon.
func ToggleCoupon(c *gin.Context) {
	id, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID coupon invalide"})
		return
	}

	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_active requis"})
		return
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	err = session.Query(`UPDATE coupons SET is_active = ?, updated_at = ? WHERE id = ?`,
		*req.IsActive, time.Now(), id,
	).WithContext(c.Request.Context()).Exec()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon mis à jour"})
}

// DeleteCoupon (admin) supprime un coupon.
func DeleteCoupon(c *gin.Context) {
	id, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID coupon invalide"})
		return
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	if err := session.Query(`DELETE FROM coupons WHERE id = ?`, id).
		WithContext(c.Request.Context()).Exec(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon supprimé"})
}
