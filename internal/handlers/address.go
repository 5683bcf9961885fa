package handlers

import (
	"net/http"
	"time"

	"dahlia_back_end/internal/database"
	"dahlia_back_end/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
)

type addressPayload struct {
	FullName  string `json:"full_name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	Street    string `json:"street" binding:"required"`
	City      string `json:"city" binding:"required"`
	Zone      string `json:"zone" binding:"required"`
	IsDefault bool   `json:"is_default"`
}

// CreateAddress enregistre une adresse de livraison pour le client connecté.
func CreateAddress(c *gin.Context) {
	var req addressPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	switch req.Zone {
	case models.ZoneLocal, models.ZoneNational, models.ZoneRemote:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Zone de livraison inconnue"})
		return
	}

	session, err := database.GetUsersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	addr := models.Address{
		ID:        gocql.TimeUUID(),
		UserID:    c.GetString("user_id"),
		FullName:  req.FullName,
		Phone:     req.Phone,
		Street:    req.Street,
		City:      req.City,
		Zone:      req.Zone,
		IsDefault: req.IsDefault,
		CreatedAt: time.Now(),
	}

	err = session.Query(`
		INSERT INTO addresses (id, user_id, full_name, phone, street, city, zone, is_default, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		addr.ID, addr.UserID, addr.FullName, addr.Phone, addr.Street,
		addr.City, addr.Zone, addr.IsDefault, addr.CreatedAt,
	).WithContext(c.Request.Context()).Exec()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusCreated, addr)
}

// ListAddresses retourne les adresses du client connecté.
func ListAddresses(c *gin.Context) {
	session, err := database.GetUsersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(`
		SELECT id, user_id, full_name, phone, street, city, zone, is_default, created_at
		FROM addresses WHERE user_id = ? ALLOW FILTERING`, c.GetString("user_id"),
	).WithContext(c.Request.Context()).Iter()

	var addresses []models.Address
	var a models.Address
	for iter.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Street,
		&a.City, &a.Zone, &a.IsDefault, &a.CreatedAt) {
		addresses = append(addresses, a)
	}
	if err := iter.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": addresses, "count": len(addresses)})
}
