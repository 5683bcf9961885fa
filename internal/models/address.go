package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Zones de livraison, utilisées par le calcul des frais.
const (
	ZoneLocal    = "local"
	ZoneNational = "national"
	ZoneRemote   = "remote"
)

type Address struct {
	ID        gocql.UUID `json:"id"`
	UserID    string     `json:"user_id"`
	FullName  string     `json:"full_name"`
	Phone     string     `json:"phone"`
	Street    string     `json:"street"`
	City      string     `json:"city"`
	Zone      string     `json:"zone"` // "local", "national", "remote"
	IsDefault bool       `json:"is_default"`
	CreatedAt time.Time  `json:"created_at"`
}
