// Package shipping calcule les frais de livraison d'une commande.
package shipping

import "dahlia_back_end/internal/models"

// FeeCalculator retourne les frais de livraison pour une adresse et un
// sous-total donnés. Fonction pure : mêmes entrées, mêmes frais.
type FeeCalculator interface {
	FeeForAddress(addr models.Address, subtotal float64) float64
}

// Frais par zone. Au-dessus du seuil, la livraison est offerte.
const (
	FreeShippingThreshold = 500000

	feeLocal    = 15000
	feeNational = 30000
	feeRemote   = 45000
)

// ZoneCalculator applique la grille par zone de l'adresse.
type ZoneCalculator struct{}

func NewZoneCalculator() ZoneCalculator {
	return ZoneCalculator{}
}

func (ZoneCalculator) FeeForAddress(addr models.Address, subtotal float64) float64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	switch addr.Zone {
	case models.ZoneLocal:
		return feeLocal
	case models.ZoneRemote:
		return feeRemote
	default:
		// Zone inconnue : on facture le tarif national plutôt que d'offrir.
		return feeNational
	}
}
