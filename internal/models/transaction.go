package models

import "time"

// BankTransaction est une ligne du relevé renvoyé par l'API de la banque.
// On ne fait que la lire : le matching se fait sur AmountIn + Content.
type BankTransaction struct {
	ID        string    `json:"id"`
	AmountIn  float64   `json:"amount_in"`
	AmountOut float64   `json:"amount_out"`
	Content   string    `json:"content"` // libellé libre saisi par le client
	Reference string    `json:"reference"`
	Date      time.Time `json:"date"`
}
