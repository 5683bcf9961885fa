package utils

import (
	"fmt"
	"os"

	"dahlia_back_end/internal/models"

	qrcode "github.com/skip2/go-qrcode"
)

// GenerateTransferQR encode les informations de virement dans un QR PNG :
// compte, montant et le libellé DH + numéro que le client doit recopier.
func GenerateTransferQR(order models.Order) ([]byte, error) {
	account := os.Getenv("BANK_ACCOUNT_NUMBER")
	payload := fmt.Sprintf("BANK:%s|AMOUNT:%.0f|CONTENT:%s",
		account, order.TotalAmount, order.TransferContent())

	return qrcode.Encode(payload, qrcode.Medium, 256)
}
