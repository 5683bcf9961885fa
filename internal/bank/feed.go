// Package bank lit le relevé de transactions exposé par l'API de la banque.
package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"dahlia_back_end/internal/models"
)

// TransactionFeed retourne les transactions entrantes récentes du compte.
// Lecture seule : la vérification de paiement ne fait que matcher dessus.
type TransactionFeed interface {
	Recent(ctx context.Context) ([]models.BankTransaction, error)
}

// HTTPFeed interroge l'API de la banque avec un token Bearer.
type HTTPFeed struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPFeed() *HTTPFeed {
	return &HTTPFeed{
		baseURL: os.Getenv("BANK_API_URL"),
		token:   os.Getenv("BANK_API_TOKEN"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type feedResponse struct {
	Transactions []models.BankTransaction `json:"transactions"`
}

func (f *HTTPFeed) Recent(ctx context.Context) ([]models.BankTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/transactions", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API banque: statut %d", resp.StatusCode)
	}

	var body feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("API banque: réponse illisible: %w", err)
	}
	return body.Transactions, nil
}
