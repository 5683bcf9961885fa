// Package verification surveille le relevé bancaire et confirme les paiements
// par virement. Une tâche par commande, avec sa propre échéance.
package verification

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"dahlia_back_end/internal/bank"
	"dahlia_back_end/internal/models"

	"github.com/gocql/gocql"
)

const (
	DefaultPollInterval = 45 * time.Second
	DefaultDeadline     = 20 * time.Minute
)

// PaymentConfirmer est la seule écriture dont le scheduler a besoin.
// La transition est conditionnelle côté store : si la commande a été annulée
// entre-temps, applied vaut false et la confirmation est abandonnée.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID gocql.UUID, transactionID string) (bool, error)
}

type task struct {
	cancel context.CancelFunc
}

// Scheduler fait tourner une goroutine de polling par commande en attente de
// virement. Tout l'état vit dans l'instance : rien de global.
type Scheduler struct {
	feed  bank.TransactionFeed
	store PaymentConfirmer

	// À régler avant le premier StartVerification.
	PollInterval time.Duration
	Deadline     time.Duration
	OnConfirmed  func(orderID gocql.UUID)
	OnTimedOut   func(orderID gocql.UUID)

	mu    sync.Mutex
	tasks map[gocql.UUID]*task
	wg    sync.WaitGroup
}

func NewScheduler(feed bank.TransactionFeed, store PaymentConfirmer) *Scheduler {
	return &Scheduler{
		feed:         feed,
		store:        store,
		PollInterval: DefaultPollInterval,
		Deadline:     DefaultDeadline,
		tasks:        make(map[gocql.UUID]*task),
	}
}

// StartVerification enregistre la commande et lance le polling. Retourne false
// sans rien faire si une vérification est déjà en cours pour cette commande.
func (s *Scheduler) StartVerification(orderID gocql.UUID, expectedAmount float64, transferContent string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[orderID]; exists {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel}
	s.tasks[orderID] = t

	s.wg.Add(1)
	go s.run(ctx, t, orderID, expectedAmount, transferContent)

	log.Printf("💳 Vérification lancée pour la commande %s (libellé %s, montant %.0f)",
		orderID, transferContent, expectedAmount)
	return true
}

// StopVerification arrête la tâche de la commande. Sans effet si aucune
// vérification n'est en cours.
func (s *Scheduler) StopVerification(orderID gocql.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[orderID]; ok {
		t.cancel()
		delete(s.tasks, orderID)
	}
}

// IsVerifying indique si une vérification est en cours pour la commande.
func (s *Scheduler) IsVerifying(orderID gocql.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[orderID]
	return ok
}

// Shutdown arrête toutes les tâches et attend leur fin.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id, t := range s.tasks {
		t.cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, t *task, orderID gocql.UUID, expectedAmount float64, transferContent string) {
	defer s.wg.Done()
	defer s.remove(orderID, t)

	deadline := time.NewTimer(s.Deadline)
	defer deadline.Stop()

	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	// Premier passage immédiat : le virement peut déjà être sur le relevé.
	if s.poll(ctx, orderID, expectedAmount, transferContent) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			log.Printf("⚠️ Vérification expirée pour la commande %s : paiement toujours en attente, réconciliation manuelle requise", orderID)
			if s.OnTimedOut != nil {
				s.OnTimedOut(orderID)
			}
			return
		case <-ticker.C:
			if s.poll(ctx, orderID, expectedAmount, transferContent) {
				return
			}
		}
	}
}

// poll lit le relevé et tente la confirmation. Retourne true quand la tâche
// est terminée (virement trouvé, que la transition ait gagné ou non).
func (s *Scheduler) poll(ctx context.Context, orderID gocql.UUID, expectedAmount float64, transferContent string) bool {
	transactions, err := s.feed.Recent(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// Erreur passagère (réseau, banque) : on retentera au prochain tick.
		log.Printf("⚠️ Relevé bancaire indisponible (commande %s): %v", orderID, err)
		return false
	}

	for _, tx := range transactions {
		if !Matches(tx, expectedAmount, transferContent) {
			continue
		}

		applied, err := s.store.ConfirmPayment(ctx, orderID, tx.ID)
		if err != nil {
			log.Printf("❌ Confirmation impossible pour la commande %s: %v", orderID, err)
			return false
		}
		if applied {
			log.Printf("✅ Virement reçu pour la commande %s (transaction %s)", orderID, tx.ID)
			if s.OnConfirmed != nil {
				s.OnConfirmed(orderID)
			}
		} else {
			// Commande annulée (ou déjà payée) entre-temps : on n'écrase rien.
			log.Printf("⚠️ Virement trouvé pour la commande %s mais paiement plus en attente, confirmation abandonnée", orderID)
		}
		return true
	}
	return false
}

// remove ne retire que sa propre entrée : si la vérification a été relancée
// entre-temps, l'entrée du registre appartient à la nouvelle tâche.
func (s *Scheduler) remove(orderID gocql.UUID, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.tasks[orderID]; ok && cur == t {
		delete(s.tasks, orderID)
	}
}

// Matches vérifie qu'une transaction correspond au virement attendu :
// montant entrant strictement égal et libellé contenant le contenu attendu,
// sans tenir compte de la casse.
func Matches(tx models.BankTransaction, expectedAmount float64, transferContent string) bool {
	return tx.AmountIn == expectedAmount &&
		strings.Contains(strings.ToUpper(tx.Content), strings.ToUpper(transferContent))
}
