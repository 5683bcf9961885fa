package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"dahlia_back_end/internal/bank"
	"dahlia_back_end/internal/checkout"
	"dahlia_back_end/internal/config"
	"dahlia_back_end/internal/coupon"
	"dahlia_back_end/internal/database"
	"dahlia_back_end/internal/handlers"
	"dahlia_back_end/internal/orders"
	"dahlia_back_end/internal/routes"
	"dahlia_back_end/internal/shipping"
	"dahlia_back_end/internal/stock"
	"dahlia_back_end/internal/utils"
	"dahlia_back_end/internal/verification"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/stripe/stripe-go/v83"
)

func main() {
	config.Load()

	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		log.Println("⚠️ STRIPE_SECRET_KEY manquante : paiement carte désactivé, virement uniquement")
	} else {
		log.Println("✅ Stripe initialisé")
	}

	database.ConnectDatabases()

	productsSession, err := database.GetProductsSession()
	if err != nil {
		log.Fatal("❌ Session products indisponible:", err)
	}
	usersSession, err := database.GetUsersSession()
	if err != nil {
		log.Fatal("❌ Session users indisponible:", err)
	}
	ordersSession, err := database.GetOrdersSession()
	if err != nil {
		log.Fatal("❌ Session orders indisponible:", err)
	}

	ledger := stock.NewScyllaLedger(productsSession)
	couponEngine := coupon.NewEngine(coupon.NewScyllaStore(ordersSession))
	orderStore := orders.NewScyllaStore(ordersSession)

	scheduler := verification.NewScheduler(bank.NewHTTPFeed(), orderStore)
	scheduler.PollInterval = envDuration("VERIFICATION_POLL_INTERVAL_SECONDS", verification.DefaultPollInterval)
	scheduler.Deadline = envDuration("VERIFICATION_DEADLINE_SECONDS", verification.DefaultDeadline)
	scheduler.OnConfirmed = func(orderID gocql.UUID) {
		go sendPaymentConfirmation(orderStore, usersSession, orderID)
	}
	scheduler.OnTimedOut = func(orderID gocql.UUID) {
		// Laissé en attente exprès : la réconciliation se fait à la main.
		log.Printf("⚠️ Commande %s à réconcilier manuellement", orderID)
	}

	coordinator := checkout.NewCoordinator(
		ledger,
		couponEngine,
		orderStore,
		checkout.NewScyllaCatalog(productsSession),
		checkout.NewScyllaAddressBook(usersSession),
		shipping.NewZoneCalculator(),
		scheduler,
	)

	r := gin.Default()
	routes.RegisterRoutes(r, routes.Handlers{
		Checkout: &handlers.CheckoutHandler{
			Coordinator: coordinator,
			Scheduler:   scheduler,
			Orders:      orderStore,
		},
		Orders:    &handlers.OrderHandler{Store: orderStore},
		Stripe:    &handlers.StripeHandler{Orders: orderStore},
		Coupons:   &handlers.CouponHandler{Engine: couponEngine},
		Inventory: &handlers.InventoryHandler{Ledger: ledger},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{Addr: ":" + port, Handler: r}

	go func() {
		log.Println("🚀 Serveur Dahlia lancé sur le port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Erreur serveur:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🔌 Arrêt du serveur…")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("⚠️ Arrêt HTTP forcé:", err)
	}

	// Les vérifications en cours s'arrêtent proprement ; les commandes
	// restent en attente et seront réconciliées au prochain virement vu.
	scheduler.Shutdown()
	database.CloseScylla()
	log.Println("✅ Serveur arrêté")
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		log.Printf("⚠️ %s invalide (%q), valeur par défaut conservée", key, raw)
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// sendPaymentConfirmation envoie l'e-mail de confirmation une fois le
// virement reçu. Tout échec est loggé, jamais bloquant.
func sendPaymentConfirmation(store orders.Store, usersSession *gocql.Session, orderID gocql.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	order, err := store.GetByID(ctx, orderID)
	if err != nil {
		log.Println("⚠️ E-mail de confirmation non envoyé, commande introuvable:", err)
		return
	}

	var email string
	if err := usersSession.Query(`SELECT email FROM users WHERE user_id = ?`, order.UserID).
		WithContext(ctx).Scan(&email); err != nil {
		log.Println("⚠️ E-mail de confirmation non envoyé, client introuvable:", err)
		return
	}

	html := utils.GeneratePaymentConfirmationHTML(order)
	subject := "Paiement reçu — commande " + order.OrderNumber
	if err := utils.SendConfirmationEmail(email, subject, html); err != nil {
		log.Println("⚠️ Envoi e-mail échoué:", err)
	}
}
