package routes

import (
	"os"
	"strings"
	"time"

	"dahlia_back_end/internal/handlers"
	"dahlia_back_end/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers regroupe les handlers à dépendances injectées. Les handlers
// purement CRUD restent des fonctions de package.
type Handlers struct {
	Checkout  *handlers.CheckoutHandler
	Orders    *handlers.OrderHandler
	Stripe    *handlers.StripeHandler
	Coupons   *handlers.CouponHandler
	Inventory *handlers.InventoryHandler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(os.Getenv("CORS_ORIGINS"), ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	api.Use(middleware.APIRateLimit())

	// Public
	api.POST("/auth/register", handlers.Register)
	api.POST("/auth/login", handlers.Login)
	api.GET("/products", handlers.GetProducts)
	api.GET("/products/search", handlers.SearchProducts)
	api.GET("/products/:id", handlers.GetProduct)
	api.POST("/stripe/webhook", h.Stripe.Webhook)

	// Client connecté
	auth := api.Group("")
	auth.Use(middleware.AuthRequired())
	{
		auth.GET("/cart", handlers.GetCart)
		auth.PUT("/cart", handlers.SaveCart)
		auth.DELETE("/cart", handlers.ClearCart)

		auth.GET("/addresses", handlers.ListAddresses)
		auth.POST("/addresses", handlers.CreateAddress)

		auth.POST("/coupons/validate", h.Coupons.ValidateCoupon)

		auth.POST("/checkout", middleware.CheckoutRateLimit(), h.Checkout.Checkout)
		auth.POST("/payments/intent", h.Stripe.CreatePaymentIntent)

		auth.GET("/orders", h.Orders.ListMyOrders)
		auth.GET("/orders/:id", h.Orders.GetOrder)
		auth.POST("/orders/:id/cancel", h.Checkout.Cancel)
		auth.GET("/orders/:id/verification", h.Checkout.VerificationStatus)
		auth.GET("/orders/:id/verification/ws", h.Checkout.VerificationWS)
	}

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.RequireAdmin())
	{
		admin.POST("/products", handlers.CreateProduct)
		admin.PUT("/products/:id", handlers.UpdateProduct)
		admin.POST("/products/:id/image", handlers.UploadProductImage)

		admin.POST("/products/:id/restock", h.Inventory.Restock)
		admin.POST("/products/:id/adjust", h.Inventory.Adjust)
		admin.GET("/products/:id/movements", h.Inventory.Movements)
		admin.GET("/stock/alerts", h.Inventory.LowStockAlerts)

		admin.GET("/coupons", handlers.ListCoupons)
		admin.POST("/coupons", handlers.CreateCoupon)
		admin.PATCH("/coupons/:id", handlers.ToggleCoupon)
		admin.DELETE("/coupons/:id", handlers.DeleteCoupon)
	}
}
