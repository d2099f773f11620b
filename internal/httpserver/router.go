package httpserver

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"storefront/internal/repository/localstore"
	"storefront/internal/service/oauth"
	"storefront/internal/storefront"
)

// Deps holds the collaborators the router needs.
type Deps struct {
	Registry       *storefront.Registry
	Storage        localstore.Repository
	Cookies        sessions.Store
	OAuth          *oauth.Service
	ImageHost      string
	AllowedOrigins []string
}

type handlers struct {
	deps   Deps
	logger *log.Logger
}

// buildRouter wires the shell's routes.
func buildRouter(logger *log.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if deps.Cookies == nil {
		return nil, errors.New("cookie store is required")
	}
	h := &handlers{deps: deps, logger: logger}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.AllowedOrigins)))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Storage, deps.Registry))

	app := router.Group("/", browserMiddleware(deps.Cookies, logger), h.shellMiddleware)
	app.GET("/", h.home)
	app.POST("/logout", h.logout)

	guest := app.Group("/", guestOnly)
	guest.GET("/login", h.loginPage)
	guest.POST("/login", h.login)
	guest.GET("/signup", h.signupPage)
	guest.POST("/signup", h.signup)
	guest.GET("/auth/:provider/start", h.oauthStart)
	guest.GET("/auth/:provider/callback", h.oauthCallback)
	guest.POST("/password/reset", h.requestPasswordReset)
	guest.POST("/password/reset/confirm", h.confirmPasswordReset)

	api := app.Group("/api")
	api.GET("/session", h.currentSession)
	api.GET("/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)
	// Called from catalog screens; without a session they answer 401 with a
	// login hint instead of redirecting.
	api.POST("/cart/items", h.addToCart)
	api.POST("/wishlist/toggle", h.toggleWishlist)

	member := api.Group("/", requireSession)
	member.POST("/session/refresh", h.refreshSession)
	member.GET("/cart", h.getCart)
	member.POST("/cart/items/:productId/increment", h.incrementCartItem)
	member.POST("/cart/items/:productId/decrement", h.decrementCartItem)
	member.DELETE("/cart/items/:productId", h.removeCartItem)
	member.DELETE("/cart", h.clearCart)
	member.GET("/wishlist", h.getWishlist)
	member.DELETE("/wishlist/items/:productId", h.removeWishlistItem)
	member.POST("/wishlist/items/:productId/move-to-cart", h.moveToCart)
	member.POST("/checkout/review", h.reviewCheckout)
	member.POST("/checkout/submit", h.submitCheckout)
	member.GET("/checkout/confirmation", h.confirmation)
	member.GET("/orders", h.listOrders)
	member.GET("/orders/:id", h.getOrder)
	member.GET("/notifications", h.listNotifications)
	member.POST("/notifications/:id/read", h.markNotificationRead)
	member.GET("/settings/profile", h.getProfile)
	member.PATCH("/settings/profile", h.updateProfile)
	member.POST("/settings/password", h.changePassword)

	admin := api.Group("/admin", requireAdmin)
	admin.GET("/stats", h.adminStats)
	admin.GET("/orders", h.adminOrders)
	admin.PATCH("/orders/:id", h.adminSetOrderStatus)
	admin.GET("/users", h.adminUsers)
	admin.PATCH("/users/:id", h.adminSetUserBlocked)
	admin.DELETE("/users/:id", h.adminDeleteUser)
	admin.GET("/products", h.adminProducts)
	admin.POST("/products", h.adminCreateProduct)
	admin.PATCH("/products/:id", h.adminUpdateProduct)
	admin.DELETE("/products/:id", h.adminDeleteProduct)
	admin.POST("/notifications", h.adminBroadcast)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if strings.TrimSpace(o) == "*" {
			conf.AllowAllOrigins = true
			conf.AllowCredentials = false
			return conf
		}
	}
	conf.AllowOrigins = origins
	return conf
}
