package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/controller"
	"github.com/ikkim/storefront/internal/middleware"
)

type Router struct {
	authController     *controller.AuthController
	cartController     *controller.CartController
	catalogController  *controller.CatalogController
	orderController    *controller.OrderController
	paymentController  *controller.PaymentController
	realtimeController *controller.RealtimeController
	sessions           *middleware.SessionMiddleware
	config             *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	cartController *controller.CartController,
	catalogController *controller.CatalogController,
	orderController *controller.OrderController,
	paymentController *controller.PaymentController,
	realtimeController *controller.RealtimeController,
	sessions *middleware.SessionMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:     authController,
		cartController:     cartController,
		catalogController:  catalogController,
		orderController:    orderController,
		paymentController:  paymentController,
		realtimeController: realtimeController,
		sessions:           sessions,
		config:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Storefront gateway is running",
		})
	})

	visitor := router.Group("", r.sessions.Attach())
	requireAuth := middleware.RequireAuth()

	visitor.GET("/ws", r.realtimeController.WebSocketHandler)
	visitor.GET("/checkout/pay/:orderId", requireAuth, r.paymentController.Pay)

	v1 := visitor.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authController.Register)
			auth.POST("/login", r.authController.Login)
			auth.POST("/logout", r.authController.Logout)
			auth.POST("/forgot-password", r.authController.ForgotPassword)
			auth.POST("/reset-password/:token", r.authController.ResetPassword)
			auth.GET("/confirm-delete/:token", r.authController.ConfirmAccountDeletion)
			auth.GET("/me", requireAuth, r.authController.GetMe)
			auth.PUT("/profile", requireAuth, r.authController.UpdateProfile)
			auth.POST("/delete-account", requireAuth, r.authController.RequestAccountDeletion)
		}

		// Cart operations check the session themselves so an anonymous
		// visitor gets the cart-specific login prompt.
		cart := v1.Group("/cart")
		{
			cart.GET("", r.cartController.GetCart)
			cart.DELETE("", r.cartController.ClearCart)
			cart.POST("/items", r.cartController.AddToCart)
			cart.PATCH("/items", r.cartController.UpdateCartItem)
			cart.DELETE("/items", r.cartController.RemoveCartItem)
		}

		products := v1.Group("/products")
		{
			products.GET("", r.catalogController.ListProducts)
			products.GET("/:slug", r.catalogController.GetProduct)
		}
		v1.GET("/search", r.catalogController.SearchProducts)

		blogs := v1.Group("/blogs")
		{
			blogs.GET("", r.catalogController.ListBlogs)
			blogs.GET("/:slug", r.catalogController.GetBlog)
		}
		v1.GET("/categories", r.catalogController.ListCategories)
		v1.GET("/faqs", r.catalogController.ListFAQs)

		v1.POST("/reviews", requireAuth, r.catalogController.SubmitReview)
		v1.POST("/contact", r.catalogController.SubmitContact)
		v1.POST("/chatbot", r.catalogController.SubmitChatbotLead)

		orders := v1.Group("/orders", requireAuth)
		{
			orders.GET("", r.orderController.GetMyOrders)
			orders.GET("/export", r.orderController.ExportOrders)
			orders.GET("/:orderNumber", r.orderController.GetOrder)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		// No list configured: reflect any origin (development only)
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}
