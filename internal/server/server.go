package server

import (
	"context"
	"net/http"

	"stocksave/internal/auth"
	"stocksave/internal/booking"
	"stocksave/internal/config"
	"stocksave/internal/gateway"
	"stocksave/internal/inventory"
	"stocksave/internal/ledger"
	"stocksave/internal/notify"
	"stocksave/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
	notify *notify.Service
}

func New(db *sqlx.DB, cfg *config.Config, notifyService *notify.Service) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	minWithdrawal, err := decimal.NewFromString(cfg.MinWithdrawal)
	if err != nil {
		minWithdrawal = decimal.NewFromInt(1000)
	}

	paystack := gateway.NewPaystackClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.PaystackTimeout)

	ledgerRepo := ledger.NewRepository()
	inventoryRepo := inventory.NewRepository()
	bookingRepo := booking.NewRepository()

	ledgerService := ledger.NewService(db, ledgerRepo, paystack, notifyService, cfg.PaymentCallbackURL, minWithdrawal)
	inventoryService := inventory.NewService(db, inventoryRepo, notifyService)
	bookingService := booking.NewService(db, bookingRepo, ledgerRepo, inventoryRepo, notifyService)
	userService := user.NewService(
		user.NewRepository(db),
		user.ProvisionerFunc(func(ctx context.Context, userID int) error {
			_, err := ledgerService.EnsureAccount(ctx, userID)
			return err
		}),
		cfg.JWTSecret,
	)

	userHandler := user.NewHandler(userService)
	ledgerHandler := ledger.NewHandler(ledgerService, cfg.PaystackSecretKey)
	inventoryHandler := inventory.NewHandler(inventoryService)
	bookingHandler := booking.NewHandler(bookingService)
	notifyHandler := notify.NewHandler(notify.NewRepository(db))

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	router.POST("/webhooks/paystack", ledgerHandler.Webhook)

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)

		protected.GET("/savings/balance", ledgerHandler.GetBalance)
		protected.POST("/savings/deposit", ledgerHandler.Deposit)
		protected.POST("/savings/deposit/:reference/confirm", ledgerHandler.ConfirmDeposit)
		protected.POST("/savings/deposits/:transactionID/approve", ledgerHandler.ApproveCashDeposit)
		protected.POST("/savings/withdraw", ledgerHandler.Withdraw)
		protected.GET("/savings/transactions", ledgerHandler.History)

		protected.GET("/stock", inventoryHandler.StockBoard)
		protected.POST("/pools/:poolID/book", bookingHandler.BookSlot)
		protected.GET("/bookings", bookingHandler.MyBookings)

		protected.GET("/notifications", notifyHandler.List)
		protected.POST("/notifications/:notificationID/read", notifyHandler.MarkRead)
	}

	ownerMiddleware := auth.RequireRole(auth.RoleOwner)
	admin := router.Group("/admin")
	admin.Use(authMiddleware, ownerMiddleware)
	{
		admin.POST("/stock", inventoryHandler.AddStock)
		admin.GET("/stock/low", inventoryHandler.LowStock)
		admin.GET("/stock/fully-booked", inventoryHandler.FullyBooked)
		admin.GET("/stock/:variantID/batches", inventoryHandler.ListBatches)

		admin.GET("/bookings", bookingHandler.ListAll)
		admin.PATCH("/bookings/:bookingID/status", bookingHandler.UpdateStatus)

		admin.GET("/transactions/pending", ledgerHandler.ListPending)
		admin.POST("/transactions/:transactionID/approval-code", ledgerHandler.GenerateApprovalCode)
		admin.PATCH("/transactions/:transactionID/status", ledgerHandler.UpdateStatus)
		admin.GET("/reconciliation", ledgerHandler.Reconciliation)
		admin.GET("/queue-status", QueueStatus(notifyService))
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
		notify: notifyService,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
