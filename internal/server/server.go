package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"clubledger/internal/auth"
	"clubledger/internal/config"
	"clubledger/internal/currency"
	"clubledger/internal/feeplan"
	"clubledger/internal/ledger"
	"clubledger/internal/notify"
	"clubledger/internal/user"
)

type Server struct {
	router *gin.Engine
	http   *http.Server
	db     *sqlx.DB
	config *config.Config
}

func New(db *sqlx.DB, cfg *config.Config, notifier *notify.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	currencyRepo := currency.NewRepository(db)
	ledgerRepo := ledger.NewRepository(db)
	feeplanRepo := feeplan.NewRepository(db)

	ledgerService := ledger.NewService(ledgerRepo, notifier)
	feeplanService := feeplan.NewService(feeplanRepo, currencyRepo, ledgerService)

	userHandler := user.NewHandler(db, cfg.JWTSecret)
	currencyHandler := currency.NewHandler(db)
	feeplanHandler := feeplan.NewHandler(feeplanRepo, feeplanService)
	ledgerHandler := ledger.NewHandler(ledgerService)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.Refresh)
	}

	authMiddleware := auth.AuthMiddleware(cfg.JWTSecret)

	staff := router.Group("/")
	staff.Use(authMiddleware, auth.RequireRole(auth.RoleStaff))
	{
		staff.GET("/me", userHandler.GetMe)

		staff.GET("/currencies", currencyHandler.ListActive)
		staff.GET("/currencies/default", currencyHandler.GetDefault)

		staff.POST("/plans", feeplanHandler.CreatePlan)
		staff.GET("/plans", feeplanHandler.ListPlans)
		staff.GET("/plans/:id", feeplanHandler.GetPlan)
		staff.PUT("/plans/:id/active", feeplanHandler.SetPlanActive)

		staff.POST("/assignments", feeplanHandler.CreateAssignment)
		staff.GET("/assignments/:id", feeplanHandler.GetAssignment)
		staff.PUT("/assignments/:id/active", feeplanHandler.SetAssignmentActive)
		staff.POST("/assignments/:id/generate", feeplanHandler.GeneratePeriod)

		staff.POST("/obligations", ledgerHandler.CreateObligation)
		staff.GET("/obligations", ledgerHandler.ListObligations)
		staff.GET("/obligations/:id", ledgerHandler.GetObligation)
		staff.PUT("/obligations/:id", ledgerHandler.UpdateObligation)
		staff.DELETE("/obligations/:id", ledgerHandler.DeleteObligation)
		staff.GET("/obligations/:id/payments", ledgerHandler.ListPaymentsForObligation)

		staff.POST("/payments", ledgerHandler.RecordPayment)
		staff.GET("/payments/:id", ledgerHandler.GetPayment)
		staff.PUT("/payments/:id", ledgerHandler.UpdatePayment)
		staff.DELETE("/payments/:id", ledgerHandler.DeletePayment)

		staff.GET("/students/:studentID/balance", ledgerHandler.GetBalance)
		staff.GET("/students/:studentID/statement", ledgerHandler.GetStatement)
	}

	admin := router.Group("/admin")
	admin.Use(authMiddleware, auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/currencies", currencyHandler.Create)
		admin.POST("/currencies/:code/default", currencyHandler.SetDefault)
		admin.PUT("/currencies/:code/active", currencyHandler.SetActive)
		admin.DELETE("/currencies/:code", currencyHandler.Delete)

		admin.POST("/billing/generate-due", feeplanHandler.GenerateDue)
		admin.POST("/students/:studentID/reconcile", ledgerHandler.Reconcile)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
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
