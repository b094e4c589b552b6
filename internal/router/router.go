package router

import (
	"net/http"
	"time"

	"jikonnect/config"
	"jikonnect/internal/domain"
	"jikonnect/internal/handler"
	"jikonnect/internal/middleware"
	"jikonnect/internal/repository"
	"jikonnect/internal/service"
	"jikonnect/internal/ws"
	"jikonnect/pkg/cloudinary"
	"jikonnect/pkg/mpesa"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Setup wires repositories, services, and handlers onto a gin engine.
func Setup(cfg *config.Config, db *gorm.DB, cloud cloudinary.Client) *gin.Engine {
	if cfg.Server.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	earningsRepo := repository.NewEarningsRepository(db)
	callbackRepo := repository.NewCallbackEventRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	disputeRepo := repository.NewDisputeRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	reconcileStore := repository.NewReconcileStore(db)

	mpesaClient := mpesa.NewClient(cfg.Mpesa)
	paymentHub := ws.NewPaymentHub()
	reconciler := service.NewReconciler(reconcileStore, paymentHub)
	payoutSvc := service.NewPayoutService(reconcileStore, mpesaClient, cfg.Mpesa.ShortCode)
	authSvc := service.NewAuthService(cfg, userRepo)

	authH := handler.NewAuthHandler(authSvc, auditRepo)
	bookingH := handler.NewBookingHandler(cfg, bookingRepo, userRepo, earningsRepo, auditRepo)
	paymentH := handler.NewPaymentHandler(cfg, mpesaClient, bookingRepo, paymentRepo, auditRepo, reconciler)
	payoutH := handler.NewPayoutHandler(payoutSvc, bookingRepo, userRepo, payoutRepo, earningsRepo, auditRepo)
	webhookH := handler.NewMpesaWebhookHandler(reconciler, reconcileStore)
	verificationH := handler.NewVerificationHandler(cloud, verificationRepo, userRepo, auditRepo)
	disputeH := handler.NewDisputeHandler(disputeRepo, bookingRepo, auditRepo)
	adminH := handler.NewAdminHandler(auditRepo, callbackRepo, payoutRepo)

	authLimiter := middleware.NewInMemoryRateLimiter(10, time.Minute)
	chargeLimiter := middleware.NewInMemoryRateLimiter(5, time.Minute)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	authGroup := api.Group("/auth", middleware.RateLimit(authLimiter))
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/refresh", authH.Refresh)
	}

	// Daraja calls these; no auth, acknowledged with 200 on every delivery
	// the provider could retry.
	webhooks := api.Group("/payments/mpesa")
	{
		webhooks.POST("/callback", webhookH.STKCallback)
		webhooks.POST("/b2c/result", webhookH.B2CResult)
		webhooks.POST("/b2c/timeout", webhookH.B2CTimeout)
	}

	authed := api.Group("", middleware.AuthRequired(&cfg.JWT))
	{
		bookings := authed.Group("/bookings")
		{
			bookings.POST("", middleware.RequireRole(domain.RoleClient), bookingH.Create)
			bookings.GET("", bookingH.ListMine)
			bookings.GET("/:id", bookingH.Get)
			bookings.POST("/:id/accept", middleware.RequireRole(domain.RoleProvider), bookingH.Accept)
			bookings.POST("/:id/complete", middleware.RequireRole(domain.RoleClient), bookingH.Complete)
			bookings.POST("/:id/cancel", bookingH.Cancel)
			bookings.GET("/:id/payments", paymentH.ListForBooking)
		}

		payments := authed.Group("/payments")
		{
			payments.POST("/charge", middleware.RequireRole(domain.RoleClient), middleware.RateLimit(chargeLimiter), paymentH.Initiate)
			payments.GET("/:checkout_id/status", paymentH.Status)
			payments.POST("/:checkout_id/reconcile", paymentH.Reconcile)
		}

		me := authed.Group("/me", middleware.RequireRole(domain.RoleProvider))
		{
			me.GET("/earnings", payoutH.Earnings)
			me.GET("/payouts", payoutH.ListMine)
			me.GET("/verification", verificationH.Mine)
			me.POST("/verification", verificationH.Submit)
		}

		authed.GET("/payouts/:id", payoutH.Get)
		authed.POST("/disputes", disputeH.Open)

		admin := authed.Group("/admin", middleware.AdminRequired())
		{
			admin.POST("/payouts", payoutH.Create)
			admin.GET("/payouts", adminH.Payouts)
			admin.GET("/verifications", verificationH.ListPending)
			admin.POST("/verifications/:id/review", verificationH.Review)
			admin.GET("/disputes", disputeH.ListOpen)
			admin.POST("/disputes/:id/resolve", disputeH.Resolve)
			admin.GET("/audit-logs", adminH.AuditLogs)
			admin.GET("/callback-events", adminH.CallbackEvents)
			admin.POST("/callback-events/:id/review", adminH.ReviewCallbackEvent)
		}
	}

	r.GET("/ws/payments", ws.UpgradePaymentWS(&cfg.JWT, paymentHub))

	return r
}
