package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shikshalabs/enrollhub-backend/api/controllers"
	webhookcontrollers "github.com/shikshalabs/enrollhub-backend/api/controllers/webhooks"
	"github.com/shikshalabs/enrollhub-backend/api/middleware"
	checkoutsvc "github.com/shikshalabs/enrollhub-backend/internal/checkout"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/notifications"
	"github.com/shikshalabs/enrollhub-backend/internal/referrals"
	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/db"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
	"github.com/shikshalabs/enrollhub-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	statusService *statusproc.Service,
	checkoutService *checkoutsvc.Service,
	referralsService *referrals.Service,
	ledgerService *ledger.Service,
	notificationsService notifications.Service,
	paymentMetrics *metrics.PaymentMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1/webhooks/payments", func(r chi.Router) {
		r.Post("/ledger/{ledgerId}", webhookcontrollers.PaymentWebhookByLedgerID(statusService, paymentMetrics, logg))
		r.Post("/orders/{orderId}", webhookcontrollers.PaymentWebhookByOrderID(statusService, paymentMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Post("/checkout", controllers.Checkout(checkoutService, logg))
			r.Get("/referrals/{referralOptionId}/discount", controllers.ReferralDiscountPreview(referralsService, logg))
			r.Get("/notifications", controllers.ListNotifications(notificationsService, logg))
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequirePaymentOverride(logg))
			r.Route("/payments", func(r chi.Router) {
				r.Get("/", controllers.AdminListPayments(ledgerService, logg))
				r.Post("/{paymentId}/status", controllers.AdminOverridePaymentStatus(statusService, logg))
			})
		})
	})

	return r
}
