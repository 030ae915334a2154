package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeseek/codeseek-backend/api/controllers"
	"github.com/codeseek/codeseek-backend/api/middleware"
	"github.com/codeseek/codeseek-backend/internal/activations"
	"github.com/codeseek/codeseek-backend/internal/licenses"
	"github.com/codeseek/codeseek-backend/internal/webhooks"
	"github.com/codeseek/codeseek-backend/pkg/config"
	"github.com/codeseek/codeseek-backend/pkg/db"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	pkgredis "github.com/codeseek/codeseek-backend/pkg/redis"
)

// NewRouter wires the full HTTP surface: public license/webhook endpoints,
// the admin API behind JWT, health checks, and prometheus metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	licenseService licenses.Service,
	activationService activations.Service,
	webhookService webhooks.Service,
	metricsRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/license/verify/{key}", controllers.LicenseVerify(licenseService, logg))
		r.Post("/webhooks/{provider}", controllers.WebhookIngest(webhookService, logg))

		r.Route("/licenses/{id}", func(r chi.Router) {
			r.Get("/", controllers.LicenseDetails(licenseService, logg))
			r.Post("/activations", controllers.ActivationCreate(activationService, logg))
			r.Delete("/activations/{activationId}", controllers.ActivationDelete(activationService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.JWT, logg))

		r.Route("/licenses", func(r chi.Router) {
			r.Get("/", controllers.AdminLicenseList(licenseService, logg))
			r.Post("/", controllers.AdminLicenseCreate(licenseService, logg))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", controllers.AdminLicenseGet(licenseService, logg))
				r.Put("/", controllers.AdminLicenseUpdate(licenseService, logg))
				r.Delete("/", controllers.AdminLicenseDelete(licenseService, logg))
				r.Put("/status", controllers.AdminLicenseStatus(licenseService, logg))
				r.Post("/reset", controllers.AdminLicenseReset(licenseService, logg))
			})
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", controllers.AdminWebhookList(webhookService, logg))
			r.Get("/stats", controllers.AdminWebhookStats(webhookService, logg))
			r.Post("/retry/{id}", controllers.AdminWebhookRetry(webhookService, logg))
			r.Delete("/clear", controllers.AdminWebhookClear(webhookService, logg))
		})
	})

	return r
}
