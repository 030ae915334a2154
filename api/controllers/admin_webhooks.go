package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/api/responses"
	"github.com/codeseek/codeseek-backend/internal/webhooks"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
)

// AdminWebhookList returns cursor-paginated webhook log rows with optional
// provider/status/eventType filters.
func AdminWebhookList(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		params := webhooks.ListParams{
			Provider:  query.Get("provider"),
			Status:    query.Get("status"),
			EventType: query.Get("eventType"),
			Cursor:    query.Get("cursor"),
		}
		if raw := query.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit"))
				return
			}
			params.Limit = limit
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminWebhookRetry re-queues a non-processed delivery.
func AdminWebhookRetry(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook id"))
			return
		}

		log, err := svc.Retry(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, log)
	}
}

// AdminWebhookClear drops every row in the webhook log.
func AdminWebhookClear(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := svc.Clear(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"deleted": deleted})
	}
}

// AdminWebhookStats returns the log rollup for the ops dashboard.
func AdminWebhookStats(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
