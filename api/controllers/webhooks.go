package controllers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/codeseek/codeseek-backend/api/responses"
	"github.com/codeseek/codeseek-backend/internal/webhooks"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
)

// Providers send whatever they like; cap it so a hostile payload cannot
// exhaust memory. Chargebee events are a few KB.
const maxWebhookBody = 1 << 20

// WebhookIngest records an inbound delivery and acks before processing.
// The body is taken as-is; signature verification is the provider
// configuration's concern, not this endpoint's.
func WebhookIngest(svc webhooks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := strings.TrimSpace(chi.URLParam(r, "provider"))

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook body"))
			return
		}

		result, err := svc.Ingest(r.Context(), provider, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
