package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/api/responses"
	"github.com/codeseek/codeseek-backend/api/validators"
	"github.com/codeseek/codeseek-backend/internal/activations"
	"github.com/codeseek/codeseek-backend/internal/licenses"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
)

// LicenseVerify is the public key check used by installed copies of the
// product. It never distinguishes unknown from malformed keys.
func LicenseVerify(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "key"))

		result, err := svc.Verify(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LicenseDetails returns a license with its activations.
func LicenseDetails(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type activationRequest struct {
	Domain    string `json:"domain" validate:"required"`
	IPAddress string `json:"ipAddress" validate:"omitempty,ip"`
}

// ActivationCreate binds a license to a domain, subject to the quota.
func ActivationCreate(svc activations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload activationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.AddActivation(r.Context(), id, activations.AddInput{
			Domain:    payload.Domain,
			IPAddress: payload.IPAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ActivationDelete unbinds one activation from a license.
func ActivationDelete(svc activations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		licenseID, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activationID, err := uuid.Parse(chi.URLParam(r, "activationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid activation id"))
			return
		}

		if err := svc.RemoveActivation(r.Context(), licenseID, activationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

func licenseIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid license id")
	}
	return id, nil
}
