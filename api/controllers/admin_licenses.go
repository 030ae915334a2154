package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codeseek/codeseek-backend/api/responses"
	"github.com/codeseek/codeseek-backend/api/validators"
	"github.com/codeseek/codeseek-backend/internal/licenses"
	pkgerrors "github.com/codeseek/codeseek-backend/pkg/errors"
	"github.com/codeseek/codeseek-backend/pkg/logger"
)

type licenseCreateRequest struct {
	ProductID      string     `json:"productId" validate:"required,uuid"`
	UserID         string     `json:"userId" validate:"required,uuid"`
	ExpiresOn      *time.Time `json:"expiresOn"`
	MaxActivations *int       `json:"maxActivations" validate:"omitempty,min=1"`
}

type licenseUpdateRequest struct {
	ProductID      *string    `json:"productId" validate:"omitempty,uuid"`
	UserID         *string    `json:"userId" validate:"omitempty,uuid"`
	ExpiresOn      *time.Time `json:"expiresOn"`
	MaxActivations *int       `json:"maxActivations" validate:"omitempty,min=1"`
}

type licenseStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminLicenseCreate issues a new license with a generated key.
func AdminLicenseCreate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload licenseCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, _ := uuid.Parse(payload.ProductID)
		userID, _ := uuid.Parse(payload.UserID)

		created, err := svc.Create(r.Context(), licenses.CreateInput{
			ProductID:      productID,
			UserID:         userID,
			ExpiresOn:      payload.ExpiresOn,
			MaxActivations: payload.MaxActivations,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// AdminLicenseList returns cursor-paginated licenses with activation counts.
func AdminLicenseList(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := licenses.ListParams{
			Cursor: r.URL.Query().Get("cursor"),
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid limit"))
				return
			}
			params.Limit = limit
		}
		if raw := r.URL.Query().Get("userId"); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			params.UserID = userID
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminLicenseGet returns one license with its activations.
func AdminLicenseGet(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
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

// AdminLicenseUpdate changes the mutable fields of a license. The key is
// immutable.
func AdminLicenseUpdate(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload licenseUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := licenses.UpdateInput{
			ExpiresOn:      payload.ExpiresOn,
			MaxActivations: payload.MaxActivations,
		}
		if payload.ProductID != nil {
			productID, _ := uuid.Parse(*payload.ProductID)
			input.ProductID = &productID
		}
		if payload.UserID != nil {
			userID, _ := uuid.Parse(*payload.UserID)
			input.UserID = &userID
		}

		updated, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// AdminLicenseStatus sets the stored status. Transitions are free-form;
// only the enum value is validated.
func AdminLicenseStatus(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload licenseStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateStatus(r.Context(), id, payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// AdminLicenseReset wipes activations and clears the activation date,
// leaving status untouched.
func AdminLicenseReset(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reset(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminLicenseDelete removes a license and its activations.
func AdminLicenseDelete(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := licenseIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
