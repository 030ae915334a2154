package licenses

import (
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/codeseek/codeseek-backend/pkg/pagination"
	"github.com/google/uuid"
)

type listQuery struct {
	userID uuid.UUID
	limit  int
	cursor *pagination.Cursor
}

// ListParams configures license listings.
type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ListItem is a license row enriched with its activation count.
type ListItem struct {
	ID              uuid.UUID           `json:"id"`
	ProductID       uuid.UUID           `json:"productId"`
	UserID          uuid.UUID           `json:"userId"`
	Key             string              `json:"key"`
	Status          enums.LicenseStatus `json:"status"`
	ActivatedOn     *time.Time          `json:"activatedOn"`
	ExpiresOn       *time.Time          `json:"expiresOn"`
	MaxActivations  int                 `json:"maxActivations"`
	ActivationCount int64               `json:"activationCount"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// ListResult wraps returned items and the cursor for the next page.
type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

// Detail combines a license with its activations for the detail endpoint.
type Detail struct {
	License     models.License      `json:"license"`
	Activations []models.Activation `json:"activations"`
}

func toListItem(row licenseRow) ListItem {
	return ListItem{
		ID:              row.License.ID,
		ProductID:       row.License.ProductID,
		UserID:          row.License.UserID,
		Key:             row.License.Key,
		Status:          row.License.Status,
		ActivatedOn:     row.License.ActivatedOn,
		ExpiresOn:       row.License.ExpiresOn,
		MaxActivations:  row.License.MaxActivations,
		ActivationCount: row.ActivationCount,
		CreatedAt:       row.License.CreatedAt,
	}
}
