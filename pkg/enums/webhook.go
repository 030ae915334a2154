package enums

import "fmt"

// WebhookStatus maps to the webhook_status enum in Postgres.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

var validWebhookStatuses = []WebhookStatus{
	WebhookStatusPending,
	WebhookStatusProcessed,
	WebhookStatusFailed,
}

// String implements fmt.Stringer.
func (w WebhookStatus) String() string {
	return string(w)
}

// IsValid reports whether the value matches the canonical webhook_status enum.
func (w WebhookStatus) IsValid() bool {
	for _, candidate := range validWebhookStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWebhookStatus converts raw input into WebhookStatus.
func ParseWebhookStatus(value string) (WebhookStatus, error) {
	for _, candidate := range validWebhookStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook status %q", value)
}

// WebhookProvider identifies the external system that delivered a webhook.
// The dispatcher only has registered handlers for these, but ingestion
// accepts any provider string so unexpected deliveries are still logged.
type WebhookProvider string

const (
	WebhookProviderChargebee WebhookProvider = "chargebee"
	WebhookProviderCustom    WebhookProvider = "custom"
)
