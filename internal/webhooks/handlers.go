package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chargebee and custom event names the dispatcher has handlers for.
const (
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventSubscriptionRenewed = "user.subscription.renewed"
	EventLicenseActivated    = "license.activated"
)

const defaultProductName = "CodeSeek Pro"

type handlerUsersRepository interface {
	FindByChargebeeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type handlerSubscriptionsRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	FindLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, nextBillingAt, cancelledAt *time.Time) error
}

type lifecycleNotifier interface {
	PurchaseConfirmation(ctx context.Context, user *models.User, productName, amount string)
	PaymentFailed(ctx context.Context, user *models.User, amount, reason string)
	SubscriptionRenewed(ctx context.Context, user *models.User, planName, nextBillingDate string)
	SubscriptionCancelled(ctx context.Context, user *models.User, planName string)
	LicenseActivated(ctx context.Context, user *models.User, licenseKey, productName string)
}

// HandlerSet owns the event handlers for the billing provider and the custom
// internal events. Events that reference no known user settle as processed
// with no side effects; the delivery may predate account creation.
type HandlerSet struct {
	users handlerUsersRepository
	subs  handlerSubscriptionsRepository
	mail  lifecycleNotifier
	logg  *logger.Logger
	now   func() time.Time
}

// NewHandlerSet wires the handler dependencies.
func NewHandlerSet(users handlerUsersRepository, subs handlerSubscriptionsRepository, mail lifecycleNotifier, logg *logger.Logger) (*HandlerSet, error) {
	if users == nil {
		return nil, errors.New("users repository required")
	}
	if subs == nil {
		return nil, errors.New("subscriptions repository required")
	}
	if mail == nil {
		return nil, errors.New("notifier required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &HandlerSet{
		users: users,
		subs:  subs,
		mail:  mail,
		logg:  logg,
		now:   time.Now,
	}, nil
}

// Register installs the full routing table on the dispatcher.
func (h *HandlerSet) Register(d *Dispatcher) {
	d.Register(enums.WebhookProviderChargebee, EventPaymentSucceeded, h.paymentSucceeded)
	d.Register(enums.WebhookProviderChargebee, EventPaymentFailed, h.paymentFailed)
	d.Register(enums.WebhookProviderChargebee, EventSubscriptionCreated, h.subscriptionCreated)
	d.Register(enums.WebhookProviderChargebee, EventSubscriptionUpdated, h.subscriptionUpdated)
	d.Register(enums.WebhookProviderChargebee, EventSubscriptionDeleted, h.subscriptionDeleted)
	d.Register(enums.WebhookProviderCustom, EventSubscriptionRenewed, h.subscriptionRenewed)
	d.Register(enums.WebhookProviderCustom, EventLicenseActivated, h.licenseActivated)
}

func (h *HandlerSet) paymentSucceeded(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	productName := event.Payload.FirstString(
		[]string{"subscription", "plan_id"},
		[]string{"plan", "name"},
	)
	if productName == "" {
		productName = defaultProductName
	}
	amount := event.Payload.Amount(
		[]string{"invoice", "total"},
		[]string{"amount"},
	)

	h.mail.PurchaseConfirmation(ctx, user, productName, amount.StringFixed(2))
	return nil
}

func (h *HandlerSet) paymentFailed(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	amount := event.Payload.Amount(
		[]string{"invoice", "total"},
		[]string{"amount"},
	)
	reason := event.Payload.String("failure_reason")
	if reason == "" {
		reason = "Payment processing failed"
	}

	h.mail.PaymentFailed(ctx, user, amount.StringFixed(2), reason)
	return nil
}

func (h *HandlerSet) subscriptionCreated(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	sub := &models.Subscription{
		UserID:        user.ID,
		PlanID:        h.planName(event.Payload),
		Status:        enums.SubscriptionStatusActive,
		NextBillingAt: h.nextBilling(event.Payload),
	}
	if err := h.subs.Create(ctx, sub); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (h *HandlerSet) subscriptionUpdated(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	sub, err := h.latestSubscription(ctx, user.ID)
	if err != nil || sub == nil {
		return err
	}

	status := sub.Status
	if raw := event.Payload.String("subscription", "status"); raw != "" {
		if parsed, err := enums.ParseSubscriptionStatus(raw); err == nil {
			status = parsed
		}
	}
	if err := h.subs.UpdateStatus(ctx, sub.ID, status, h.nextBilling(event.Payload), nil); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

func (h *HandlerSet) subscriptionDeleted(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	if sub, err := h.latestSubscription(ctx, user.ID); err != nil {
		return err
	} else if sub != nil {
		cancelledAt := h.now().UTC()
		if err := h.subs.UpdateStatus(ctx, sub.ID, enums.SubscriptionStatusCancelled, nil, &cancelledAt); err != nil {
			return fmt.Errorf("cancel subscription: %w", err)
		}
	}

	h.mail.SubscriptionCancelled(ctx, user, h.planName(event.Payload))
	return nil
}

func (h *HandlerSet) subscriptionRenewed(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	nextBilling := h.nextBilling(event.Payload)
	if sub, err := h.latestSubscription(ctx, user.ID); err != nil {
		return err
	} else if sub != nil {
		if err := h.subs.UpdateStatus(ctx, sub.ID, enums.SubscriptionStatusActive, nextBilling, nil); err != nil {
			return fmt.Errorf("renew subscription: %w", err)
		}
	}

	nextBillingDate := ""
	if nextBilling != nil {
		nextBillingDate = nextBilling.Format("2006-01-02")
	}
	h.mail.SubscriptionRenewed(ctx, user, h.planName(event.Payload), nextBillingDate)
	return nil
}

func (h *HandlerSet) licenseActivated(ctx context.Context, event Event) error {
	user, err := h.resolveUser(ctx, event.Payload)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	licenseKey := event.Payload.FirstString(
		[]string{"license", "key"},
		[]string{"license_key"},
	)
	productName := event.Payload.FirstString(
		[]string{"product", "name"},
		[]string{"product_name"},
	)
	if productName == "" {
		productName = defaultProductName
	}

	h.mail.LicenseActivated(ctx, user, licenseKey, productName)
	return nil
}

// resolveUser matches the delivery to an account: the billing customer id
// first, then the email on the payload. A (nil, nil) return means no match,
// which handlers treat as a clean no-op.
func (h *HandlerSet) resolveUser(ctx context.Context, payload Payload) (*models.User, error) {
	customerID := payload.FirstString(
		[]string{"customer", "id"},
		[]string{"customer_id"},
	)
	if customerID != "" {
		user, err := h.users.FindByChargebeeCustomerID(ctx, customerID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup user by customer id: %w", err)
		}
	}

	email := payload.FirstString(
		[]string{"customer", "email"},
		[]string{"email"},
	)
	if email != "" {
		user, err := h.users.FindByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("lookup user by email: %w", err)
		}
	}

	h.logg.Info(ctx, "webhook references no known user, skipping")
	return nil, nil
}

func (h *HandlerSet) latestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := h.subs.FindLatestForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.logg.Info(ctx, "user has no subscription row, skipping sync")
			return nil, nil
		}
		return nil, fmt.Errorf("lookup subscription: %w", err)
	}
	return sub, nil
}

func (h *HandlerSet) planName(payload Payload) string {
	name := payload.FirstString(
		[]string{"subscription", "plan_id"},
		[]string{"plan", "name"},
	)
	if name == "" {
		return defaultProductName
	}
	return name
}

func (h *HandlerSet) nextBilling(payload Payload) *time.Time {
	return payload.Time(
		[]string{"subscription", "next_billing_at"},
		[]string{"next_billing_date"},
	)
}
