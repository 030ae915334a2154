package webhooks

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type stubHandlerUsers struct {
	byCustomerID map[string]*models.User
	byEmail      map[string]*models.User
}

func (s *stubHandlerUsers) FindByChargebeeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if user, ok := s.byCustomerID[customerID]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubHandlerUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.byEmail[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type stubSubscriptions struct {
	created      *models.Subscription
	latest       *models.Subscription
	statusID     uuid.UUID
	statusSet    enums.SubscriptionStatus
	nextBilling  *time.Time
	cancelledAt  *time.Time
	updateCalled bool
}

func (s *stubSubscriptions) Create(ctx context.Context, sub *models.Subscription) error {
	s.created = sub
	return nil
}

func (s *stubSubscriptions) FindLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.latest, nil
}

func (s *stubSubscriptions) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SubscriptionStatus, nextBillingAt, cancelledAt *time.Time) error {
	s.updateCalled = true
	s.statusID = id
	s.statusSet = status
	s.nextBilling = nextBillingAt
	s.cancelledAt = cancelledAt
	return nil
}

type mailCall struct {
	kind   string
	user   *models.User
	first  string
	second string
}

type stubNotifier struct {
	calls []mailCall
}

func (s *stubNotifier) PurchaseConfirmation(ctx context.Context, user *models.User, productName, amount string) {
	s.calls = append(s.calls, mailCall{kind: "purchase", user: user, first: productName, second: amount})
}

func (s *stubNotifier) PaymentFailed(ctx context.Context, user *models.User, amount, reason string) {
	s.calls = append(s.calls, mailCall{kind: "payment_failed", user: user, first: amount, second: reason})
}

func (s *stubNotifier) SubscriptionRenewed(ctx context.Context, user *models.User, planName, nextBillingDate string) {
	s.calls = append(s.calls, mailCall{kind: "renewal", user: user, first: planName, second: nextBillingDate})
}

func (s *stubNotifier) SubscriptionCancelled(ctx context.Context, user *models.User, planName string) {
	s.calls = append(s.calls, mailCall{kind: "cancelled", user: user, first: planName})
}

func (s *stubNotifier) LicenseActivated(ctx context.Context, user *models.User, licenseKey, productName string) {
	s.calls = append(s.calls, mailCall{kind: "license_activated", user: user, first: licenseKey, second: productName})
}

func (s *stubNotifier) single(t *testing.T, kind string) mailCall {
	t.Helper()
	if len(s.calls) != 1 {
		t.Fatalf("expected one %s email, got %d calls", kind, len(s.calls))
	}
	if s.calls[0].kind != kind {
		t.Fatalf("expected %s email, got %s", kind, s.calls[0].kind)
	}
	return s.calls[0]
}

type handlerFixture struct {
	set   *HandlerSet
	users *stubHandlerUsers
	subs  *stubSubscriptions
	mail  *stubNotifier
	user  *models.User
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	user := &models.User{ID: uuid.New(), Username: "jordan", Email: "jordan@example.com"}
	users := &stubHandlerUsers{
		byCustomerID: map[string]*models.User{"cb_123": user},
		byEmail:      map[string]*models.User{"jordan@example.com": user},
	}
	subs := &stubSubscriptions{}
	mail := &stubNotifier{}
	set, err := NewHandlerSet(users, subs, mail, testLogger())
	if err != nil {
		t.Fatalf("new handler set: %v", err)
	}
	return &handlerFixture{set: set, users: users, subs: subs, mail: mail, user: user}
}

func eventFor(eventType string, body string) Event {
	return Event{
		Log: &models.WebhookLog{
			ID:        uuid.New(),
			Provider:  "chargebee",
			EventType: eventType,
			Status:    enums.WebhookStatusPending,
		},
		Payload: parsePayload(json.RawMessage(body)),
	}
}

func TestPaymentSucceededSendsConfirmation(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.paymentSucceeded(context.Background(), eventFor(EventPaymentSucceeded,
		`{"customer":{"id":"cb_123"},"subscription":{"plan_id":"pro-annual"},"invoice":{"total":49.99}}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	call := f.mail.single(t, "purchase")
	if call.user != f.user {
		t.Fatal("email sent to the wrong user")
	}
	if call.first != "pro-annual" {
		t.Fatalf("expected plan name, got %q", call.first)
	}
	if call.second != "49.99" {
		t.Fatalf("expected formatted amount, got %q", call.second)
	}
}

func TestPaymentSucceededDefaultsProductName(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.paymentSucceeded(context.Background(), eventFor(EventPaymentSucceeded,
		`{"customer":{"id":"cb_123"},"amount":"12.50"}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	call := f.mail.single(t, "purchase")
	if call.first != "CodeSeek Pro" {
		t.Fatalf("expected default product name, got %q", call.first)
	}
	if call.second != "12.50" {
		t.Fatalf("expected string amount parsed, got %q", call.second)
	}
}

func TestPaymentFailedDefaultsReason(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.paymentFailed(context.Background(), eventFor(EventPaymentFailed,
		`{"customer":{"id":"cb_123"},"invoice":{"total":20}}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	call := f.mail.single(t, "payment_failed")
	if call.second != "Payment processing failed" {
		t.Fatalf("expected default reason, got %q", call.second)
	}
}

func TestResolveUserFallsBackToEmail(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.paymentFailed(context.Background(), eventFor(EventPaymentFailed,
		`{"customer":{"id":"cb_unknown","email":"jordan@example.com"},"failure_reason":"card declined"}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	call := f.mail.single(t, "payment_failed")
	if call.user != f.user {
		t.Fatal("expected email fallback to resolve the user")
	}
	if call.second != "card declined" {
		t.Fatalf("expected payload reason, got %q", call.second)
	}
}

func TestUnknownUserIsCleanNoop(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.paymentSucceeded(context.Background(), eventFor(EventPaymentSucceeded,
		`{"customer":{"id":"cb_missing","email":"nobody@example.com"}}`))
	if err != nil {
		t.Fatalf("unknown user must not fail the delivery, got %v", err)
	}
	if len(f.mail.calls) != 0 {
		t.Fatal("no email may be sent for an unknown user")
	}
}

func TestSubscriptionCreatedWritesActiveRow(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.subscriptionCreated(context.Background(), eventFor(EventSubscriptionCreated,
		`{"customer":{"id":"cb_123"},"subscription":{"plan_id":"pro-monthly","next_billing_at":1757376000}}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if f.subs.created == nil {
		t.Fatal("expected a subscription row")
	}
	if f.subs.created.UserID != f.user.ID {
		t.Fatal("subscription bound to the wrong user")
	}
	if f.subs.created.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active subscription, got %s", f.subs.created.Status)
	}
	if f.subs.created.PlanID != "pro-monthly" {
		t.Fatalf("unexpected plan %q", f.subs.created.PlanID)
	}
	if f.subs.created.NextBillingAt == nil {
		t.Fatal("expected next billing timestamp parsed from the payload")
	}
}

func TestSubscriptionDeletedCancelsAndNotifies(t *testing.T) {
	f := newHandlerFixture(t)
	f.subs.latest = &models.Subscription{ID: uuid.New(), UserID: f.user.ID, Status: enums.SubscriptionStatusActive}

	err := f.set.subscriptionDeleted(context.Background(), eventFor(EventSubscriptionDeleted,
		`{"customer":{"id":"cb_123"},"subscription":{"plan_id":"pro-monthly"}}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if f.subs.statusSet != enums.SubscriptionStatusCancelled {
		t.Fatalf("expected cancellation, got %s", f.subs.statusSet)
	}
	if f.subs.cancelledAt == nil {
		t.Fatal("expected cancelled_at to be stamped")
	}
	f.mail.single(t, "cancelled")
}

func TestSubscriptionDeletedWithoutRowStillNotifies(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.subscriptionDeleted(context.Background(), eventFor(EventSubscriptionDeleted,
		`{"customer":{"id":"cb_123"}}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if f.subs.updateCalled {
		t.Fatal("no row to cancel, no status write expected")
	}
	f.mail.single(t, "cancelled")
}

func TestSubscriptionRenewedActivatesAndDatesEmail(t *testing.T) {
	f := newHandlerFixture(t)
	f.subs.latest = &models.Subscription{ID: uuid.New(), UserID: f.user.ID, Status: enums.SubscriptionStatusExpired}

	err := f.set.subscriptionRenewed(context.Background(), eventFor(EventSubscriptionRenewed,
		`{"customer":{"id":"cb_123"},"subscription":{"plan_id":"pro-annual"},"next_billing_date":"2026-10-01T00:00:00Z"}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	if f.subs.statusSet != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", f.subs.statusSet)
	}
	call := f.mail.single(t, "renewal")
	if call.second != "2026-10-01" {
		t.Fatalf("expected date-only billing date, got %q", call.second)
	}
}

func TestLicenseActivatedEmailFields(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.set.licenseActivated(context.Background(), eventFor(EventLicenseActivated,
		`{"email":"jordan@example.com","license_key":"AB12CD34EF56AB12CD34EF56AB12CD34","product":{"name":"CodeSeek Team"}}`))
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	call := f.mail.single(t, "license_activated")
	if call.first != "AB12CD34EF56AB12CD34EF56AB12CD34" {
		t.Fatalf("unexpected license key %q", call.first)
	}
	if call.second != "CodeSeek Team" {
		t.Fatalf("unexpected product name %q", call.second)
	}
}
