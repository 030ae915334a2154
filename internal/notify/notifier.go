package notify

import (
	"context"
	"errors"

	"github.com/codeseek/codeseek-backend/pkg/db/models"
	"github.com/codeseek/codeseek-backend/pkg/logger"
	"github.com/codeseek/codeseek-backend/pkg/mailer"
)

// Notifier sends lifecycle emails to users. Every method is best-effort:
// delivery failures are logged and swallowed so callers never fail a
// webhook dispatch over a mail outage.
type Notifier struct {
	sender mailer.Sender
	logg   *logger.Logger
}

// New builds a notifier on top of the provided mail sender.
func New(sender mailer.Sender, logg *logger.Logger) (*Notifier, error) {
	if sender == nil {
		return nil, errors.New("mail sender required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Notifier{sender: sender, logg: logg}, nil
}

// PurchaseConfirmation tells the user their payment went through.
func (n *Notifier) PurchaseConfirmation(ctx context.Context, user *models.User, productName, amount string) {
	n.send(ctx, user, mailer.TemplatePurchase, map[string]string{
		"username":    user.Username,
		"productName": productName,
		"amount":      amount,
	})
}

// PaymentFailed warns the user a charge was declined.
func (n *Notifier) PaymentFailed(ctx context.Context, user *models.User, amount, reason string) {
	n.send(ctx, user, mailer.TemplatePaymentFailed, map[string]string{
		"username": user.Username,
		"amount":   amount,
		"reason":   reason,
	})
}

// SubscriptionRenewed confirms a successful renewal.
func (n *Notifier) SubscriptionRenewed(ctx context.Context, user *models.User, planName, nextBillingDate string) {
	n.send(ctx, user, mailer.TemplateRenewal, map[string]string{
		"username":        user.Username,
		"planName":        planName,
		"nextBillingDate": nextBillingDate,
	})
}

// SubscriptionCancelled confirms a cancellation took effect.
func (n *Notifier) SubscriptionCancelled(ctx context.Context, user *models.User, planName string) {
	n.send(ctx, user, mailer.TemplateSubscriptionCancelled, map[string]string{
		"username": user.Username,
		"planName": planName,
	})
}

// LicenseActivated tells the user their license was activated.
func (n *Notifier) LicenseActivated(ctx context.Context, user *models.User, licenseKey, productName string) {
	n.send(ctx, user, mailer.TemplateLicenseActivated, map[string]string{
		"username":    user.Username,
		"licenseKey":  licenseKey,
		"productName": productName,
	})
}

func (n *Notifier) send(ctx context.Context, user *models.User, templateKey string, variables map[string]string) {
	if user == nil || user.Email == "" {
		return
	}
	scoped := n.logg.WithFields(ctx, map[string]any{
		"template": templateKey,
		"user_id":  user.ID.String(),
	})
	messageID, err := n.sender.Send(ctx, user.Email, templateKey, variables)
	if err != nil {
		n.logg.Warn(n.logg.WithField(scoped, "send_error", err.Error()), "notification email failed")
		return
	}
	n.logg.Info(n.logg.WithField(scoped, "message_id", messageID), "notification email sent")
}
