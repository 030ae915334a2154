package mailer

import (
	"fmt"
	"strings"
)

// Template pairs a subject line with a plain-text body. Both may reference
// variables as {{name}}.
type Template struct {
	Subject string
	Body    string
}

// Template keys fired by the license/webhook lifecycle.
const (
	TemplatePurchase              = "purchase"
	TemplatePaymentFailed         = "payment_failed"
	TemplateRenewal               = "renewal"
	TemplateLicenseActivated      = "license_activated"
	TemplateSubscriptionCancelled = "subscription_cancelled"
)

var defaultTemplates = map[string]Template{
	TemplatePurchase: {
		Subject: "Your CodeSeek purchase is confirmed",
		Body: "Hi {{username}},\n\n" +
			"Thanks for your purchase of {{productName}} ({{amount}}).\n" +
			"Your license details are available in your account dashboard.\n\n" +
			"The CodeSeek Team",
	},
	TemplatePaymentFailed: {
		Subject: "Payment failed for your CodeSeek subscription",
		Body: "Hi {{username}},\n\n" +
			"We could not process your payment of {{amount}}.\n" +
			"Reason: {{reason}}\n\n" +
			"Please update your billing details to keep your subscription active.\n\n" +
			"The CodeSeek Team",
	},
	TemplateRenewal: {
		Subject: "Your CodeSeek subscription was renewed",
		Body: "Hi {{username}},\n\n" +
			"Your {{planName}} subscription renewed successfully.\n" +
			"Next billing date: {{nextBillingDate}}\n\n" +
			"The CodeSeek Team",
	},
	TemplateLicenseActivated: {
		Subject: "Your CodeSeek license was activated",
		Body: "Hi {{username}},\n\n" +
			"License {{licenseKey}} for {{productName}} is now active.\n\n" +
			"The CodeSeek Team",
	},
	TemplateSubscriptionCancelled: {
		Subject: "Your CodeSeek subscription was cancelled",
		Body: "Hi {{username}},\n\n" +
			"Your {{planName}} subscription has been cancelled. Existing licenses\n" +
			"remain usable until their expiry date.\n\n" +
			"The CodeSeek Team",
	},
}

// LookupTemplate returns the template registered under key.
func LookupTemplate(key string) (Template, error) {
	tpl, ok := defaultTemplates[key]
	if !ok {
		return Template{}, fmt.Errorf("email template %q not found", key)
	}
	return tpl, nil
}

// Render substitutes {{name}} placeholders in subject and body. Unknown
// placeholders are left in place so a missing variable is visible in the
// delivered mail rather than silently blank.
func (t Template) Render(variables map[string]string) (subject, body string) {
	subject = interpolate(t.Subject, variables)
	body = interpolate(t.Body, variables)
	return subject, body
}

func interpolate(text string, variables map[string]string) string {
	for name, value := range variables {
		text = strings.ReplaceAll(text, "{{"+name+"}}", value)
	}
	return text
}
