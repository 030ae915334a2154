package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/codeseek/codeseek-backend/pkg/config"
	"github.com/google/uuid"
)

// Sender delivers a templated email. Implementations must be safe for
// concurrent use; callers treat delivery as best-effort.
type Sender interface {
	Send(ctx context.Context, to, templateKey string, variables map[string]string) (messageID string, err error)
}

// SMTPSender renders a registered template and delivers it over SMTP with
// a bounded timeout.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender validates the transport configuration.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, templateKey string, variables map[string]string) (string, error) {
	if to == "" {
		return "", fmt.Errorf("recipient address is required")
	}

	tpl, err := LookupTemplate(templateKey)
	if err != nil {
		return "", err
	}
	subject, body := tpl.Render(variables)

	messageID := uuid.NewString()
	msg := []byte(fmt.Sprintf("From: %s <%s>\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Message-Id: <%s@codeseek>\r\n"+
		"\r\n"+
		"%s\r\n", s.cfg.FromName, s.cfg.FromAddress, to, subject, messageID, body))

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	// smtp.SendMail has no context support, so the send runs in its own
	// goroutine and the caller is released on timeout. A timed-out send may
	// still land; delivery here is best-effort by contract.
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{to}, msg)
	}()

	select {
	case <-sendCtx.Done():
		return "", fmt.Errorf("smtp send timed out: %w", sendCtx.Err())
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("smtp send: %w", err)
		}
		return messageID, nil
	}
}
