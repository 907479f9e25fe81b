package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/csoportal/internal/config"
	mail "github.com/xhit/go-simple-mail/v2"
)

// Message is a single outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender, or a sender that only logs when email is
// disabled or dry run is on.
func NewSender(cfg *config.EmailConfig, dryRun bool) Sender {
	if cfg == nil || !cfg.Enabled || dryRun {
		return LogSender{}
	}
	return &SMTPSender{config: cfg}
}

// LogSender logs messages instead of sending them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Info("DRY RUN: would send email", "to", msg.To, "subject", msg.Subject)
	return nil
}

// SMTPSender sends messages with go-simple-mail, one connection per message.
type SMTPSender struct {
	config *config.EmailConfig
}

func (s *SMTPSender) server() *mail.SMTPServer {
	server := mail.NewSMTPClient()
	server.Host = s.config.SMTPHost
	server.Port = s.config.SMTPPort
	server.Username = s.config.Username
	server.Password = s.config.Password

	switch {
	case s.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case s.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}
	if s.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second
	return server
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	smtpClient, err := s.server().Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := s.config.FromName
	if fromName == "" {
		fromName = "CSO Portal"
	}

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", fromName, s.config.FromEmail))
	email.AddTo(msg.To)
	email.SetSubject(msg.Subject)
	email.SetBody(mail.TextHTML, msg.HTML)
	if msg.Text != "" {
		email.AddAlternative(mail.TextPlain, msg.Text)
	}
	if email.Error != nil {
		return fmt.Errorf("failed to build email: %w", email.Error)
	}

	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
