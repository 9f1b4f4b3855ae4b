package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/mailbridge/internal/config"
)

// Dialer opens authenticated SMTP and IMAP sessions with bounded retry
// and a fixed delay between attempts. Credentials are only ever sent
// over TLS: IMAP connections are implicit TLS, SMTP connections are
// upgraded with STARTTLS before authentication.
type Dialer struct {
	imapAddr string
	imapHost string
	smtpAddr string
	smtpHost string
	address  string
	secret   string
	retries  int
	delay    time.Duration
	log      *slog.Logger
}

// NewDialer creates a Dialer from a resolved configuration.
func NewDialer(cfg *config.Config, logger *slog.Logger) *Dialer {
	return &Dialer{
		imapAddr: fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort),
		imapHost: cfg.IMAPHost,
		smtpAddr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		smtpHost: cfg.SMTPHost,
		address:  cfg.Address,
		secret:   cfg.Secret,
		retries:  cfg.Retries,
		delay:    cfg.RetryDelay,
		log:      logger,
	}
}

// DialIMAP connects and authenticates an IMAP session. On retry
// exhaustion it returns a ConnectionError; callers should skip the
// operation rather than abort the process. The caller owns the session
// and must close it on every path.
func (d *Dialer) DialIMAP(ctx context.Context) (IMAPSession, error) {
	return withRetry(ctx, d.log, "imap", d.retries, d.delay,
		func() (IMAPSession, error) {
			return d.dialIMAPOnce()
		})
}

func (d *Dialer) dialIMAPOnce() (IMAPSession, error) {
	client, err := imapclient.DialTLS(d.imapAddr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", d.imapAddr, err)
	}

	if err := client.Login(d.address, d.secret).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("IMAP authentication for %s: %w", d.address, err)
	}

	return &imapSession{c: client}, nil
}

// DialSMTP connects and authenticates an SMTP session, upgrading the
// connection with STARTTLS before credentials are sent. Same retry and
// ownership rules as DialIMAP.
func (d *Dialer) DialSMTP(ctx context.Context) (SMTPSession, error) {
	return withRetry(ctx, d.log, "smtp", d.retries, d.delay,
		func() (SMTPSession, error) {
			return d.dialSMTPOnce()
		})
}

func (d *Dialer) dialSMTPOnce() (SMTPSession, error) {
	tlsConfig := &tls.Config{ServerName: d.smtpHost}

	client, err := smtp.DialStartTLS(d.smtpAddr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to SMTP %s: %w", d.smtpAddr, err)
	}

	auth := sasl.NewPlainClient("", d.address, d.secret)
	if err := client.Auth(auth); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("SMTP authentication for %s: %w", d.address, err)
	}

	return &smtpSession{c: client}, nil
}
