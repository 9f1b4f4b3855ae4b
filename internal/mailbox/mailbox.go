// Package mailbox is the mailbox synchronization and message-transport
// engine: it opens authenticated SMTP/IMAP sessions with bounded
// retry, retrieves and decodes messages, relocates them between
// folders, and transmits outbound messages.
package mailbox

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailbridge/internal/config"
	"github.com/nhle/mailbridge/internal/history"
)

// Mailbox is the engine facade over one mail account. Every operation
// dials a fresh session, runs exactly one protocol exchange at a time
// on it, and closes it before returning; sessions are never pooled or
// shared. A Mailbox is meant for a single caller; concurrent use
// requires external mutual exclusion.
type Mailbox struct {
	cfg      *config.Config
	dialer   *Dialer
	reader   *Reader
	folders  *Folders
	composer *Composer
	hist     *history.Store
	log      *slog.Logger
}

// New creates a Mailbox for a resolved configuration. The returned
// engine owns an empty in-memory history that is appended to on every
// observed message and discarded on Close.
func New(cfg *config.Config, logger *slog.Logger) (*Mailbox, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hist, err := history.NewStore()
	if err != nil {
		return nil, err
	}

	dec := NewDecoder(cfg.AttachmentDir, cfg.SaveAttachments, cfg.IncludeHTML, logger)

	return &Mailbox{
		cfg:      cfg,
		dialer:   NewDialer(cfg, logger),
		reader:   NewReader(dec, logger),
		folders:  NewFolders(logger),
		composer: NewComposer(logger),
		hist:     hist,
		log:      logger,
	}, nil
}

// Close discards the engine's in-memory history.
func (m *Mailbox) Close() error {
	return m.hist.Close()
}

// History exposes the engine's conversation history.
func (m *Mailbox) History() *history.Store {
	return m.hist
}

// Messages fetches and decodes every message in folder.
func (m *Mailbox) Messages(ctx context.Context, folder string) ([]MessageRecord, error) {
	return m.fetch(ctx, folder, nil)
}

// Conversation fetches the message history exchanged with contact in
// the given folder.
func (m *Mailbox) Conversation(ctx context.Context, folder, contact string) ([]MessageRecord, error) {
	return m.fetch(ctx, folder, ConversationCriteria(contact))
}

func (m *Mailbox) fetch(
	ctx context.Context,
	folder string,
	criteria *imap.SearchCriteria,
) ([]MessageRecord, error) {
	s, err := m.dialer.DialIMAP(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	records, err := m.reader.Fetch(s, folder, criteria)
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		_ = m.hist.Append(ctx, history.Entry{
			Contact:    rec.From,
			Direction:  history.DirectionIn,
			Subject:    rec.Subject,
			Body:       rec.BodyText,
			UID:        rec.UID,
			RecordedAt: rec.Date,
		})
	}

	return records, nil
}

// Folders lists the account's folders as the server reports them.
func (m *Mailbox) Folders(ctx context.Context) ([]string, error) {
	s, err := m.dialer.DialIMAP(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return m.folders.List(s)
}

// Move relocates one message from source to target.
func (m *Mailbox) Move(ctx context.Context, source string, uid uint32, target string) error {
	s, err := m.dialer.DialIMAP(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return m.folders.Move(s, source, imap.UID(uid), target)
}

// Send builds and transmits a plain-text message from the configured
// account.
func (m *Mailbox) Send(
	ctx context.Context,
	to []string,
	subject, body string,
	cc, bcc []string,
) error {
	out, err := m.composer.BuildSimple(m.cfg.Address, to, subject, body, cc, bcc)
	if err != nil {
		return err
	}
	return m.transmit(ctx, out, subject, body)
}

// SendWithAttachments builds and transmits a message carrying one
// attachment per existing path; missing paths are skipped with a
// warning.
func (m *Mailbox) SendWithAttachments(
	ctx context.Context,
	to []string,
	subject, body string,
	paths []string,
	cc, bcc []string,
) error {
	out, err := m.composer.BuildWithAttachments(
		m.cfg.Address, to, subject, body, paths, cc, bcc,
	)
	if err != nil {
		return err
	}
	return m.transmit(ctx, out, subject, body)
}

// Reply builds and transmits a threaded reply to a fetched message.
func (m *Mailbox) Reply(ctx context.Context, original *MessageRecord, body string) error {
	out, err := m.composer.BuildReply(m.cfg.Address, original, body)
	if err != nil {
		return err
	}
	return m.transmit(ctx, out, "Re: "+original.Subject, body)
}

func (m *Mailbox) transmit(
	ctx context.Context,
	out *OutboundMessage,
	subject, body string,
) error {
	s, err := m.dialer.DialSMTP(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Send(out.From, out.Recipients, bytes.NewReader(out.Raw)); err != nil {
		return err
	}

	for _, rcpt := range out.Recipients {
		_ = m.hist.Append(ctx, history.Entry{
			Contact:   rcpt,
			Direction: history.DirectionOut,
			Subject:   subject,
			Body:      body,
		})
	}

	m.log.Info("message sent", "recipients", len(out.Recipients))
	return nil
}
