package mailbox

import (
	"fmt"
	"io"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-smtp"
)

// IMAPSession is the narrow slice of an authenticated IMAP connection
// the engine needs. A session is single-use and single-threaded: it
// handles one command at a time and must be closed on every exit path,
// including failures, so server-side connection slots are not leaked.
type IMAPSession interface {
	// Select makes folder the target of subsequent commands.
	Select(folder string) error

	// SearchUIDs runs a UID SEARCH and returns the matching UIDs.
	// A nil criteria matches all messages in the folder.
	SearchUIDs(criteria *imap.SearchCriteria) ([]imap.UID, error)

	// FetchRaw retrieves the full raw message (headers and body) for
	// one UID without setting the \Seen flag.
	FetchRaw(uid imap.UID) ([]byte, error)

	// ListFolders returns the mailbox's folder names as the server
	// reports them, in server order.
	ListFolders() ([]string, error)

	// CopyTo copies the message to another folder.
	CopyTo(uid imap.UID, folder string) error

	// MarkDeleted adds the \Deleted flag to the message.
	MarkDeleted(uid imap.UID) error

	// Expunge permanently removes \Deleted messages from the selected
	// folder.
	Expunge() error

	// Close logs out and releases the connection.
	Close() error
}

// SMTPSession is an authenticated SMTP connection ready to transmit
// one or more messages. Like IMAPSession it is single-use and must be
// closed on every exit path.
type SMTPSession interface {
	// Send transmits one message to the envelope recipients.
	Send(from string, recipients []string, msg io.Reader) error

	// Close quits the session and releases the connection.
	Close() error
}

// imapSession adapts an imapclient.Client to the IMAPSession contract.
type imapSession struct {
	c *imapclient.Client
}

func (s *imapSession) Select(folder string) error {
	if _, err := s.c.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting folder %q: %w", folder, err)
	}
	return nil
}

func (s *imapSession) SearchUIDs(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	if criteria == nil {
		criteria = &imap.SearchCriteria{}
	}
	data, err := s.c.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	return data.AllUIDs(), nil
}

func (s *imapSession) FetchRaw(uid imap.UID) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.c.Fetch(imap.UIDSetNum(uid), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message uid %d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("no body returned for uid %d", uid)
	}
	return raw, nil
}

func (s *imapSession) ListFolders() ([]string, error) {
	boxes, err := s.c.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders := make([]string, 0, len(boxes))
	for _, b := range boxes {
		folders = append(folders, b.Mailbox)
	}
	return folders, nil
}

func (s *imapSession) CopyTo(uid imap.UID, folder string) error {
	if _, err := s.c.Copy(imap.UIDSetNum(uid), folder).Wait(); err != nil {
		return fmt.Errorf("copying uid %d to %q: %w", uid, folder, err)
	}
	return nil
}

func (s *imapSession) MarkDeleted(uid imap.UID) error {
	storeCmd := s.c.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("flagging uid %d as deleted: %w", uid, err)
	}
	return nil
}

func (s *imapSession) Expunge() error {
	if _, err := s.c.Expunge().Collect(); err != nil {
		return fmt.Errorf("expunging: %w", err)
	}
	return nil
}

func (s *imapSession) Close() error {
	return s.c.Logout().Wait()
}

// smtpSession adapts a smtp.Client to the SMTPSession contract.
type smtpSession struct {
	c *smtp.Client
}

func (s *smtpSession) Send(from string, recipients []string, msg io.Reader) error {
	if err := s.c.SendMail(from, recipients, msg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (s *smtpSession) Close() error {
	return s.c.Quit()
}
