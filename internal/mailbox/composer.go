package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// OutboundMessage is a fully rendered message ready for transmission:
// the serialized RFC 5322 bytes plus the envelope recipient list
// (To, Cc and Bcc combined).
type OutboundMessage struct {
	From       string
	Recipients []string
	Raw        []byte
}

// Composer builds outbound messages. Attachment payloads are base64
// encoded with a Content-Disposition attachment header; a referenced
// path that does not exist is skipped with a warning rather than
// failing the whole message.
type Composer struct {
	log *slog.Logger
}

// NewComposer creates a Composer.
func NewComposer(logger *slog.Logger) *Composer {
	return &Composer{log: logger}
}

// BuildSimple builds a plain-text message. cc and bcc may be nil; when
// present they are serialized as comma-joined address lists in the
// corresponding header and included in the envelope recipients.
func (c *Composer) BuildSimple(
	from string,
	to []string,
	subject, body string,
	cc, bcc []string,
) (*OutboundMessage, error) {
	h := c.baseHeader(from, to, subject, cc, bcc)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("composing message: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return &OutboundMessage{
		From:       from,
		Recipients: envelopeRecipients(to, cc, bcc),
		Raw:        buf.Bytes(),
	}, nil
}

// BuildWithAttachments builds a multipart message with a plain-text
// body and one attachment per existing path. Missing paths are logged
// and skipped; the message still carries the remaining attachments.
func (c *Composer) BuildWithAttachments(
	from string,
	to []string,
	subject, body string,
	paths []string,
	cc, bcc []string,
) (*OutboundMessage, error) {
	h := c.baseHeader(from, to, subject, cc, bcc)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("composing message: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("composing message body: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	pw, err := tw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("composing message body: %w", err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			c.log.Warn("attachment missing, skipping",
				"path", path, "error", err)
			continue
		}

		filename := filepath.Base(path)
		ctype := mime.TypeByExtension(filepath.Ext(filename))
		if ctype == "" {
			ctype = "application/octet-stream"
		}

		var ah mail.AttachmentHeader
		ah.SetFilename(filename)
		ah.SetContentType(ctype, nil)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("attaching %s: %w", filename, err)
		}
		if _, err := aw.Write(data); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", filename, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing message: %w", err)
	}

	return &OutboundMessage{
		From:       from,
		Recipients: envelopeRecipients(to, cc, bcc),
		Raw:        buf.Bytes(),
	}, nil
}

// BuildReply builds a plain-text reply to a previously fetched
// message, threading it via In-Reply-To and References.
func (c *Composer) BuildReply(
	from string,
	original *MessageRecord,
	body string,
) (*OutboundMessage, error) {
	subject := original.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	h := c.baseHeader(from, []string{original.From}, subject, nil, nil)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if original.MessageID != "" {
		h.Set("In-Reply-To", "<"+original.MessageID+">")
		h.Set("References", "<"+original.MessageID+">")
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("composing reply: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("writing reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing reply: %w", err)
	}

	return &OutboundMessage{
		From:       from,
		Recipients: []string{original.From},
		Raw:        buf.Bytes(),
	}, nil
}

// baseHeader builds the shared header set for outbound messages.
func (c *Composer) baseHeader(
	from string,
	to []string,
	subject string,
	cc, bcc []string,
) mail.Header {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(subject)
	h.SetAddressList("From", toAddresses([]string{from}))
	h.SetAddressList("To", toAddresses(to))
	if len(cc) > 0 {
		h.SetAddressList("Cc", toAddresses(cc))
	}
	if len(bcc) > 0 {
		h.SetAddressList("Bcc", toAddresses(bcc))
	}
	h.Set("Message-Id", fmt.Sprintf("<%s@%s>", uuid.New(), messageIDDomain(from)))
	return h
}

func toAddresses(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: a})
	}
	return out
}

func envelopeRecipients(to, cc, bcc []string) []string {
	recipients := make([]string, 0, len(to)+len(cc)+len(bcc))
	recipients = append(recipients, to...)
	recipients = append(recipients, cc...)
	recipients = append(recipients, bcc...)
	return recipients
}

func messageIDDomain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return from[at+1:]
	}
	return "localhost"
}
