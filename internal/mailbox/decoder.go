package mailbox

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"

	// Registers charset decoding so part-declared charsets are tried
	// first when reading message bodies.
	_ "github.com/emersion/go-message/charset"
)

// decodeSentinel is substituted for a part whose content could not be
// read at all. Decoding never aborts a message.
const decodeSentinel = "[error decoding content]"

// noSubject is recorded when a message carries no subject header.
const noSubject = "(no subject)"

// Decoder turns raw messages into MessageRecords: it walks the MIME
// structure recursively, concatenates inline text parts, and persists
// attachment parts to the attachment directory.
//
// Text bytes are decoded by trying the part-declared charset first,
// then UTF-8, then Latin-1 with lossy replacement, so a malformed
// charset label never fails the whole message.
type Decoder struct {
	attachmentDir   string
	saveAttachments bool
	includeHTML     bool
	log             *slog.Logger
}

// NewDecoder creates a Decoder. Attachments are written into dir,
// which is created on demand. When save is false only the reported
// filenames are recorded. includeHTML makes text/html parts contribute
// to the body text alongside text/plain.
func NewDecoder(dir string, save, includeHTML bool, logger *slog.Logger) *Decoder {
	return &Decoder{
		attachmentDir:   dir,
		saveAttachments: save,
		includeHTML:     includeHTML,
		log:             logger,
	}
}

// Decode parses one raw message into a MessageRecord. Attachment files
// are on disk before the record is returned. Per-part failures are
// logged and substituted, never propagated; only a message too
// malformed to parse headers from degrades to a raw-body record.
func (d *Decoder) Decode(raw []byte) (*MessageRecord, error) {
	rec := &MessageRecord{Subject: noSubject}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		// Not parseable as a MIME message; keep what we can.
		d.log.Warn("message not parseable as MIME, keeping raw body",
			"error", err)
		rec.BodyText = decodeText(raw)
		return rec, nil
	}

	d.readHeaders(entity, rec)
	d.walk(entity, rec)
	return rec, nil
}

// readHeaders fills the record's envelope fields from the message
// headers, applying documented fallbacks for absent values.
func (d *Decoder) readHeaders(entity *message.Entity, rec *MessageRecord) {
	h := mail.Header{Header: entity.Header}

	if subject, err := h.Subject(); err == nil && subject != "" {
		rec.Subject = subject
	}
	if id, err := h.MessageID(); err == nil {
		rec.MessageID = id
	}
	if date, err := h.Date(); err == nil {
		rec.Date = date
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		rec.From = from[0].Address
	} else if raw := entity.Header.Get("From"); raw != "" {
		rec.From = raw
	}

	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			rec.To = append(rec.To, addr.Address)
		}
	} else if raw := entity.Header.Get("To"); raw != "" {
		rec.To = append(rec.To, raw)
	}
}

// walk visits every part of a multipart entity in traversal order.
func (d *Decoder) walk(entity *message.Entity, rec *MessageRecord) {
	mr := entity.MultipartReader()
	if mr == nil {
		d.leaf(entity, rec)
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			d.log.Warn("stopping part traversal",
				"error", &DecodeError{Part: "multipart", Err: err})
			break
		}
		if part == nil {
			break
		}
		d.walk(part, rec)
	}
}

// leaf classifies a single non-multipart part: attachments are
// persisted, inline text contributes to the body.
func (d *Decoder) leaf(entity *message.Entity, rec *MessageRecord) {
	ctype, ctParams, _ := entity.Header.ContentType()
	if ctype == "" {
		ctype = "text/plain"
	}
	disp, dispParams, _ := entity.Header.ContentDisposition()

	if disp == "attachment" {
		filename := dispParams["filename"]
		if filename == "" {
			filename = ctParams["name"]
		}
		if filename == "" {
			return
		}
		d.saveAttachment(entity, filename, rec)
		return
	}
	if disp != "" {
		// Inline-disposed parts (e.g. embedded images) are neither
		// body text nor attachments.
		return
	}

	if ctype != "text/plain" && !(d.includeHTML && ctype == "text/html") {
		return
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		d.log.Warn("part body unreadable, substituting marker",
			"error", &DecodeError{Part: ctype, Err: err})
		rec.BodyText += decodeSentinel
		return
	}
	rec.BodyText += decodeText(body)
}

// saveAttachment writes the part payload into the attachment
// directory and records the path. Filename collisions are not
// deduplicated: the last write wins.
func (d *Decoder) saveAttachment(entity *message.Entity, filename string, rec *MessageRecord) {
	if !d.saveAttachments {
		rec.Attachments = append(rec.Attachments, filename)
		return
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		d.log.Warn("attachment unreadable, skipping",
			"filename", filename,
			"error", &DecodeError{Part: filename, Err: err})
		return
	}

	if err := os.MkdirAll(d.attachmentDir, 0o755); err != nil {
		d.log.Warn("creating attachment directory failed",
			"dir", d.attachmentDir, "error", err)
		return
	}

	path := filepath.Join(d.attachmentDir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		d.log.Warn("writing attachment failed",
			"path", path, "error", err)
		return
	}

	rec.Attachments = append(rec.Attachments, path)
}

// decodeText recovers text from part bytes that the declared charset
// did not already convert: valid UTF-8 passes through, everything else
// is read as Latin-1, which maps every byte and so never fails.
func decodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return decodeSentinel
	}
	return string(decoded)
}
