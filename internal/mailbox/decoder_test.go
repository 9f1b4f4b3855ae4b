package mailbox

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestDecoder_MultipartWithAttachment(t *testing.T) {
	payload := []byte{0x00, 0x01, 0x02, 0xff, 0xfe}
	raw := crlf(
		"From: Alice <alice@example.com>",
		"To: bob@example.com",
		"Subject: Quarterly report",
		"Date: Mon, 02 Jan 2006 15:04:05 -0700",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="frontier"`,
		"",
		"--frontier",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		"Report attached.",
		"--frontier",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="report.bin"`,
		"Content-Transfer-Encoding: base64",
		"",
		base64.StdEncoding.EncodeToString(payload),
		"--frontier--",
		"",
	)

	dir := t.TempDir()
	rec, err := NewDecoder(dir, true, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.From != "alice@example.com" {
		t.Errorf("expected sender address, got %q", rec.From)
	}
	if rec.Subject != "Quarterly report" {
		t.Errorf("expected subject, got %q", rec.Subject)
	}
	if len(rec.To) != 1 || rec.To[0] != "bob@example.com" {
		t.Errorf("expected recipient, got %v", rec.To)
	}
	if rec.Date.IsZero() {
		t.Error("expected parsed date")
	}
	if rec.BodyText != "Report attached." {
		t.Errorf("expected inline text body, got %q", rec.BodyText)
	}

	if len(rec.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %v", rec.Attachments)
	}
	want := filepath.Join(dir, "report.bin")
	if rec.Attachments[0] != want {
		t.Errorf("expected attachment path %q, got %q", want, rec.Attachments[0])
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("attachment file not written: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("attachment content mismatch: got %x, want %x", data, payload)
	}
}

func TestDecoder_SaveDisabledRecordsFilenameOnly(t *testing.T) {
	raw := crlf(
		"From: alice@example.com",
		"Subject: note",
		`Content-Type: multipart/mixed; boundary="b"`,
		"",
		"--b",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="invoice.pdf"`,
		"",
		"%PDF-1.4",
		"--b--",
		"",
	)

	dir := t.TempDir()
	rec, err := NewDecoder(dir, false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.Attachments) != 1 || rec.Attachments[0] != "invoice.pdf" {
		t.Errorf("expected reported filename only, got %v", rec.Attachments)
	}
	if _, err := os.Stat(filepath.Join(dir, "invoice.pdf")); !os.IsNotExist(err) {
		t.Error("no file may be written when saving is disabled")
	}
}

func TestDecoder_UnknownCharsetFallsBackToUTF8(t *testing.T) {
	raw := crlf(
		"From: alice@example.com",
		"Subject: greetings",
		`Content-Type: text/plain; charset="x-no-such-charset"`,
		"",
		"Grüße aus Köln",
	)

	rec, err := NewDecoder(t.TempDir(), false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unknown charset must not fail decoding: %v", err)
	}
	if !strings.Contains(rec.BodyText, "Köln") {
		t.Errorf("expected UTF-8 body recovered, got %q", rec.BodyText)
	}
}

func TestDecoder_Latin1Fallback(t *testing.T) {
	raw := append(crlf(
		"From: alice@example.com",
		"Subject: menu",
		`Content-Type: text/plain; charset="x-no-such-charset"`,
		"",
		"",
	), []byte("caf\xe9")...)

	rec, err := NewDecoder(t.TempDir(), false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.BodyText, "café") {
		t.Errorf("expected Latin-1 body recovered, got %q", rec.BodyText)
	}
}

func TestDecoder_UnreadablePartSubstitutesMarker(t *testing.T) {
	raw := crlf(
		"From: alice@example.com",
		"Subject: broken",
		`Content-Type: text/plain; charset="utf-8"`,
		"Content-Transfer-Encoding: base64",
		"",
		"!!!this is not base64!!!",
	)

	rec, err := NewDecoder(t.TempDir(), false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("an unreadable part must not fail the message: %v", err)
	}
	if rec.BodyText != decodeSentinel {
		t.Errorf("expected substitution marker, got %q", rec.BodyText)
	}
	if rec.Subject != "broken" {
		t.Errorf("headers must survive a broken body, got subject %q", rec.Subject)
	}
}

func TestDecoder_MissingSubjectPlaceholder(t *testing.T) {
	raw := crlf(
		"From: alice@example.com",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		"no subject here",
	)

	rec, err := NewDecoder(t.TempDir(), false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Subject != noSubject {
		t.Errorf("expected placeholder subject, got %q", rec.Subject)
	}
}

func TestDecoder_HTMLExcludedByDefault(t *testing.T) {
	raw := crlf(
		"From: alice@example.com",
		"Subject: alt",
		`Content-Type: multipart/alternative; boundary="alt"`,
		"",
		"--alt",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		"plain body",
		"--alt",
		`Content-Type: text/html; charset="utf-8"`,
		"",
		"<p>html body</p>",
		"--alt--",
		"",
	)

	rec, err := NewDecoder(t.TempDir(), false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.BodyText != "plain body" {
		t.Errorf("expected only the plain part by default, got %q", rec.BodyText)
	}

	rec, err = NewDecoder(t.TempDir(), false, true, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.BodyText, "plain body") || !strings.Contains(rec.BodyText, "<p>html body</p>") {
		t.Errorf("expected both parts when HTML is included, got %q", rec.BodyText)
	}
}

func TestDecoder_UnparseableMessageKeepsRawBody(t *testing.T) {
	raw := []byte("this is not a mime message at all")

	rec, err := NewDecoder(t.TempDir(), false, false, testLogger()).Decode(raw)
	if err != nil {
		t.Fatalf("unparseable input must degrade, not fail: %v", err)
	}
	if !strings.Contains(rec.BodyText, "not a mime message") {
		t.Errorf("expected raw body kept, got %q", rec.BodyText)
	}
	if rec.Subject != noSubject {
		t.Errorf("expected placeholder subject, got %q", rec.Subject)
	}
}

func TestFileCategory(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"photo.jpg", "image"},
		{"clip.MP4", "video"},
		{"voice.ogg", "audio"},
		{"invoice.pdf", "other"},
		{"README", "other"},
	}
	for _, c := range cases {
		if got := FileCategory(c.name); got != c.want {
			t.Errorf("FileCategory(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
