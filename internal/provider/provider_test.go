package provider

import (
	"errors"
	"testing"
)

func TestLookup_KnownProvider(t *testing.T) {
	pair, err := Lookup("someone@gmail.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pair.SMTP.Addr() != "smtp.gmail.com:587" {
		t.Errorf("unexpected SMTP address: %q", pair.SMTP.Addr())
	}
	if !pair.SMTP.StartTLS || pair.SMTP.ImplicitTLS {
		t.Error("SMTP submission must use STARTTLS")
	}
	if pair.IMAP.Addr() != "imap.gmail.com:993" {
		t.Errorf("unexpected IMAP address: %q", pair.IMAP.Addr())
	}
	if !pair.IMAP.ImplicitTLS || pair.IMAP.StartTLS {
		t.Error("IMAP must use implicit TLS")
	}
}

func TestLookup_CaseInsensitiveDomain(t *testing.T) {
	pair, err := Lookup("Someone@GMAIL.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pair.IMAP.Host != "imap.gmail.com" {
		t.Errorf("unexpected IMAP host: %q", pair.IMAP.Host)
	}
}

func TestLookup_UnsupportedDomain(t *testing.T) {
	_, err := Lookup("someone@selfhosted.example.org")

	var ue *UnsupportedDomainError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedDomainError, got %T: %v", err, err)
	}
	if ue.Domain != "selfhosted.example.org" {
		t.Errorf("unexpected domain in error: %q", ue.Domain)
	}
}

func TestDomain_Malformed(t *testing.T) {
	for _, address := range []string{"", "no-at-sign", "@example.com", "trailing@"} {
		if _, err := Domain(address); err == nil {
			t.Errorf("expected error for %q", address)
		}
	}
}
