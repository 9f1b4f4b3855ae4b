// Package provider maps email address domains to the SMTP and IMAP
// server profiles of well-known mail providers.
package provider

import (
	"fmt"
	"strings"
)

// Protocol identifies which mail protocol a profile describes.
type Protocol string

const (
	ProtocolSMTP Protocol = "smtp"
	ProtocolIMAP Protocol = "imap"
)

// Profile describes how to reach one server of a mail provider.
// A Profile is immutable once a session has been opened against it.
type Profile struct {
	Protocol Protocol
	Host     string
	Port     int

	// ImplicitTLS means the connection starts encrypted (TLS from the
	// first byte). StartTLS means the connection is upgraded in-band.
	// Exactly one of the two is set; plaintext profiles do not exist.
	ImplicitTLS bool
	StartTLS    bool
}

// Addr returns the host:port dial address for the profile.
func (p Profile) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// ServerPair holds the SMTP and IMAP profiles of one provider.
type ServerPair struct {
	SMTP Profile
	IMAP Profile
}

// UnsupportedDomainError is returned by Lookup when no server profile
// is known for the address's domain.
type UnsupportedDomainError struct {
	Domain string
}

func (e *UnsupportedDomainError) Error() string {
	return fmt.Sprintf("unsupported email provider for domain %q", e.Domain)
}

// pair builds a provider entry with the conventional ports: SMTP
// submission on 587 with STARTTLS, IMAP on 993 with implicit TLS.
func pair(smtpHost, imapHost string) ServerPair {
	return ServerPair{
		SMTP: Profile{
			Protocol: ProtocolSMTP,
			Host:     smtpHost,
			Port:     587,
			StartTLS: true,
		},
		IMAP: Profile{
			Protocol:    ProtocolIMAP,
			Host:        imapHost,
			Port:        993,
			ImplicitTLS: true,
		},
	}
}

// servers is the static domain lookup table.
var servers = map[string]ServerPair{
	"gmail.com":   pair("smtp.gmail.com", "imap.gmail.com"),
	"yahoo.com":   pair("smtp.mail.yahoo.com", "imap.mail.yahoo.com"),
	"outlook.com": pair("smtp-mail.outlook.com", "outlook.office365.com"),
	"outlook.de":  pair("smtp-mail.outlook.com", "outlook.office365.com"),
	"hotmail.com": pair("smtp-mail.outlook.com", "outlook.office365.com"),
}

// Domain extracts the domain part of an email address.
func Domain(address string) (string, error) {
	at := strings.LastIndex(address, "@")
	if at < 1 || at == len(address)-1 {
		return "", fmt.Errorf("malformed email address %q", address)
	}
	return strings.ToLower(address[at+1:]), nil
}

// Lookup resolves the server profiles for an email address via the
// static provider table. Unknown domains fail with
// *UnsupportedDomainError; the caller must treat this as a
// configuration problem, not a transient one.
func Lookup(address string) (ServerPair, error) {
	domain, err := Domain(address)
	if err != nil {
		return ServerPair{}, err
	}

	p, ok := servers[domain]
	if !ok {
		return ServerPair{}, &UnsupportedDomainError{Domain: domain}
	}
	return p, nil
}
