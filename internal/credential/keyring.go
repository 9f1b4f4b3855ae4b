// Package credential stores mail account secrets in the system keyring
// so they never have to live in the configuration file.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailbridge"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailbridge/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailbridge-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Secret retrieves the stored secret for a mail account address.
func Secret(address string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(address)
	if err != nil {
		return "", fmt.Errorf("getting secret for %q: %w", address, err)
	}

	return string(item.Data), nil
}

// StoreSecret saves the secret for a mail account address.
func StoreSecret(address, secret string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  address,
		Data: []byte(secret),
	})
	if err != nil {
		return fmt.Errorf("storing secret for %q: %w", address, err)
	}

	return nil
}

// DeleteSecret removes the stored secret for a mail account address.
func DeleteSecret(address string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(address); err != nil {
		return fmt.Errorf("deleting secret for %q: %w", address, err)
	}

	return nil
}
