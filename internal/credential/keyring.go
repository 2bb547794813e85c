package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const (
	serviceName = "capstonehub"
	tokenKey    = "api-token"

	// TokenEnv overrides the keyring when set; useful for CI and scripting.
	TokenEnv = "CAPSTONEHUB_TOKEN"
)

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
		FileDir:                  "~/.config/capstonehub/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("capstonehub-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token returns the stored API token. The CAPSTONEHUB_TOKEN environment
// variable takes precedence over the keyring.
func Token() (string, error) {
	if tok := os.Getenv(TokenEnv); tok != "" {
		return tok, nil
	}

	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}

	return string(item.Data), nil
}

// SetToken stores the API token in the system keyring.
func SetToken(value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting token: %w", err)
	}

	return nil
}

// DeleteToken removes the API token from the system keyring.
func DeleteToken() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	if err := ring.Remove(tokenKey); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}

	return nil
}
