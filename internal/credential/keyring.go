package credential

import (
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

// serviceName namespaces entries in the system keyring.
const serviceName = "todoweb"

// SessionSecretKey is the keyring entry holding the cookie signing secret.
const SessionSecretKey = "session-secret"

// fileKeyEnvVar overrides the passphrase of the encrypted-file fallback
// backend, used on headless servers without a desktop keychain.
const fileKeyEnvVar = "TODOWEB_KEYRING_PASSPHRASE"

func openKeyring() (keyring.Keyring, error) {
	passphrase := os.Getenv(fileKeyEnvVar)
	if passphrase == "" {
		passphrase = "todoweb-file-key"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/todoweb/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(passphrase),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a value stored under key.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores value under key, replacing any previous value.
func Set(key, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "todoweb " + key,
		Description: "todoweb web server credential",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes the value stored under key.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
