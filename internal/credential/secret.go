package credential

import (
	"errors"
	"os"
	"strings"
)

// SecretEnvVar is the environment variable consulted for the session
// signing secret when the configuration does not carry one.
const SecretEnvVar = "SECRET_KEY"

// ErrNoSecret is returned when no session secret can be found.
var ErrNoSecret = errors.New("no session secret configured: set session.secret, " +
	SecretEnvVar + ", or run `todoweb secret set`")

// keyringGet is swapped in tests to avoid touching the system keyring.
var keyringGet = Get

// SessionSecret resolves the cookie signing secret. The configured value
// wins, then the SECRET_KEY environment variable, then the system keyring.
func SessionSecret(configured string) ([]byte, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return []byte(v), nil
	}
	if v := strings.TrimSpace(os.Getenv(SecretEnvVar)); v != "" {
		return []byte(v), nil
	}
	v, err := keyringGet(SessionSecretKey)
	if err != nil || strings.TrimSpace(v) == "" {
		return nil, ErrNoSecret
	}
	return []byte(strings.TrimSpace(v)), nil
}
