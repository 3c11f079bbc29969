package credential

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, h.CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, h.CheckPassword(hash, "hunter3"), ErrPasswordMismatch)
}

func TestHasher_SaltsEachHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.HashPassword("same")
	require.NoError(t, err)
	b, err := h.HashPassword("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}

func TestRandomDigits(t *testing.T) {
	d, err := RandomDigits(12)
	require.NoError(t, err)
	assert.Len(t, d, 12)
	assert.Regexp(t, `^[0-9]{12}$`, d)
}

func TestSessionSecret_Precedence(t *testing.T) {
	orig := keyringGet
	t.Cleanup(func() { keyringGet = orig })
	keyringGet = func(string) (string, error) { return "from-keyring", nil }

	t.Setenv(SecretEnvVar, "from-env")

	got, err := SessionSecret("from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", string(got))

	got, err = SessionSecret("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", string(got))

	t.Setenv(SecretEnvVar, "")
	got, err = SessionSecret("")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", string(got))

	keyringGet = func(string) (string, error) { return "", errors.New("locked") }
	_, err = SessionSecret("")
	assert.ErrorIs(t, err, ErrNoSecret)
}
