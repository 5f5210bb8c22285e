package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sandbox-term/internal/domain"
	"sandbox-term/internal/infra/config"
)

func TestStatic(t *testing.T) {
	tok, err := Static(" abc \n").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = Static("").Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestEnv(t *testing.T) {
	t.Setenv("SANDBOX_TEST_TOKEN", "from-env")
	tok, err := Env("SANDBOX_TEST_TOKEN").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", tok)

	t.Setenv("SANDBOX_TEST_TOKEN", "")
	_, err = Env("SANDBOX_TEST_TOKEN").Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestFileRereadsOnEveryCall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0600))

	src := File(path)
	tok, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", tok)

	require.NoError(t, os.WriteFile(path, []byte("second"), 0600))
	tok, err = src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", tok)
}

func TestFileErrors(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing")).Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0600))
	_, err = File(empty).Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestFromConfigPrecedence(t *testing.T) {
	assert.Nil(t, FromConfig(config.AuthConfig{}))
	assert.Equal(t, Static("t"), FromConfig(config.AuthConfig{Token: "t"}))
	assert.Equal(t, Env("E"), FromConfig(config.AuthConfig{Token: "t", TokenEnv: "E"}))
	assert.Equal(t, File("/f"), FromConfig(config.AuthConfig{Token: "t", TokenEnv: "E", TokenFile: "/f"}))
}
