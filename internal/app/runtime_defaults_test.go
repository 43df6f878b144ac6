package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesSecrets(t *testing.T) {
	cfg := &Config{}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.True(t, generated["auth.jwt.secret"])
	require.True(t, generated["security.encryption_key"])
	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.NotEmpty(t, cfg.Security.EncryptionKey)

	key, err := cfg.Security.EncryptionKeyBytes()
	require.NoError(t, err)
	require.Len(t, key, 32)
}

func TestApplyRuntimeDefaultsPreservesExisting(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.Secret = "configured"
	cfg.Security.EncryptionKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, "configured", cfg.Auth.JWT.Secret)
}

func TestEncryptionKeyBytesRejectsBadKey(t *testing.T) {
	cfg := SecurityConfig{EncryptionKey: "not-hex"}
	_, err := cfg.EncryptionKeyBytes()
	require.Error(t, err)

	cfg = SecurityConfig{EncryptionKey: "abcd"}
	_, err = cfg.EncryptionKeyBytes()
	require.Error(t, err)
}
