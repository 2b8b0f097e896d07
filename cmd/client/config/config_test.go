package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultURL, cfg.URL)
		assert.Equal(t, DefaultTimeout, cfg.Timeout)
		assert.Equal(t, uint(DefaultBufferSize), cfg.BufferSize)
		assert.Zero(t, cfg.MaxReconnects)
	})

	t.Run("file and env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yaml")
		require.NoError(t, os.WriteFile(path, []byte("url: http://ledger:8545\ntimeout: 3s\nmax_reconnects: 5\n"), 0o600))
		t.Setenv("LEDGER_CLIENT_URL", "wss://ledger.example.org")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "wss://ledger.example.org", cfg.URL)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, uint(5), cfg.MaxReconnects)
	})
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         ClientConfig
		expectedErr string
	}{
		{"valid", ClientConfig{URL: "ws://localhost:8545", Timeout: time.Second, BufferSize: 1, LogLevel: "warn"}, ""},
		{"no host", ClientConfig{URL: "localhost", Timeout: time.Second, BufferSize: 1, LogLevel: "info"}, `invalid url "localhost"`},
		{"bad scheme", ClientConfig{URL: "ftp://ledger", Timeout: time.Second, BufferSize: 1, LogLevel: "info"}, `unsupported url scheme "ftp"`},
		{"zero timeout", ClientConfig{URL: "http://ledger", BufferSize: 1, LogLevel: "info"}, "invalid timeout"},
		{"zero buffer", ClientConfig{URL: "http://ledger", Timeout: time.Second, LogLevel: "info"}, "invalid buffer_size"},
		{"bad level", ClientConfig{URL: "http://ledger", Timeout: time.Second, BufferSize: 1, LogLevel: "chatty"}, `invalid log_level "chatty"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.expectedErr)
		})
	}
}
