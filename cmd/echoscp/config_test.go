package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/types"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echoscp.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":11112", cfg.ListenAddress)
	assert.Equal(t, "ECHOSCP", cfg.AETitle)
	assert.Equal(t, types.DefaultMaxPDULength, cfg.MaxPDULength)
	assert.Empty(t, cfg.MetricsAddress)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 60*time.Second, cfg.readTimeout)
	assert.Equal(t, 60*time.Second, cfg.writeTimeout)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfigFile(t, `
listen_address = "0.0.0.0:10104"
ae_title = "PACS_PROBE"
max_pdu_length = 32768
read_timeout = "90s"
transfer_syntaxes = [
  "1.2.840.10008.1.2.1",
  "1.2.840.10008.1.2",
]
scp_priority = true
require_called_ae_title = true
metrics_address = ":9090"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:10104", cfg.ListenAddress)
	assert.Equal(t, "PACS_PROBE", cfg.AETitle)
	assert.Equal(t, uint32(32768), cfg.MaxPDULength)
	assert.Equal(t, 90*time.Second, cfg.readTimeout)
	assert.Equal(t, 60*time.Second, cfg.writeTimeout)
	assert.Equal(t, []string{types.ExplicitVRLittleEndian, types.ImplicitVRLittleEndian}, cfg.TransferSyntaxes)
	assert.True(t, cfg.SCPPriority)
	assert.True(t, cfg.RequireCalledAETitle)
	assert.Equal(t, ":9090", cfg.MetricsAddress)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_MalformedTOML(t *testing.T) {
	path := writeConfigFile(t, "listen_address = [unclosed")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty listen address",
			mutate:  func(c *Config) { c.ListenAddress = "" },
			wantErr: "listen_address",
		},
		{
			name:    "empty ae title",
			mutate:  func(c *Config) { c.AETitle = "" },
			wantErr: "ae_title",
		},
		{
			name:    "ae title too long",
			mutate:  func(c *Config) { c.AETitle = "THIS_AE_TITLE_IS_TOO_LONG" },
			wantErr: "16 characters",
		},
		{
			name:    "max pdu length too small",
			mutate:  func(c *Config) { c.MaxPDULength = 512 },
			wantErr: "max_pdu_length",
		},
		{
			name:    "unknown transfer syntax",
			mutate:  func(c *Config) { c.TransferSyntaxes = []string{"1.2.3.4"} },
			wantErr: "unknown transfer syntax",
		},
		{
			name:    "unparseable read timeout",
			mutate:  func(c *Config) { c.ReadTimeout = "soon" },
			wantErr: "read_timeout",
		},
		{
			name:    "negative write timeout",
			mutate:  func(c *Config) { c.WriteTimeout = "-5s" },
			wantErr: "write_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_UnknownTransferSyntaxSentinel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TransferSyntaxes = []string{"1.2.3.4"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, dicomerr.ErrUnsupportedTransfer)
}
