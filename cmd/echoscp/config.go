package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/kimsuk/fo-dicom/dicomerr"
	"github.com/kimsuk/fo-dicom/observability"
	"github.com/kimsuk/fo-dicom/server"
	"github.com/kimsuk/fo-dicom/types"
)

// Config drives the echoscp daemon. Every field can be set in a TOML file;
// the most common ones are also exposed as command line flags, which win
// over the file.
type Config struct {
	ListenAddress        string   `toml:"listen_address"`
	AETitle              string   `toml:"ae_title"`
	MaxPDULength         uint32   `toml:"max_pdu_length"`
	ReadTimeout          string   `toml:"read_timeout"`
	WriteTimeout         string   `toml:"write_timeout"`
	TransferSyntaxes     []string `toml:"transfer_syntaxes"`
	SCPPriority          bool     `toml:"scp_priority"`
	RequireCalledAETitle bool     `toml:"require_called_ae_title"`
	MetricsAddress       string   `toml:"metrics_address"`

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// DefaultConfig returns the configuration used when no file and no flags
// are given.
func DefaultConfig() Config {
	return Config{
		ListenAddress: ":11112",
		AETitle:       "ECHOSCP",
		MaxPDULength:  types.DefaultMaxPDULength,
		ReadTimeout:   "60s",
		WriteTimeout:  "60s",
	}
}

// LoadConfig reads a TOML configuration file over the defaults. An empty
// path yields the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration and resolves the timeout strings.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if c.AETitle == "" {
		return fmt.Errorf("ae_title must not be empty")
	}
	if len(c.AETitle) > 16 {
		return fmt.Errorf("ae_title %q exceeds 16 characters", c.AETitle)
	}
	if c.MaxPDULength != 0 && c.MaxPDULength < 1024 {
		return fmt.Errorf("max_pdu_length %d is below the 1024 byte minimum", c.MaxPDULength)
	}
	for _, uid := range c.TransferSyntaxes {
		if !types.IsKnownTransferSyntax(uid) {
			return fmt.Errorf("unknown transfer syntax %q: %w", uid, dicomerr.ErrUnsupportedTransfer)
		}
	}

	var err error
	if c.readTimeout, err = parseTimeout("read_timeout", c.ReadTimeout); err != nil {
		return err
	}
	if c.writeTimeout, err = parseTimeout("write_timeout", c.WriteTimeout); err != nil {
		return err
	}
	return nil
}

func parseTimeout(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, value)
	}
	return d, nil
}

// ServerOptions translates the configuration into server options. Validate
// must have been called first so the timeout strings are resolved.
func (c *Config) ServerOptions(logger zerolog.Logger) []server.Option {
	opts := []server.Option{
		server.WithLogger(observability.Component(logger, "server")),
		server.WithMetrics(c.MetricsAddress != ""),
	}
	if c.MaxPDULength != 0 {
		opts = append(opts, server.WithMaxPDULength(c.MaxPDULength))
	}
	if len(c.TransferSyntaxes) > 0 {
		opts = append(opts, server.WithTransferSyntaxes(c.TransferSyntaxes))
	}
	if c.SCPPriority {
		opts = append(opts, server.WithSCPPriority(true))
	}
	if c.RequireCalledAETitle {
		opts = append(opts, server.WithRequireCalledAETitle(true))
	}
	if c.readTimeout > 0 {
		opts = append(opts, server.WithReadTimeout(c.readTimeout))
	}
	if c.writeTimeout > 0 {
		opts = append(opts, server.WithWriteTimeout(c.writeTimeout))
	}
	return opts
}
