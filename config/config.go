// Package config loads broutectl's YAML configuration, grounded on
// glennswest-ipmiserial/config's pattern: pre-populate defaults onto
// the struct, then let yaml.Unmarshal override whatever the file sets.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hnw/skstack-broute/session"
)

// Config is broutectl's on-disk configuration: route-B credentials,
// the serial device, and the §6 knobs.
type Config struct {
	RouteB RouteBConfig `yaml:"routeb"`
	Serial SerialConfig `yaml:"serial"`
	Scan   ScanConfig   `yaml:"scan"`
	Tuning TuningConfig `yaml:"tuning"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type RouteBConfig struct {
	ID       string `yaml:"id"`
	Password string `yaml:"password"`
}

type SerialConfig struct {
	Device  string `yaml:"device"`
	Termios bool   `yaml:"termios"` // use the raw TermiosPort instead of tarm/serial
}

type ScanConfig struct {
	Mode            string `yaml:"mode"` // "ed", "active_ie", "active_no_ie"
	ChannelMask     uint32 `yaml:"channel_mask"`
	InitialDuration int    `yaml:"initial_duration"`
}

type TuningConfig struct {
	DefaultTimeoutMs           int  `yaml:"default_timeout_ms"`
	DefaultDelayMs             int  `yaml:"default_delay_ms"`
	ScanDurationCap            int  `yaml:"scan_duration_cap"`
	ScanRetryCeiling           int  `yaml:"scan_retry_ceiling"`
	StrictUdpSendCheck         bool `yaml:"strict_udp_send_check"`
	ResetScanDurationOnSuccess bool `yaml:"reset_scan_duration_on_success"`
}

type ServerConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// Default returns the configuration defaults mirrored from
// session.DefaultConfig, the way glennswest-ipmiserial/config.Load
// pre-populates its Config before unmarshalling.
func Default() *Config {
	sc := session.DefaultConfig()
	return &Config{
		Serial: SerialConfig{Device: "/dev/ttyUSB0"},
		Scan: ScanConfig{
			Mode:            "active_ie",
			ChannelMask:     sc.Scan.ChannelMask,
			InitialDuration: sc.Scan.InitialDuration,
		},
		Tuning: TuningConfig{
			DefaultTimeoutMs: sc.DefaultTimeoutMs,
			DefaultDelayMs:   sc.DefaultDelayMs,
			ScanDurationCap:  sc.ScanDurationCap,
			ScanRetryCeiling: sc.ScanRetryCeiling,
		},
		Server: ServerConfig{Port: 8420, Enabled: false},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads and parses path, with Default()'s values as a base.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// ScanMode maps the YAML mode name to session.ScanMode, defaulting to
// ActiveWithIE on an unrecognized or empty value.
func (c *Config) ScanMode() session.ScanMode {
	switch c.Scan.Mode {
	case "ed":
		return session.ScanModeEDScan
	case "active_no_ie":
		return session.ScanModeActiveWithoutIE
	default:
		return session.ScanModeActiveWithIE
	}
}

// SessionConfig builds a session.Config from the loaded tuning knobs.
func (c *Config) SessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.Scan.Mode = c.ScanMode()
	if c.Scan.ChannelMask != 0 {
		sc.Scan.ChannelMask = c.Scan.ChannelMask
	}
	if c.Scan.InitialDuration != 0 {
		sc.Scan.InitialDuration = c.Scan.InitialDuration
	}
	if c.Tuning.DefaultTimeoutMs != 0 {
		sc.DefaultTimeoutMs = c.Tuning.DefaultTimeoutMs
	}
	if c.Tuning.DefaultDelayMs != 0 {
		sc.DefaultDelayMs = c.Tuning.DefaultDelayMs
	}
	if c.Tuning.ScanDurationCap != 0 {
		sc.ScanDurationCap = c.Tuning.ScanDurationCap
	}
	if c.Tuning.ScanRetryCeiling != 0 {
		sc.ScanRetryCeiling = c.Tuning.ScanRetryCeiling
	}
	sc.StrictUdpSendCheck = c.Tuning.StrictUdpSendCheck
	sc.ResetScanDurationOnSuccess = c.Tuning.ResetScanDurationOnSuccess
	return sc
}
