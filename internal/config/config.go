// Package config loads the CloudVision connection settings.
//
// Settings are layered: built-in defaults, then an optional YAML or TOML
// file, then CVP_* environment variables. The CLI applies its own flags on
// top before calling Validate.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvHost     = "CVP_HOST"
	EnvPort     = "CVP_PORT"
	EnvUsername = "CVP_USERNAME"
	EnvPassword = "CVP_PASSWORD"
	EnvAPIToken = "CVP_API_TOKEN"
)

const (
	// DefaultPort is the HTTPS port CloudVision listens on.
	DefaultPort = 443

	// DefaultTimeout is the per-request timeout in seconds.
	DefaultTimeout = 30
)

// Config holds everything needed to open a CloudVision session.
type Config struct {
	// Hosts are CloudVision nodes, tried in order until one answers.
	Hosts []string `yaml:"hosts" toml:"hosts"`

	Port int `yaml:"port" toml:"port"`

	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`

	// APIToken is a service account token. When set it is used as a bearer
	// token instead of a username/password login (required for CVaaS).
	APIToken string `yaml:"api_token" toml:"api_token"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout" toml:"timeout"`

	// ValidateCerts turns TLS certificate verification on or off.
	ValidateCerts bool `yaml:"validate_certs" toml:"validate_certs"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:          DefaultPort,
		Timeout:       DefaultTimeout,
		ValidateCerts: true,
	}
}

// Load reads path on top of the defaults and applies the environment.
// An empty path skips the file. The format is picked from the extension:
// .toml is TOML, anything else YAML.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, out)
	default:
		err = yaml.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with any CVP_* variables that are set. CVP_HOST
// may hold a comma separated list of nodes.
func ApplyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		cfg.Hosts = SplitHosts(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		cfg.APIToken = v
	}
	return nil
}

// SplitHosts splits a comma separated host list and drops empty entries.
func SplitHosts(raw string) []string {
	var hosts []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Validate reports every problem with cfg at once.
func (c Config) Validate() error {
	var errs []string
	if len(c.Hosts) == 0 {
		errs = append(errs, "at least one host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("port %d out of range (1-65535)", c.Port))
	}
	if c.APIToken == "" && (c.Username == "" || c.Password == "") {
		errs = append(errs, "either api_token or username and password are required")
	}
	if c.Timeout <= 0 {
		errs = append(errs, "timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid connection settings:\n - %s", strings.Join(errs, "\n - "))
	}
	return nil
}

// RequestTimeout returns Timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
