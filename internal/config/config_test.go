package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every CVP_* variable for the duration of the test so the
// developer's shell does not leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvHost, EnvPort, EnvUsername, EnvPassword, EnvAPIToken} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "cvp.yml", `
hosts: [cvp1.lab, cvp2.lab]
username: cvpadmin
password: secret
validate_certs: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cvp1.lab", "cvp2.lab"}, cfg.Hosts)
	assert.Equal(t, "cvpadmin", cfg.Username)
	assert.False(t, cfg.ValidateCerts)
	assert.Equal(t, DefaultPort, cfg.Port, "unset keys keep their defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_TOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "cvp.toml", `
hosts = ["www.arista.io"]
api_token = "tok"
port = 8443
timeout = 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"www.arista.io"}, cfg.Hosts)
	assert.Equal(t, "tok", cfg.APIToken)
	assert.Equal(t, 8443, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.True(t, cfg.ValidateCerts)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "cvp.yml", "hosts: [file.lab]\nusername: a\npassword: b\n")
	t.Setenv(EnvHost, "env1.lab, env2.lab,")
	t.Setenv(EnvPort, "9443")
	t.Setenv(EnvPassword, "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"env1.lab", "env2.lab"}, cfg.Hosts)
	assert.Equal(t, 9443, cfg.Port)
	assert.Equal(t, "a", cfg.Username)
	assert.Equal(t, "from-env", cfg.Password)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "config load failed")

	_, err = Load(writeConfig(t, "bad.toml", "hosts = [unterminated"))
	assert.ErrorContains(t, err, "config parse failed")

	t.Setenv(EnvPort, "https")
	_, err = Load("")
	assert.ErrorContains(t, err, EnvPort)
}

func TestValidate(t *testing.T) {
	cfg := Config{Port: 0, Timeout: 0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one host")
	assert.Contains(t, err.Error(), "port 0 out of range")
	assert.Contains(t, err.Error(), "api_token or username and password")
	assert.Contains(t, err.Error(), "timeout must be positive")
}
