package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/cv-container/internal/config"
)

func TestLoadConnection_FlagsWin(t *testing.T) {
	for _, k := range []string{config.EnvHost, config.EnvPort, config.EnvUsername, config.EnvPassword, config.EnvAPIToken} {
		t.Setenv(k, "")
	}
	t.Setenv(config.EnvHost, "env.lab")
	t.Setenv(config.EnvPassword, "secret")

	path := filepath.Join(t.TempDir(), "cvp.toml")
	require.NoError(t, os.WriteFile(path, []byte("hosts = [\"file.lab\"]\nusername = \"file-user\"\n"), 0o600))
	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })

	cfg, err := loadConnection(&connFlags{
		hosts:    []string{"flag1.lab", "flag2.lab"},
		username: "flag-user",
		insecure: true,
		timeout:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"flag1.lab", "flag2.lab"}, cfg.Hosts)
	assert.Equal(t, "flag-user", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.False(t, cfg.ValidateCerts)
	assert.Equal(t, 5, cfg.Timeout)
	assert.Equal(t, config.DefaultPort, cfg.Port)
}

func TestLoadConnection_NoFlags(t *testing.T) {
	for _, k := range []string{config.EnvHost, config.EnvPort, config.EnvUsername, config.EnvPassword, config.EnvAPIToken} {
		t.Setenv(k, "")
	}
	t.Setenv(config.EnvHost, "env.lab")
	prev := configPath
	configPath = ""
	t.Cleanup(func() { configPath = prev })

	cfg, err := loadConnection(&connFlags{})
	require.NoError(t, err)
	assert.Equal(t, []string{"env.lab"}, cfg.Hosts)
	assert.True(t, cfg.ValidateCerts)
}
