package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "")
	for key := range defaults() {
		t.Setenv(EnvPrefix+strings.ToUpper(key), "")
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":3000", c.Addr)
	assert.Equal(t, DriverSQLite, c.DBDriver)
	assert.Equal(t, "chirp.db", c.DBDSN)
	assert.Equal(t, "", c.JWTSecret)
	assert.Equal(t, 24*time.Hour, c.SessionTTL)
	assert.Equal(t, 5*time.Minute, c.ChallengeTTL)
	assert.Equal(t, 10, c.BcryptCost)
	assert.Equal(t, int64(5<<20), c.MaxUploadBytes)
	assert.Equal(t, "reject", c.FallbackPolicy)
	assert.Equal(t, 30, c.AuthRatePerMinute)
	assert.Empty(t, c.TrustedProxies)
	assert.False(t, c.DevMode)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHIRP_JWT_SECRET", "from-env")
	t.Setenv("CHIRP_SESSION_TTL", "2h")
	t.Setenv("CHIRP_DEV_MODE", "true")
	t.Setenv("CHIRP_BCRYPT_COST", "12")
	t.Setenv("PORT", "9999")

	c, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", c.JWTSecret)
	assert.Equal(t, 2*time.Hour, c.SessionTTL)
	assert.True(t, c.DevMode)
	assert.Equal(t, 12, c.BcryptCost)
	assert.Equal(t, ":9999", c.Addr)
}

func TestLoadFileThenFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHIRP_APP_NAME", "env-name")

	path := filepath.Join(t.TempDir(), "chirp.yaml")
	yml := "app_name: file-name\njwt_secret: file-secret\nchallenge_ttl: 90s\ndb_driver: postgres\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	fs := newFlags(t, "--jwt-secret", "flag-secret", "--auth-rate-per-minute", "0")
	c, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "file-name", c.AppName)
	assert.Equal(t, "flag-secret", c.JWTSecret)
	assert.Equal(t, 90*time.Second, c.ChallengeTTL)
	assert.Equal(t, DriverPostgres, c.DBDriver)
	assert.Equal(t, 0, c.AuthRatePerMinute)
	// Unset flags keep the lower layers.
	assert.Equal(t, ":3000", c.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load("", nil)
	require.NoError(t, err)
	base.JWTSecret = "s"
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"session ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"challenge ttl", func(c *Config) { c.ChallengeTTL = -time.Second }},
		{"driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"dsn", func(c *Config) { c.DBDSN = "" }},
		{"policy", func(c *Config) { c.FallbackPolicy = "sometimes" }},
		{"log format", func(c *Config) { c.LogFormat = "xml" }},
		{"upload size", func(c *Config) { c.MaxUploadBytes = 0 }},
		{"rate", func(c *Config) { c.AuthRatePerMinute = -1 }},
		{"trusted proxies", func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/33"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	c := base
	c.JWTSecret = ""
	err = c.Validate()
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
	assert.Equal(t, auth.KindConfig, auth.KindOf(err))
}

func TestTrustedProxyPrefixes(t *testing.T) {
	c := Config{TrustedProxies: []string{"10.0.0.0/8", " 192.0.2.7 , ::ffff:198.51.100.1", "2001:db8::/32"}}
	got, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("192.0.2.7/32"),
		netip.MustParsePrefix("198.51.100.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
	}, got)

	_, err = Config{TrustedProxies: []string{"proxy.internal"}}.TrustedProxyPrefixes()
	assert.Error(t, err)
}

func TestTrustedProxiesFromFlagsAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHIRP_TRUSTED_PROXIES", "10.1.0.0/16,10.2.0.1")

	c, err := Load("", nil)
	require.NoError(t, err)
	prefixes, err := c.TrustedProxyPrefixes()
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{
		netip.MustParsePrefix("10.1.0.0/16"),
		netip.MustParsePrefix("10.2.0.1/32"),
	}, prefixes)

	c, err = Load("", newFlags(t, "--trusted-proxies", "172.16.0.0/12"))
	require.NoError(t, err)
	assert.Equal(t, []string{"172.16.0.0/12"}, c.TrustedProxies)
}
