package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. CHIRP_JWT_SECRET.
const EnvPrefix = "CHIRP_"

type Config struct {
	Addr              string        `koanf:"addr"`
	DBDriver          string        `koanf:"db_driver"`
	DBDSN             string        `koanf:"db_dsn"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTTL        time.Duration `koanf:"session_ttl"`
	ChallengeTTL      time.Duration `koanf:"challenge_ttl"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
	AppName           string        `koanf:"app_name"`
	PublicBaseURL     string        `koanf:"public_base_url"`
	UploadDir         string        `koanf:"upload_dir"`
	MaxUploadBytes    int64         `koanf:"max_upload_bytes"`
	LogFormat         string        `koanf:"log_format"`
	DevMode           bool          `koanf:"dev_mode"`
	FallbackPolicy    string        `koanf:"fallback_policy"`
	AuthRatePerMinute int           `koanf:"auth_rate_per_minute"`
	// TrustedProxies lists the CIDRs or IPs whose X-Forwarded-For header is
	// believed. Empty means the TCP peer is always the client.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func defaults() map[string]any {
	return map[string]any{
		"addr":                 ":3000",
		"db_driver":            DriverSQLite,
		"db_dsn":               "chirp.db",
		"jwt_secret":           "",
		"session_ttl":          auth.DefaultSessionTTL,
		"challenge_ttl":        auth.DefaultChallengeTTL,
		"bcrypt_cost":          auth.DefaultBcryptCost,
		"app_name":             "chirp",
		"public_base_url":      "http://localhost:3000",
		"upload_dir":           "uploads",
		"max_upload_bytes":     int64(5 << 20),
		"log_format":           "json",
		"dev_mode":             false,
		"fallback_policy":      string(auth.FallbackReject),
		"auth_rate_per_minute": 30,
		"trusted_proxies":      []string{},
	}
}

// RegisterFlags adds one flag per setting. Only flags the user actually sets
// override the lower layers.
func RegisterFlags(fs *pflag.FlagSet) {
	d := defaults()
	fs.String("addr", d["addr"].(string), "listen address")
	fs.String("db-driver", d["db_driver"].(string), "database driver (sqlite or postgres)")
	fs.String("db-dsn", d["db_dsn"].(string), "database path or connection string")
	fs.String("jwt-secret", "", "token signing secret")
	fs.Duration("session-ttl", d["session_ttl"].(time.Duration), "session token lifetime")
	fs.Duration("challenge-ttl", d["challenge_ttl"].(time.Duration), "wallet challenge lifetime")
	fs.Int("bcrypt-cost", d["bcrypt_cost"].(int), "bcrypt work factor")
	fs.String("app-name", d["app_name"].(string), "application name shown in wallet challenges")
	fs.String("public-base-url", d["public_base_url"].(string), "base URL used to build upload links")
	fs.String("upload-dir", d["upload_dir"].(string), "directory for uploaded images")
	fs.Int64("max-upload-bytes", d["max_upload_bytes"].(int64), "maximum upload size in bytes")
	fs.String("log-format", d["log_format"].(string), "log format (json or text)")
	fs.Bool("dev-mode", false, "include error details in API responses")
	fs.String("fallback-policy", d["fallback_policy"].(string), "outcome when signature recovery is unavailable (reject or trust)")
	fs.Int("auth-rate-per-minute", d["auth_rate_per_minute"].(int), "auth requests per minute per client IP (0 disables)")
	fs.StringSlice("trusted-proxies", nil, "CIDRs or IPs of reverse proxies allowed to set X-Forwarded-For")
}

// Load layers defaults, CHIRP_* environment variables, the optional YAML
// file at path, and explicitly set flags, in that order.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return Config{}, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	for key := range defaults() {
		if v := envString(EnvPrefix+strings.ToUpper(key), ""); v != "" {
			if err := k.Set(key, v); err != nil {
				return Config{}, fmt.Errorf("set %s from env: %w", key, err)
			}
		}
	}
	if os.Getenv(EnvPrefix+"ADDR") == "" {
		if port := os.Getenv("PORT"); port != "" {
			if err := k.Set("addr", ":"+port); err != nil {
				return Config{}, fmt.Errorf("set addr from PORT: %w", err)
			}
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first setting that would keep the server from
// starting correctly.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return auth.ErrMissingSecret
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.ChallengeTTL <= 0 {
		return errors.New("challenge_ttl must be positive")
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("db_driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("db_dsn is required")
	}
	if _, err := auth.ParseFallbackPolicy(c.FallbackPolicy); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.AuthRatePerMinute < 0 {
		return errors.New("auth_rate_per_minute cannot be negative")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TrustedProxies. A bare IP becomes a single-host
// prefix; entries may also be comma-separated, as they arrive from the
// environment.
func (c Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, entry := range c.TrustedProxies {
		for _, raw := range strings.Split(entry, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if strings.Contains(raw, "/") {
				prefix, err := netip.ParsePrefix(raw)
				if err != nil {
					return nil, fmt.Errorf("trusted_proxies: %w", err)
				}
				out = append(out, prefix.Masked())
				continue
			}
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted_proxies: %w", err)
			}
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
