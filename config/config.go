// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Access   AccessConfig
	Import   ImportConfig
	Search   SearchConfig
	Backup   BackupConfig
	OIDC     OIDCConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	UseHTTPS        bool
	RequestTimeout  time.Duration
	SessionLifetime time.Duration
}

// DatabaseConfig holds the SQLite location
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds slog settings
type LoggingConfig struct {
	Level  string
	Format string
}

// AccessConfig states which read-only operations are open to anonymous callers.
// Every mutation always requires the admin role.
type AccessConfig struct {
	PublicSearch bool
	PublicExport bool
}

// ImportConfig holds bulk import settings
type ImportConfig struct {
	// Dedup skips rows whose name already exists in the registry
	Dedup    bool
	MaxBytes int64
}

// SearchConfig holds fuzzy search defaults
type SearchConfig struct {
	MaxResults int
	Cutoff     float64
}

// BackupConfig selects where snapshots are stored
type BackupConfig struct {
	// Backend is "local" or "s3"
	Backend string
	Dir     string
	S3      S3Config
}

// S3Config holds the S3-compatible bucket for the s3 backup backend.
// Empty keys fall back to the default AWS credential chain.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// OIDCConfig is optional; an empty Domain disables OpenID Connect login
type OIDCConfig struct {
	Domain       string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	AdminEmails  []string
}

// Enabled reports whether OpenID Connect login is configured
func (c OIDCConfig) Enabled() bool {
	return c.Domain != ""
}

// Load reads configuration from environment variables, applying defaults
func Load() (*Config, error) {
	l := &loader{}

	cfg := &Config{
		Server: ServerConfig{
			Port:            l.str("PORT", "8080"),
			UseHTTPS:        l.boolean("USE_HTTPS", false),
			RequestTimeout:  l.duration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			SessionLifetime: l.duration("SESSION_LIFETIME", time.Hour),
		},
		Database: DatabaseConfig{
			Path: l.str("DATABASE_PATH", "memorial.db"),
		},
		Logging: LoggingConfig{
			Level:  l.str("LOG_LEVEL", "info"),
			Format: l.str("LOG_FORMAT", "text"),
		},
		Access: AccessConfig{
			PublicSearch: l.boolean("PUBLIC_SEARCH", true),
			PublicExport: l.boolean("PUBLIC_EXPORT", false),
		},
		Import: ImportConfig{
			Dedup:    l.boolean("IMPORT_DEDUP", true),
			MaxBytes: int64(l.integer("IMPORT_MAX_BYTES", 10<<20)),
		},
		Search: SearchConfig{
			MaxResults: l.integer("SEARCH_MAX_RESULTS", 10),
			Cutoff:     l.float("SEARCH_CUTOFF", 0.5),
		},
		Backup: BackupConfig{
			Backend: l.str("BACKUP_BACKEND", "local"),
			Dir:     l.str("BACKUP_DIR", "backups"),
			S3: S3Config{
				Bucket:          l.str("BACKUP_S3_BUCKET", ""),
				Region:          l.str("BACKUP_S3_REGION", ""),
				Endpoint:        l.str("BACKUP_S3_ENDPOINT", ""),
				Prefix:          l.str("BACKUP_S3_PREFIX", ""),
				AccessKeyID:     l.str("BACKUP_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: l.str("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			},
		},
		OIDC: OIDCConfig{
			Domain:       l.str("OIDC_DOMAIN", ""),
			ClientID:     l.str("OIDC_CLIENT_ID", ""),
			ClientSecret: l.str("OIDC_CLIENT_SECRET", ""),
			CallbackURL:  l.str("OIDC_CALLBACK_URL", ""),
			AdminEmails:  l.list("ADMIN_EMAILS"),
		},
	}

	if len(l.errs) > 0 {
		return nil, fmt.Errorf("config load: %s", strings.Join(l.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if c.Import.MaxBytes <= 0 {
		return fmt.Errorf("IMPORT_MAX_BYTES must be positive")
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 100 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be between 1 and 100")
	}
	if !(c.Search.Cutoff >= 0 && c.Search.Cutoff <= 1) {
		return fmt.Errorf("SEARCH_CUTOFF must be between 0 and 1")
	}
	switch c.Backup.Backend {
	case "local":
		if c.Backup.Dir == "" {
			return fmt.Errorf("BACKUP_DIR must not be empty")
		}
	case "s3":
		if c.Backup.S3.Bucket == "" || c.Backup.S3.Region == "" {
			return fmt.Errorf("BACKUP_S3_BUCKET and BACKUP_S3_REGION are required for the s3 backup backend")
		}
	default:
		return fmt.Errorf("BACKUP_BACKEND must be local or s3, got %q", c.Backup.Backend)
	}
	if c.OIDC.Enabled() && (c.OIDC.ClientID == "" || c.OIDC.ClientSecret == "" || c.OIDC.CallbackURL == "") {
		return fmt.Errorf("OIDC_CLIENT_ID, OIDC_CLIENT_SECRET and OIDC_CALLBACK_URL are required when OIDC_DOMAIN is set")
	}
	return nil
}

// loader collects parse errors so every bad variable is reported at once
type loader struct {
	errs []string
}

func (l *loader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (l *loader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid value for %s=%q: %v", key, v, err))
		return def
	}
	return b
}

func (l *loader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid value for %s=%q: %v", key, v, err))
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid value for %s=%q: %v", key, v, err))
		return def
	}
	return f
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Sprintf("invalid value for %s=%q: %v", key, v, err))
		return def
	}
	return d
}

func (l *loader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
