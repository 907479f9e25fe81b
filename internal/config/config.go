package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// Config holds the configuration for the portal server and its dependencies.
type Config struct {
	// Listen is the address the portal server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the portal, used in emails.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// SessionKey is the secret used to sign the session cookie.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// SecureCookies marks the session cookie as secure (https only).
	SecureCookies bool `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	// TrustedProxies are the proxy addresses or CIDRs whose X-Forwarded-For header
	// is honored. Empty means the remote address is always used.
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
	// HousekeepingSchedule is the cron schedule for the housekeeping job.
	HousekeepingSchedule string `yaml:"housekeeping_schedule" mapstructure:"housekeeping_schedule"`

	// JWT holds the bearer token configuration for API clients.
	JWT *JWTConfig `yaml:"jwt" mapstructure:"jwt"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Cache holds the configuration for the settings cache.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Email holds the SMTP configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
	// Mail holds the bulk mail behaviour.
	Mail *MailConfig `yaml:"mail" mapstructure:"mail"`
	// Ntfy holds the admin push notification configuration.
	Ntfy *NtfyConfig `yaml:"ntfy" mapstructure:"ntfy"`
	// OIDC holds the optional single sign-on configuration for admins.
	OIDC *OIDCConfig `yaml:"oidc" mapstructure:"oidc"`
	// Gravatar holds the configuration for Gravatar profile pictures.
	Gravatar *GravatarConfig `yaml:"gravatar" mapstructure:"gravatar"`
	// Upload holds the spreadsheet upload configuration.
	Upload *UploadConfig `yaml:"upload" mapstructure:"upload"`
	// Retention holds the housekeeping retention periods.
	Retention *RetentionConfig `yaml:"retention" mapstructure:"retention"`
}

// JWTConfig holds the configuration for signed bearer tokens.
type JWTConfig struct {
	// Secret is the HMAC secret used to sign tokens.
	Secret string `yaml:"secret" mapstructure:"secret"`
	// Issuer is written into the iss claim.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// Expiry is how long an issued token stays valid.
	Expiry time.Duration `yaml:"expiry" mapstructure:"expiry"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the URL for the Redis cache if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// TTL is how long cached settings are kept.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether email notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which notifications are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which notifications are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS indicates whether to use STARTTLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use SSL for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// MailConfig controls bulk sending.
type MailConfig struct {
	// Interval is the minimum delay between two emails of a bulk send.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// DryRun only logs emails instead of sending them.
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl" mapstructure:"reset_token_ttl"`
}

// NtfyConfig holds the ntfy notification configuration.
type NtfyConfig struct {
	// Enabled indicates whether ntfy notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ServerURL is the URL of the ntfy server.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// Topic is the ntfy topic to publish notifications to.
	Topic string `yaml:"topic" mapstructure:"topic"`
	// Username is the ntfy username for authentication.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the ntfy password for authentication.
	Password string `yaml:"password" mapstructure:"password"`
	// Token is the ntfy token for authentication.
	Token string `yaml:"token" mapstructure:"token"`
}

// OIDCConfig holds the OpenID Connect configuration for admin logins.
type OIDCConfig struct {
	// Enabled indicates whether OIDC authentication is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Name is the display name for the OIDC provider.
	Name string `yaml:"name" mapstructure:"name"`
	// Issuer is the OIDC issuer URL.
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
	// ClientID is the OIDC client ID.
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	// ClientSecret is the OIDC client secret.
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	// RedirectURL is the redirect URL for the oidc flow.
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`
	// AdminGroup is the group that has admin privileges.
	AdminGroup string `yaml:"admin_group" mapstructure:"admin_group"`
}

// GravatarConfig holds the configuration for Gravatar profile pictures.
type GravatarConfig struct {
	// Enabled indicates whether Gravatar support is enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the default image to use when no Gravatar is found.
	// Valid values: "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for Gravatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the Gravatar image in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// UploadConfig holds the spreadsheet upload configuration.
type UploadConfig struct {
	// MaxSizeMB is the maximum accepted upload size in megabytes.
	MaxSizeMB int64 `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	// MatchThreshold is the minimum similarity (0-1) for a header to be auto-mapped.
	MatchThreshold float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
}

// RetentionConfig holds the housekeeping retention periods.
type RetentionConfig struct {
	// EmailLogDays is the number of days email logs are kept. 0 keeps them forever.
	EmailLogDays int `yaml:"email_log_days" mapstructure:"email_log_days"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
func Load(path string) (*Config, error) {
	v := viper.New()

	// bind some weirdly unsupported nested env vars
	bindNestedEnv(v)

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("CSOPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.csoportal")
		v.AddConfigPath("/etc/csoportal")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file is found, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the CSOPORTAL_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:3010")
	v.SetDefault("server_url", "http://localhost:3010")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 43200) // 12 hours
	v.SetDefault("secure_cookies", false)
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("housekeeping_schedule", "0 3 * * *") // Every day at 03:00

	// JWT defaults
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "csoportal")
	v.SetDefault("jwt.expiry", 12*time.Hour)

	// Database defaults
	v.SetDefault("database.path", "./data/csoportal.db")

	// Cache defaults
	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 10*time.Minute)

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "CSO Portal")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)

	// Mail defaults
	v.SetDefault("mail.interval", 600*time.Millisecond)
	v.SetDefault("mail.dry_run", false)
	v.SetDefault("mail.reset_token_ttl", time.Hour)

	// Ntfy defaults
	v.SetDefault("ntfy.enabled", false)
	v.SetDefault("ntfy.server_url", "https://ntfy.sh")
	v.SetDefault("ntfy.topic", "csoportal")
	v.SetDefault("ntfy.username", "")
	v.SetDefault("ntfy.password", "")
	v.SetDefault("ntfy.token", "")

	// OIDC defaults
	v.SetDefault("oidc.enabled", false)
	v.SetDefault("oidc.name", "OIDC")
	v.SetDefault("oidc.issuer", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_url", "")
	v.SetDefault("oidc.admin_group", "")

	// Gravatar defaults
	v.SetDefault("gravatar.enabled", false)
	v.SetDefault("gravatar.default_image", "mp")
	v.SetDefault("gravatar.rating", "g")
	v.SetDefault("gravatar.size", 80)

	// Upload defaults
	v.SetDefault("upload.max_size_mb", 20)
	v.SetDefault("upload.match_threshold", 0.6)

	// Retention defaults
	v.SetDefault("retention.email_log_days", 365)
}

// the auto env function from viper only works for nested structs, if the struct to which a value binds isn't nil.
// Secrets have no defaults on purpose, so they have to be bound manually.
func bindNestedEnv(v *viper.Viper) {
	v.MustBindEnv("jwt.secret", "CSOPORTAL_JWT_SECRET")
	v.MustBindEnv("email.password", "CSOPORTAL_EMAIL_PASSWORD")
	v.MustBindEnv("oidc.client_secret", "CSOPORTAL_OIDC_CLIENT_SECRET")
	v.MustBindEnv("ntfy.token", "CSOPORTAL_NTFY_TOKEN")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	if len(c.SessionKey) < 16 {
		return fmt.Errorf("session key must be at least 16 characters long")
	}

	if c.HousekeepingSchedule != "" && len(strings.Fields(c.HousekeepingSchedule)) != 5 {
		return fmt.Errorf("housekeeping schedule must be a valid cron expression with 5 fields (minute hour day month weekday)")
	}

	if c.JWT == nil {
		c.JWT = &JWTConfig{}
	}
	if c.JWT.Secret == "" {
		// Fall back to the session key so a single secret is enough for small installs.
		c.JWT.Secret = c.SessionKey
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("jwt expiry must be positive")
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Cache != nil {
		if c.Cache.Type == "" {
			return fmt.Errorf("cache type is required when cache is enabled")
		}
		if c.Cache.Type == CacheTypeRedis && c.Cache.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
		}
	} else {
		c.Cache = &CacheConfig{
			Type: CacheTypeMemory,
			TTL:  10 * time.Minute,
		}
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
	}

	if c.Mail == nil {
		c.Mail = &MailConfig{Interval: 600 * time.Millisecond, ResetTokenTTL: time.Hour}
	}
	if c.Mail.Interval < 0 {
		return fmt.Errorf("mail interval must not be negative")
	}

	if c.OIDC != nil && c.OIDC.Enabled {
		if c.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if c.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if c.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
		if c.OIDC.AdminGroup == "" {
			return fmt.Errorf("OIDC admin group is required when OIDC is enabled")
		}
	}

	if c.Upload == nil {
		c.Upload = &UploadConfig{MaxSizeMB: 20, MatchThreshold: 0.6}
	}
	if c.Upload.MatchThreshold <= 0 || c.Upload.MatchThreshold > 1 {
		return fmt.Errorf("upload match threshold must be in (0, 1]")
	}

	if c.Retention == nil {
		c.Retention = &RetentionConfig{}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = urlSanitize(c.Listen)

	if c.ServerURL != "" {
		c.ServerURL = urlSanitize(c.ServerURL)
	}

	if c.Ntfy != nil {
		c.Ntfy.ServerURL = urlSanitize(c.Ntfy.ServerURL)
	}

	if c.OIDC != nil {
		c.OIDC.Issuer = urlSanitize(c.OIDC.Issuer)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	if c == nil || c.Upload == nil || c.Upload.MaxSizeMB <= 0 {
		return 20 << 20
	}
	return c.Upload.MaxSizeMB << 20
}
