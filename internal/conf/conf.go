package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz/usecase"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/server"
)

// Config represents application configuration
type Config struct {
	// Telegram account configuration
	Telegram TelegramConfig

	// Responder bot configuration
	Responder ResponderConfig

	// Group list configuration
	Groups GroupsConfig

	// Reconnect configuration
	Reconnect ReconnectConfig

	// Pending query configuration
	Pending PendingConfig

	// Liveness endpoint configuration
	HTTP HTTPConfig

	// Logging configuration
	Log LogConfig

	// Message texts (loaded from YAML)
	Texts *TextsConfig
}

// TelegramConfig contains Telegram API configuration
type TelegramConfig struct {
	APIID       int
	APIHash     string
	SessionName string
	SessionPath string // Session file, derived from SessionName
	Phone       string // Used by the login command only
	Password    string // Second factor password, login command only
}

// ResponderConfig contains the query responder account configuration
type ResponderConfig struct {
	Username string
}

// GroupsConfig contains group list configuration
type GroupsConfig struct {
	Initial       string        // GROUP_IDS as seen in the environment
	Store         string        // env or sqlite
	ConfigPath    string        // .env file holding GROUP_IDS
	DBPath        string        // sqlite database for the sqlite store
	Watch         bool          // Reload when the config file changes on disk
	CheckInterval time.Duration // Membership reconciliation interval
	SettleDelay   time.Duration // Wait between rewrite and reload
}

// ReconnectConfig contains connection retry configuration
type ReconnectConfig struct {
	Attempts int
	Delay    time.Duration
}

// PendingConfig contains pending query configuration
type PendingConfig struct {
	TTL           time.Duration // 0 disables expiry
	SweepInterval time.Duration
}

// HTTPConfig contains liveness endpoint configuration
type HTTPConfig struct {
	Addr string // Empty disables the endpoint; defaults to 0.0.0.0:$PORT
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string
	Format string // json or console
}

const (
	StoreEnv    = "env"
	StoreSQLite = "sqlite"
)

// ConfigPath returns the .env path from CONFIG_PATH, defaulting to ./.env
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return ".env"
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	apiID, _ := strconv.Atoi(os.Getenv("TELEGRAM_API_ID"))

	// Session file
	sessionName := envString("SESSION_NAME", "userbot_session")
	sessionPath := sessionName
	if filepath.Ext(sessionPath) == "" {
		sessionPath += ".json"
	}

	// Membership store
	store := strings.ToLower(envString("MEMBERSHIP_STORE", StoreEnv))
	dbPath := os.Getenv("MEMBERSHIP_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".tg-sorgu-bridge", "groups.db")
	}

	// Load texts from YAML
	texts, _ := LoadTexts(os.Getenv("TEXTS_CONFIG_PATH"))

	return &Config{
		Telegram: TelegramConfig{
			APIID:       apiID,
			APIHash:     os.Getenv("TELEGRAM_API_HASH"),
			SessionName: sessionName,
			SessionPath: sessionPath,
			Phone:       os.Getenv("TELEGRAM_PHONE"),
			Password:    os.Getenv("TELEGRAM_PASSWORD"),
		},
		Responder: ResponderConfig{
			Username: strings.TrimPrefix(envString("TARGET_BOT_USERNAME", "TheXThoth_bot"), "@"),
		},
		Groups: GroupsConfig{
			Initial:       os.Getenv("GROUP_IDS"),
			Store:         store,
			ConfigPath:    ConfigPath(),
			DBPath:        dbPath,
			Watch:         os.Getenv("CONFIG_WATCH") == "true",
			CheckInterval: envDuration("GROUP_CHECK_INTERVAL", 15*time.Second),
			SettleDelay:   envDuration("GROUP_SETTLE_DELAY", 3*time.Second),
		},
		Reconnect: ReconnectConfig{
			Attempts: envInt("RECONNECT_ATTEMPTS", 5),
			Delay:    envDuration("RECONNECT_DELAY", 10*time.Second),
		},
		Pending: PendingConfig{
			TTL:           envDuration("PENDING_TTL", 0),
			SweepInterval: envDuration("PENDING_SWEEP_INTERVAL", time.Minute),
		},
		HTTP: HTTPConfig{
			Addr: httpAddr(),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "INFO"),
			Format: envString("LOG_FORMAT", "console"),
		},
		Texts: texts,
	}
}

// ToMembershipConfig converts to reconciliation configuration
func (c *GroupsConfig) ToMembershipConfig() usecase.MembershipConfig {
	return usecase.MembershipConfig{
		Interval:    c.CheckInterval,
		SettleDelay: c.SettleDelay,
	}
}

// ToSupervisorConfig converts to connection supervisor configuration
func (c *ReconnectConfig) ToSupervisorConfig() server.SupervisorConfig {
	return server.SupervisorConfig{
		MaxAttempts: c.Attempts,
		BaseDelay:   c.Delay,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 || c.Telegram.APIHash == "" {
		return &ConfigError{Field: "TELEGRAM_API_ID/TELEGRAM_API_HASH", Message: "required"}
	}
	if c.Responder.Username == "" {
		return &ConfigError{Field: "TARGET_BOT_USERNAME", Message: "required"}
	}
	if c.Groups.Store != StoreEnv && c.Groups.Store != StoreSQLite {
		return &ConfigError{Field: "MEMBERSHIP_STORE", Message: "must be env or sqlite"}
	}
	if c.Groups.CheckInterval <= 0 {
		return &ConfigError{Field: "GROUP_CHECK_INTERVAL", Message: "must be positive"}
	}
	if c.Reconnect.Attempts < 0 {
		return &ConfigError{Field: "RECONNECT_ATTEMPTS", Message: "must not be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// httpAddr returns HTTP_ADDR, falling back to the platform-assigned PORT
func httpAddr() string {
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		return addr
	}
	return "0.0.0.0:" + envString("PORT", "5000")
}

func envString(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// envDuration accepts plain seconds ("10") or a Go duration ("1m30s")
func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return def
}
