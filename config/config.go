package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gatekeeper/database"

	"github.com/joho/godotenv"
)

// Database drivers understood by DATABASE_DRIVER
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken  string
	CommandPrefix string
	AdminRoleIDs  []int64 // Roles allowed to run verify commands besides Manage Guild holders

	// Database configuration
	DatabaseDriver string
	DatabaseURL    string
	DatabaseName   string
	SQLitePath     string

	// Verification behaviour
	NotifyTooSoon           bool
	TooSoonMessage          string
	NotifyMissingPermission bool
	SerializeMembers        bool // Serialize verification attempts per guild member
	PurgeLimit              int
	HandlerTimeout          time.Duration

	// NATS configuration (empty disables event forwarding)
	NATSServers string

	// HTTP status API (empty disables it)
	HTTPAddr string

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UseSQLite reports whether the settings store is the embedded SQLite file
func (c *Config) UseSQLite() bool {
	return c.DatabaseDriver == DriverSQLite
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine, real deployments use the environment
	_ = godotenv.Load()

	config := &Config{
		// Discord
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		CommandPrefix: getEnvWithDefault("COMMAND_PREFIX", "!"),

		// Database
		DatabaseDriver: getEnvWithDefault("DATABASE_DRIVER", DriverPostgres),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseName:   os.Getenv("DATABASE_NAME"),
		SQLitePath:     getEnvWithDefault("SQLITE_PATH", "data/gatekeeper.db"),

		// Verification
		NotifyTooSoon:           os.Getenv("VERIFY_NOTIFY_TOO_SOON") == "true",
		TooSoonMessage:          getEnvWithDefault("VERIFY_TOO_SOON_MESSAGE", DefaultTooSoonMessage),
		NotifyMissingPermission: os.Getenv("VERIFY_NOTIFY_MISSING_PERMISSION") == "true",
		SerializeMembers:        os.Getenv("VERIFY_SERIALIZE_MEMBERS") == "true",
		PurgeLimit:              100,
		HandlerTimeout:          15 * time.Second,

		// Integrations
		NATSServers: os.Getenv("NATS_SERVERS"),
		HTTPAddr:    os.Getenv("HTTP_ADDR"),

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "gatekeeper"),
		OTelExportIntervalMillis: 60000,

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: os.Getenv("ENVIRONMENT"),
	}

	if seconds := os.Getenv("HANDLER_TIMEOUT_SECONDS"); seconds != "" {
		if parsed, err := strconv.Atoi(seconds); err == nil && parsed > 0 {
			config.HandlerTimeout = time.Duration(parsed) * time.Second
		}
	}
	if interval := os.Getenv("OTEL_EXPORT_INTERVAL_MS"); interval != "" {
		if parsed, err := strconv.Atoi(interval); err == nil && parsed > 0 {
			config.OTelExportIntervalMillis = parsed
		}
	}

	config.AdminRoleIDs = parseIDList(os.Getenv("ADMIN_ROLE_IDS"))

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.DatabaseDriver != DriverPostgres && config.DatabaseDriver != DriverSQLite {
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q", config.DatabaseDriver)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DiscordToken == "" {
			return nil, fmt.Errorf("DISCORD_TOKEN is required")
		}
		if config.DatabaseDriver == DriverPostgres && config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

// DefaultTooSoonMessage is sent to members who verify before the minimum time when notifications are on
const DefaultTooSoonMessage = "{user}, you joined too recently to verify. Please wait a bit and try again."

// parseIDList parses a comma separated list of snowflakes, skipping malformed entries
func parseIDList(raw string) []int64 {
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, idStr := range strings.Split(raw, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:      "test",
		CommandPrefix:    "!",
		DatabaseDriver:   DriverPostgres,
		TooSoonMessage:   DefaultTooSoonMessage,
		PurgeLimit:       100,
		HandlerTimeout:   15 * time.Second,
		OTelExporterType: "none",
		OTelServiceName:  "gatekeeper-test",
		LogLevel:         "debug",
	}
}
