package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileEnv names the environment variable pointing at an optional TOML file.
const ConfigFileEnv = "CONFIG_FILE"

// Load reads configuration from CONFIG_FILE (if set) and environment
// variables. Precedence is environment, then file, then defaults.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit TOML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	src := source{file: &Config{}}
	if path != "" {
		md, err := toml.DecodeFile(path, src.file)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
		}
		src.md = &md
	}

	cfg := &Config{}
	if err := src.loadStruct(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(src.file).Elem(), nil); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// source carries the decoded config file, if any.
type source struct {
	file *Config
	md   *toml.MetaData
}

func (s source) inFile(key []string) bool {
	return s.md != nil && s.md.IsDefined(key...)
}

// loadStruct recursively populates struct fields from the environment,
// falling back to the file value and then the default tag.
func (s source) loadStruct(v, fileV reflect.Value, key []string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		fieldKey := append(append([]string(nil), key...), field.Tag.Get("toml"))

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := s.loadStruct(fieldVal, fileV.Field(i), fieldKey); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" && s.inFile(fieldKey) {
			fieldVal.Set(fileV.Field(i))
			continue
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int32, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Split comma-separated values, trim whitespace
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Store validation
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, memory", c.Store.Driver))
	}

	// Database validation
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Imports validation
	if c.Imports.DefaultPageSize <= 0 {
		errs = append(errs, "IMPORT_DEFAULT_PAGE_SIZE must be positive")
	}
	if c.Imports.MaxPageSize < c.Imports.DefaultPageSize {
		errs = append(errs, fmt.Sprintf("IMPORT_MAX_PAGE_SIZE (%d) must be >= IMPORT_DEFAULT_PAGE_SIZE (%d)",
			c.Imports.MaxPageSize, c.Imports.DefaultPageSize))
	}
	if c.Imports.DispatchChannel == "" {
		errs = append(errs, "IMPORT_DISPATCH_CHANNEL must not be empty")
	}

	// Progress validation
	if c.Progress.PollInterval <= 0 {
		errs = append(errs, "PROGRESS_POLL_INTERVAL must be positive")
	}
	if c.Progress.PingInterval <= 0 {
		errs = append(errs, "PROGRESS_PING_INTERVAL must be positive")
	}
	if c.Progress.MaxStreams <= 0 {
		errs = append(errs, "PROGRESS_MAX_STREAMS must be positive")
	}
	if c.Progress.MaxWait <= 0 {
		errs = append(errs, "PROGRESS_MAX_WAIT must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Burst < 0 {
		errs = append(errs, "RATE_LIMIT_BURST must be non-negative")
	}

	// Retention validation
	if c.Retention.Enabled {
		if c.Retention.Days <= 0 {
			errs = append(errs, "RETENTION_DAYS must be positive")
		}
		if c.Retention.BatchSize <= 0 {
			errs = append(errs, "RETENTION_BATCH_SIZE must be positive")
		}
		if c.Retention.CheckInterval <= 0 {
			errs = append(errs, "RETENTION_CHECK_INTERVAL must be positive")
		}
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true, "pretty": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json, pretty", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Store: {Driver: %q}, ", c.Store.Driver))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, AutoMigrate: %v}, ",
		c.Database.MaxConns, c.Database.MinConns, c.Database.AutoMigrate))
	b.WriteString(fmt.Sprintf("Imports: {DefaultPageSize: %d, MaxPageSize: %d, DispatchChannel: %q}, ",
		c.Imports.DefaultPageSize, c.Imports.MaxPageSize, c.Imports.DispatchChannel))
	b.WriteString(fmt.Sprintf("Progress: {PollInterval: %s, MaxStreams: %d}, ",
		c.Progress.PollInterval, c.Progress.MaxStreams))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d, Burst: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.Burst))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: [%d MASKED]}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Retention: {Enabled: %v, Days: %d}, ",
		c.Retention.Enabled, c.Retention.Days))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
