// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Audit backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Audit log
	AuditBackend        string `koanf:"audit_backend"`
	DatabaseURL         string `koanf:"database_url"`
	AuditTable          string `koanf:"audit_table"`
	RedisURL            string `koanf:"redis_url"`
	AuditStream         string `koanf:"audit_stream"`
	AuditStreamMaxLen   int    `koanf:"audit_stream_maxlen"`
	AuditWriteTimeoutMS int    `koanf:"audit_write_timeout_ms"`

	// Authentication
	AuthEnabled              bool     `koanf:"auth_enabled"`
	JWTSecret                string   `koanf:"jwt_secret"`
	JWTPreviousSecret        string   `koanf:"jwt_previous_secret"`
	AccessTokenExpireMinutes int      `koanf:"access_token_expire_minutes"`
	APIKeys                  []string `koanf:"api_keys"`
	Users                    []string `koanf:"users"` // username:bcrypthash
	UserStore                string   `koanf:"user_store"`

	// HTTP behaviour
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	StrictFaultStatus  bool     `koanf:"strict_fault_status"` // unexpected faults answer 500 instead of 400
	ProfilingEnabled   bool     `koanf:"profiling_enabled"`   // /debug/pprof, refused in production

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	OTLPExporter      string  `koanf:"otlp_exporter"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required")
	ErrMissingRedisURL     = errors.New("REDIS_URL is required")
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidInteger      = errors.New("must be a valid integer")
	ErrInvalidFloat        = errors.New("must be a valid float")
	ErrInvalidBool         = errors.New("must be a valid boolean")
	ErrPortOutOfRange      = errors.New("PORT must be between 1 and 65535")
	ErrInvalidAuditBackend = errors.New("AUDIT_BACKEND must be memory, postgres or redis")
	ErrInvalidUserStore    = errors.New("USER_STORE must be memory or postgres")
	ErrInvalidTokenExpiry  = errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	ErrInvalidWriteTimeout = errors.New("AUDIT_WRITE_TIMEOUT_MS must be positive")
	ErrInvalidStreamMaxLen = errors.New("AUDIT_STREAM_MAXLEN must not be negative")
	ErrInvalidOTLPExporter = errors.New("OTLP_EXPORTER must be http or grpc")
	ErrInvalidSampleRate   = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrMissingOTLPEndpoint = errors.New("OTLP_ENDPOINT is required when tracing is enabled")
	ErrProfilingInProd     = errors.New("PROFILING_ENABLED cannot be set in production")
)

// Default values for non-secret configuration.
const (
	DefaultPort                     = 8080
	DefaultEnv                      = "development"
	DefaultAuditBackend             = BackendMemory
	DefaultAuditTable               = "operation_logs"
	DefaultAuditStream              = "operation_logs"
	DefaultAuditStreamMaxLen        = 100000
	DefaultAuditWriteTimeoutMS      = 3000
	DefaultAccessTokenExpireMinutes = 15
	DefaultUserStore                = BackendMemory
	DefaultOTLPExporter             = "http"
	DefaultTracingSampleRate        = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	// CALC_PORT first, then PORT for platforms that inject it
	port, err := getEnvIntOrDefaultMulti([]string{"CALC_PORT", "PORT"}, k, "port", DefaultPort)
	if err != nil {
		collect(fmt.Errorf("%w: %w", ErrInvalidPort, err))
	}
	streamMaxLen, err := getEnvIntOrDefaultMulti([]string{"AUDIT_STREAM_MAXLEN"}, k, "audit_stream_maxlen", DefaultAuditStreamMaxLen)
	collect(err)
	writeTimeout, err := getEnvIntOrDefaultMulti([]string{"AUDIT_WRITE_TIMEOUT_MS"}, k, "audit_write_timeout_ms", DefaultAuditWriteTimeoutMS)
	collect(err)
	expireMinutes, err := getEnvIntOrDefaultMulti([]string{"ACCESS_TOKEN_EXPIRE_MINUTES"}, k, "access_token_expire_minutes", DefaultAccessTokenExpireMinutes)
	collect(err)

	authEnabled, err := getEnvBoolOrDefault("AUTH_ENABLED", k, "auth_enabled", true)
	collect(err)
	strictFaults, err := getEnvBoolOrDefault("STRICT_FAULT_STATUS", k, "strict_fault_status", false)
	collect(err)
	profiling, err := getEnvBoolOrDefault("PROFILING_ENABLED", k, "profiling_enabled", false)
	collect(err)
	tracingEnabled, err := getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false)
	collect(err)
	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k, "tracing_sample_rate", DefaultTracingSampleRate)
	collect(err)

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                     port,
		Env:                      getEnvOrDefaultMulti([]string{"CALC_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		AuditBackend:             strings.ToLower(getEnvOrDefault("AUDIT_BACKEND", k.String("audit_backend"), DefaultAuditBackend)),
		DatabaseURL:              getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		AuditTable:               getEnvOrDefault("AUDIT_TABLE", k.String("audit_table"), DefaultAuditTable),
		RedisURL:                 getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		AuditStream:              getEnvOrDefault("AUDIT_STREAM", k.String("audit_stream"), DefaultAuditStream),
		AuditStreamMaxLen:        streamMaxLen,
		AuditWriteTimeoutMS:      writeTimeout,
		AuthEnabled:              authEnabled,
		JWTSecret:                getEnvOrDefaultMulti([]string{"JWT_SECRET", "SECRET_KEY"}, k.String("jwt_secret"), ""),
		JWTPreviousSecret:        getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		AccessTokenExpireMinutes: expireMinutes,
		APIKeys:                  getEnvListOrKoanf("API_KEYS", k, "api_keys"),
		Users:                    getEnvListOrKoanf("USERS", k, "users"),
		UserStore:                strings.ToLower(getEnvOrDefault("USER_STORE", k.String("user_store"), DefaultUserStore)),
		CORSAllowedOrigins:       getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		StrictFaultStatus:        strictFaults,
		ProfilingEnabled:         profiling,
		TracingEnabled:           tracingEnabled,
		OTLPEndpoint:             getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		OTLPExporter:             strings.ToLower(getEnvOrDefault("OTLP_EXPORTER", k.String("otlp_exporter"), DefaultOTLPExporter)),
		TracingSampleRate:        sampleRate,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	return getEnvOrDefaultMulti([]string{envKey}, koanfVal, defaultVal)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvListOrKoanf reads a comma separated environment variable, falling
// back to a YAML list (or a comma separated YAML string) under koanfKey.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		return splitList(val)
	}
	if list := k.Strings(koanfKey); len(list) > 0 {
		var out []string
		for _, item := range list {
			out = append(out, splitList(item)...)
		}
		return out
	}
	// Strings ignores scalar values.
	if val := k.String(koanfKey); val != "" {
		return splitList(val)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first integer value found, otherwise the koanf value, or default.
// Returns an error if an environment variable is set but cannot be parsed as an integer.
// A koanf value is used when the key exists, so 0 from a file is honored.
func getEnvIntOrDefaultMulti(envKeys []string, k *koanf.Koanf, koanfKey string, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return defaultVal, fmt.Errorf("%s %w", key, ErrInvalidInteger)
			}
			return i, nil
		}
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return defaultVal, fmt.Errorf("%s %w", envKey, ErrInvalidFloat)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault parses the usual spellings (true/1/yes/on, false/0/no/off).
// The environment variable wins over the file value.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) (bool, error) {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return defaultVal, fmt.Errorf("%s %w", envKey, ErrInvalidBool)
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey), nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Requirements depend on the selected backends: DATABASE_URL for the postgres
// audit backend or user store, REDIS_URL for the redis backend, JWT_SECRET
// when authentication is enabled.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrPortOutOfRange)
	}

	switch c.AuditBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	default:
		errs = append(errs, ErrInvalidAuditBackend)
	}

	if c.AuditWriteTimeoutMS <= 0 {
		errs = append(errs, ErrInvalidWriteTimeout)
	}
	if c.AuditStreamMaxLen < 0 {
		errs = append(errs, ErrInvalidStreamMaxLen)
	}

	if c.AuthEnabled {
		if c.JWTSecret == "" {
			errs = append(errs, ErrMissingJWTSecret)
		}
		if c.AccessTokenExpireMinutes <= 0 {
			errs = append(errs, ErrInvalidTokenExpiry)
		}
		switch c.UserStore {
		case BackendMemory:
		case BackendPostgres:
			// Reported once even if the audit backend also needs it.
			if c.DatabaseURL == "" && c.AuditBackend != BackendPostgres {
				errs = append(errs, ErrMissingDatabaseURL)
			}
		default:
			errs = append(errs, ErrInvalidUserStore)
		}
	}

	if c.ProfilingEnabled && c.Env == "production" {
		errs = append(errs, ErrProfilingInProd)
	}

	if c.TracingEnabled {
		if c.OTLPEndpoint == "" {
			errs = append(errs, ErrMissingOTLPEndpoint)
		}
		if c.OTLPExporter != "http" && c.OTLPExporter != "grpc" {
			errs = append(errs, ErrInvalidOTLPExporter)
		}
		if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
			errs = append(errs, ErrInvalidSampleRate)
		}
	}

	return errs
}

// GetJWTSecrets returns the current and previous signing secrets.
// previous is empty when no rotation is in progress.
func (c *Config) GetJWTSecrets() (current, previous string) {
	return c.JWTSecret, c.JWTPreviousSecret
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                        strconv.Itoa(c.Port),
		"env":                         c.Env,
		"audit_backend":               c.AuditBackend,
		"database_url":                maskDatabaseURL(c.DatabaseURL),
		"audit_table":                 c.AuditTable,
		"redis_url":                   maskDatabaseURL(c.RedisURL),
		"audit_stream":                c.AuditStream,
		"audit_stream_maxlen":         strconv.Itoa(c.AuditStreamMaxLen),
		"audit_write_timeout_ms":      strconv.Itoa(c.AuditWriteTimeoutMS),
		"auth_enabled":                strconv.FormatBool(c.AuthEnabled),
		"jwt_secret":                  maskSecret(c.JWTSecret),
		"jwt_previous_secret":         maskSecret(c.JWTPreviousSecret),
		"access_token_expire_minutes": strconv.Itoa(c.AccessTokenExpireMinutes),
		"api_keys":                    fmt.Sprintf("%d configured", len(c.APIKeys)),
		"users":                       fmt.Sprintf("%d configured", len(c.Users)),
		"user_store":                  c.UserStore,
		"cors_allowed_origins":        strings.Join(c.CORSAllowedOrigins, ","),
		"strict_fault_status":         strconv.FormatBool(c.StrictFaultStatus),
		"profiling_enabled":           strconv.FormatBool(c.ProfilingEnabled),
		"tracing_enabled":             strconv.FormatBool(c.TracingEnabled),
		"otlp_endpoint":               c.OTLPEndpoint,
		"otlp_exporter":               c.OTLPExporter,
		"tracing_sample_rate":         strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// URLs.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
