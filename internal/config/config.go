package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server is one NewAPI-compatible upstream used for token validation.
type Server struct {
	Name    string
	BaseURL string
}

// DatabaseConfig holds the optional PostgreSQL connection used by the request log.
type DatabaseConfig struct {
	URL            string
	MigrationsPath string
	MaxOpenConns   int
	MaxIdleConns   int
}

// Enabled reports whether a database was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ProviderKeys holds vendor API keys. A provider with a key forwards to the
// vendor's OpenAI-compatible endpoint instead of answering locally.
type ProviderKeys struct {
	OpenAI    string
	Google    string
	Anthropic string
	Cohere    string
	Groq      string
}

type Config struct {
	Port              string
	Environment       string
	DefaultProvider   string
	Servers           []Server
	ValidationTimeout time.Duration
	Database          DatabaseConfig
	ProviderKeys      ProviderKeys
}

const (
	DefaultPort              = "8000"
	DefaultProviderName      = "openai"
	DefaultValidationTimeout = 10 * time.Second
	DefaultDBMaxOpenConns    = 10
	DefaultDBMaxIdleConns    = 2
)

// defaultServers mirrors the stock NEWAPI_SERVERS value.
var defaultServers = []Server{
	{Name: "server1", BaseURL: "https://api.server1.com"},
	{Name: "server2", BaseURL: "https://api.server2.com"},
}

// Load reads configuration from environment variables.
// It fails fast with clear errors for malformed values.
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = DefaultPort
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "staging" && env != "production" {
		return nil, fmt.Errorf("invalid ENV value %q: must be development, staging, or production", env)
	}

	defaultProvider := strings.TrimSpace(os.Getenv("DEFAULT_PROVIDER"))
	if defaultProvider == "" {
		defaultProvider = DefaultProviderName
	}

	servers := append([]Server(nil), defaultServers...)
	rawServers := os.Getenv("NEWAPI_SERVERS")
	if rawServers == "" {
		// The frontend build shares this variable with the backend.
		rawServers = os.Getenv("REACT_APP_BASE_URL")
	}
	if rawServers != "" {
		parsed, err := ParseServers(rawServers)
		if err != nil {
			return nil, fmt.Errorf("invalid NEWAPI_SERVERS: %w", err)
		}
		servers = parsed
	}

	timeoutSeconds, err := getPositiveEnvInt("VALIDATION_TIMEOUT_SECONDS", int(DefaultValidationTimeout/time.Second))
	if err != nil {
		return nil, err
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL != "" {
		if err := validateDatabaseURL(databaseURL); err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}

	maxOpen, err := getPositiveEnvInt("DB_MAX_OPEN_CONNS", DefaultDBMaxOpenConns)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getPositiveEnvInt("DB_MAX_IDLE_CONNS", DefaultDBMaxIdleConns)
	if err != nil {
		return nil, err
	}
	if maxIdle > maxOpen {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %d exceeds DB_MAX_OPEN_CONNS %d", maxIdle, maxOpen)
	}

	return &Config{
		Port:              port,
		Environment:       env,
		DefaultProvider:   defaultProvider,
		Servers:           servers,
		ValidationTimeout: time.Duration(timeoutSeconds) * time.Second,
		Database: DatabaseConfig{
			URL:            databaseURL,
			MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
			MaxOpenConns:   maxOpen,
			MaxIdleConns:   maxIdle,
		},
		ProviderKeys: ProviderKeys{
			OpenAI:    os.Getenv("OPENAI_API_KEY"),
			Google:    os.Getenv("GOOGLE_API_KEY"),
			Anthropic: os.Getenv("ANTHROPIC_API_KEY"),
			Cohere:    os.Getenv("COHERE_API_KEY"),
			Groq:      os.Getenv("GROQ_API_KEY"),
		},
	}, nil
}

// ParseServers decodes a JSON object of server name to base URL, keeping
// the order in which names first appear. A repeated name keeps its first
// position and takes the last URL.
func ParseServers(raw string) ([]Server, error) {
	dec := json.NewDecoder(strings.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("must be a JSON object of name to base URL")
	}

	var servers []Server
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("malformed JSON: %w", err)
		}
		name := keyTok.(string)

		var baseURL string
		if err := dec.Decode(&baseURL); err != nil {
			return nil, fmt.Errorf("server %q: base URL must be a string: %w", name, err)
		}
		baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
		if err := validateBaseURL(baseURL); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}

		if i, ok := index[name]; ok {
			servers[i].BaseURL = baseURL
			continue
		}
		index[name] = len(servers)
		servers = append(servers, Server{Name: name, BaseURL: baseURL})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}

	return servers, nil
}

// validateBaseURL ensures a server URL is absolute http(s).
func validateBaseURL(baseURL string) error {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// validateDatabaseURL ensures the database URL is a valid PostgreSQL connection string.
func validateDatabaseURL(dbURL string) error {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("URL must use postgres or postgresql scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// getPositiveEnvInt reads an environment variable as a positive integer,
// returning defaultVal when it is unset.
func getPositiveEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	intVal, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer, got %q", key, val)
	}
	if intVal <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, intVal)
	}
	return intVal, nil
}
