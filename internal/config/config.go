package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	ListenAddr string           `json:"listen_addr"`
	AuthToken  string           `json:"auth_token"`
	Actors     map[string]Actor `json:"actors"`
	Store      StoreConfig      `json:"store"`
	FileStore  FileStoreConfig  `json:"file_store"`
	Validation ValidationConfig `json:"validation"`
	Timeout    TimeoutConfig    `json:"timeout"`
}

// Actor is a configured API identity, keyed by bearer token in
// Config.Actors. Mutations are attributed to the resolved actor.
type Actor struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	// Type is "memory" or "mongo".
	Type     string `json:"type"`
	URI      string `json:"uri"`
	Database string `json:"database"`
}

// FileStoreConfig selects and configures the attachment backend.
type FileStoreConfig struct {
	// Type is "memory", "filesystem", or "s3".
	Type      string `json:"type"`
	RootPath  string `json:"root_path"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

// ValidationConfig tunes instance validation.
type ValidationConfig struct {
	// HandleNone accepts explicit nulls for fields that are present but
	// unset, instead of failing type validation.
	HandleNone bool `json:"handle_none"`
}

// TimeoutConfig holds per-request timeout configuration.
type TimeoutConfig struct {
	// ReadTimeoutMs is the maximum time allowed for read requests in milliseconds.
	// Default: 30000 (30 seconds)
	ReadTimeoutMs int `json:"read_timeout_ms"`
	// WriteTimeoutMs is the maximum time allowed for mutation requests in milliseconds.
	// Default: 60000 (60 seconds)
	WriteTimeoutMs int `json:"write_timeout_ms"`
}

// GetReadTimeout returns the read timeout in milliseconds with default fallback.
func (c TimeoutConfig) GetReadTimeout() int {
	if c.ReadTimeoutMs <= 0 {
		return 30000
	}
	return c.ReadTimeoutMs
}

// GetWriteTimeout returns the write timeout in milliseconds with default fallback.
func (c TimeoutConfig) GetWriteTimeout() int {
	if c.WriteTimeoutMs <= 0 {
		return 60000
	}
	return c.WriteTimeoutMs
}

func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		Store: StoreConfig{
			Type:     "memory",
			URI:      "mongodb://localhost:27017",
			Database: "mag",
		},
		FileStore: FileStoreConfig{
			Type:      "filesystem",
			RootPath:  "/tmp/mag-files",
			Endpoint:  "http://localhost:9000",
			Bucket:    "mag",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Region:    "us-east-1",
			UseSSL:    false,
		},
	}
}

// Load reads a JSON config file and applies MAG_* environment overrides.
// An empty path falls back to MAG_CONFIG, then to defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MAG_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if env := os.Getenv("MAG_LISTEN_ADDR"); env != "" {
		cfg.ListenAddr = env
	}
	if env := os.Getenv("MAG_AUTH_TOKEN"); env != "" {
		cfg.AuthToken = env
	}

	if env := os.Getenv("MAG_STORE_TYPE"); env != "" {
		cfg.Store.Type = env
	}
	if env := os.Getenv("MAG_STORE_URI"); env != "" {
		cfg.Store.URI = env
	}
	if env := os.Getenv("MAG_STORE_DATABASE"); env != "" {
		cfg.Store.Database = env
	}

	if env := os.Getenv("MAG_FILE_STORE_TYPE"); env != "" {
		cfg.FileStore.Type = env
	}
	if env := os.Getenv("MAG_FILE_STORE_ROOT"); env != "" {
		cfg.FileStore.RootPath = env
	}
	if env := os.Getenv("MAG_FILE_STORE_ENDPOINT"); env != "" {
		cfg.FileStore.Endpoint = env
	}
	if env := os.Getenv("MAG_FILE_STORE_BUCKET"); env != "" {
		cfg.FileStore.Bucket = env
	}
	if env := os.Getenv("MAG_FILE_STORE_ACCESS_KEY"); env != "" {
		cfg.FileStore.AccessKey = env
	}
	if env := os.Getenv("MAG_FILE_STORE_SECRET_KEY"); env != "" {
		cfg.FileStore.SecretKey = env
	}
	if env := os.Getenv("MAG_FILE_STORE_REGION"); env != "" {
		cfg.FileStore.Region = env
	}
	if env := os.Getenv("MAG_FILE_STORE_USE_SSL"); env != "" {
		cfg.FileStore.UseSSL = env == "true" || env == "1"
	}

	if env := os.Getenv("MAG_VALIDATION_HANDLE_NONE"); env != "" {
		cfg.Validation.HandleNone = env == "true" || env == "1"
	}

	if env := os.Getenv("MAG_TIMEOUT_READ_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Timeout.ReadTimeoutMs = n
		}
	}
	if env := os.Getenv("MAG_TIMEOUT_WRITE_MS"); env != "" {
		if n, err := parseIntEnv(env); err == nil {
			cfg.Timeout.WriteTimeoutMs = n
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unrecognized backend selectors early.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Type) {
	case "memory", "mongo":
	default:
		return fmt.Errorf("unknown store type %q", c.Store.Type)
	}
	switch strings.ToLower(c.FileStore.Type) {
	case "memory", "filesystem", "s3":
	default:
		return fmt.Errorf("unknown file store type %q", c.FileStore.Type)
	}
	return nil
}

func parseIntEnv(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
