package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all gateway configuration
type Config struct {
	Service    ServiceConfig
	Repository RepositoryConfig
	DicomWeb   DicomWebConfig
	Cache      CacheConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// RepositoryConfig points at the image repository's REST interface
type RepositoryConfig struct {
	URL     string
	Timeout time.Duration
}

// DicomWebConfig holds the DICOMweb protocol settings
type DicomWebConfig struct {
	// Root is the path prefix of the DICOMweb endpoints.
	Root string
	// WadoRoot is the path of the legacy WADO-URI endpoint.
	WadoRoot string
	// PublicRoot overrides the base URL advertised in RetrieveURL
	// fields. When empty, the URL is derived from each request.
	PublicRoot string
	// StowMaxInstances caps instances per outgoing STOW-RS batch.
	// Zero disables the cap.
	StowMaxInstances int
	// StowMaxSizeMB caps bytes per outgoing STOW-RS batch, in MiB.
	// Zero disables the cap.
	StowMaxSizeMB int
	// Servers is the registry of remote DICOMweb servers, keyed by
	// the name used in /servers/:server routes.
	Servers map[string]RemoteServer
}

// RemoteServer describes one configured remote DICOMweb server
type RemoteServer struct {
	URL         string            `json:"Url"`
	Username    string            `json:"Username"`
	Password    string            `json:"Password"`
	HTTPHeaders map[string]string `json:"HttpHeaders"`
}

// CacheConfig holds the resolution cache settings
type CacheConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     int
	RedisPassword string
	TTL           time.Duration
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8042),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Repository: RepositoryConfig{
			URL:     getEnv("REPOSITORY_URL", "http://localhost:8000"),
			Timeout: getEnvDuration("REPOSITORY_TIMEOUT", 60*time.Second),
		},
		DicomWeb: DicomWebConfig{
			Root:             getEnv("DICOMWEB_ROOT", "/dicom-web"),
			WadoRoot:         getEnv("DICOMWEB_WADO_ROOT", "/wado"),
			PublicRoot:       getEnv("DICOMWEB_PUBLIC_ROOT", ""),
			StowMaxInstances: getEnvInt("STOW_MAX_INSTANCES", 10),
			StowMaxSizeMB:    getEnvInt("STOW_MAX_SIZE_MB", 10),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("CACHE_ENABLED", false),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnvInt("REDIS_PORT", 6379),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			TTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
	}

	servers, err := loadServers(getEnv("DICOMWEB_SERVERS", "{}"))
	if err != nil {
		return nil, err
	}
	cfg.DicomWeb.Servers = servers

	return cfg, cfg.Validate()
}

// loadServers parses the remote server registry. The value is either
// inline JSON or, when prefixed with "@", a path to a JSON file.
func loadServers(value string) (map[string]RemoteServer, error) {
	raw := []byte(value)
	if len(value) > 0 && value[0] == '@' {
		var err error
		raw, err = os.ReadFile(value[1:])
		if err != nil {
			return nil, fmt.Errorf("read server registry %s: %w", value[1:], err)
		}
	}

	servers := make(map[string]RemoteServer)
	if err := json.Unmarshal(raw, &servers); err != nil {
		return nil, fmt.Errorf("parse server registry: %w", err)
	}

	for name, server := range servers {
		if server.URL == "" {
			return nil, fmt.Errorf("server %q has no Url", name)
		}
	}
	return servers, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Repository.URL == "" {
		return fmt.Errorf("repository URL is required")
	}

	if c.DicomWeb.StowMaxInstances < 0 || c.DicomWeb.StowMaxSizeMB < 0 {
		return fmt.Errorf("batch limits must not be negative")
	}

	return nil
}

// StowMaxSizeBytes returns the outgoing batch size limit in bytes.
func (c *Config) StowMaxSizeBytes() int {
	return c.DicomWeb.StowMaxSizeMB * 1024 * 1024
}

// RedisAddr returns the address of the resolution cache.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Cache.RedisHost, c.Cache.RedisPort)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
