package config

import (
	"fmt"
	"os"
	"runtime"
)

// EnvGeminiAPIKey overrides the configured Gemini API key when set
const EnvGeminiAPIKey = "MOONSHADE_GEMINI_API_KEY"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetServerConfig() (*ServerData, error)
	GetStorageConfig() (*StorageData, error)
	GetContentConfig() (*ContentData, error)
	GetRenderConfig() (*RenderData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Debug   bool        `json:"debug,omitempty"`
	Server  ServerData  `json:"server"`
	Storage StorageData `json:"storage"`
	Content ContentData `json:"content"`
	Render  RenderData  `json:"render"`
}

// ServerData configures the REST server
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
}

// StorageData selects a persistence backend. When both are set,
// PostgreSQL wins.
type StorageData struct {
	SQLite   *SQLiteData   `json:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string"`
}

// ContentData configures the generated text service
type ContentData struct {
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	Model        string `json:"model,omitempty"`
}

// RenderData holds defaults for moon images
type RenderData struct {
	Size        int        `json:"size,omitempty"`
	Workers     int        `json:"workers,omitempty"`
	Seed        int64      `json:"seed,omitempty"`
	TexturePath string     `json:"texture_path,omitempty"`
	Observer    *PointData `json:"observer,omitempty"`
}

// PointData is an observer location in degrees, east and north positive
type PointData struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Default returns the configuration used when no file is given
func Default() *ConfigData {
	c := &ConfigData{}
	c.applyDefaults()
	c.applyEnv()
	return c
}

func (c *ConfigData) applyEnv() {
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		c.Content.GeminiAPIKey = key
	}
}

func (c *ConfigData) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Storage.SQLite == nil && c.Storage.Postgres == nil {
		c.Storage.SQLite = &SQLiteData{}
	}
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "moonshade.db"
	}
	if c.Render.Size == 0 {
		c.Render.Size = 400
	}
	if c.Render.Workers == 0 {
		c.Render.Workers = runtime.GOMAXPROCS(0)
	}
}

// Validate checks values that defaults cannot repair
func (c *ConfigData) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		return fmt.Errorf("server cert and key must be set together")
	}
	if c.Storage.Postgres != nil && c.Storage.Postgres.ConnectionString == "" {
		return fmt.Errorf("postgres storage requires a connection_string")
	}
	if c.Render.Size < 1 || c.Render.Size > 2048 {
		return fmt.Errorf("render size %d out of range 1..2048", c.Render.Size)
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("render workers must not be negative")
	}
	if o := c.Render.Observer; o != nil {
		if o.Lat < -90 || o.Lat > 90 || o.Lon < -180 || o.Lon > 180 {
			return fmt.Errorf("observer location %.4f,%.4f out of range", o.Lat, o.Lon)
		}
	}
	return nil
}
