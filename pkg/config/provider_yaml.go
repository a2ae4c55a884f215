package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from the YAML file, fills in
// defaults and applies environment overrides.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", y.filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Debug: yamlConfig.Debug,
		Server: ServerData{
			ListenAddr: yamlConfig.Server.ListenAddr,
			Port:       yamlConfig.Server.Port,
			Cert:       yamlConfig.Server.Cert,
			Key:        yamlConfig.Server.Key,
		},
		Content: ContentData{
			GeminiAPIKey: yamlConfig.Content.GeminiAPIKey,
			Model:        yamlConfig.Content.Model,
		},
		Render: RenderData{
			Size:        yamlConfig.Render.Size,
			Workers:     yamlConfig.Render.Workers,
			Seed:        yamlConfig.Render.Seed,
			TexturePath: yamlConfig.Render.TexturePath,
		},
	}

	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{
			ConnectionString: yamlConfig.Storage.Postgres.ConnectionString,
		}
	}
	if yamlConfig.Render.Observer != nil {
		config.Render.Observer = &PointData{
			Lat: yamlConfig.Render.Observer.Lat,
			Lon: yamlConfig.Render.Observer.Lon,
		}
	}

	config.applyDefaults()
	config.applyEnv()
	return config, nil
}

// GetServerConfig returns the REST server configuration
func (y *YAMLProvider) GetServerConfig() (*ServerData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Server, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Storage, nil
}

// GetContentConfig returns the content service configuration
func (y *YAMLProvider) GetContentConfig() (*ContentData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Content, nil
}

// GetRenderConfig returns render defaults
func (y *YAMLProvider) GetRenderConfig() (*RenderData, error) {
	if err := y.ensureLoaded(); err != nil {
		return nil, err
	}
	return &y.config.Render, nil
}

func (y *YAMLProvider) ensureLoaded() error {
	if y.config != nil {
		return nil
	}
	_, err := y.LoadConfig()
	return err
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs carrying the file's key names
type ConfigYAML struct {
	Debug   bool        `yaml:"debug,omitempty"`
	Server  ServerYAML  `yaml:"server,omitempty"`
	Storage StorageYAML `yaml:"storage,omitempty"`
	Content ContentYAML `yaml:"content,omitempty"`
	Render  RenderYAML  `yaml:"render,omitempty"`
}

type ServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
}

type StorageYAML struct {
	SQLite   *SQLiteYAML   `yaml:"sqlite,omitempty"`
	Postgres *PostgresYAML `yaml:"postgres,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type PostgresYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type ContentYAML struct {
	GeminiAPIKey string `yaml:"gemini-api-key,omitempty"`
	Model        string `yaml:"model,omitempty"`
}

type RenderYAML struct {
	Size        int        `yaml:"size,omitempty"`
	Workers     int        `yaml:"workers,omitempty"`
	Seed        int64      `yaml:"seed,omitempty"`
	TexturePath string     `yaml:"texture-path,omitempty"`
	Observer    *PointYAML `yaml:"observer,omitempty"`
}

type PointYAML struct {
	Lat float64 `yaml:"latitude"`
	Lon float64 `yaml:"longitude"`
}

var _ ConfigProvider = (*YAMLProvider)(nil)
