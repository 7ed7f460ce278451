package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/prodreports/dispatch-ingestion/internal/ingestion"
	"github.com/prodreports/dispatch-ingestion/internal/models"
)

// ConfigPathEnv names an optional TOML file read before the environment.
const ConfigPathEnv = "PRODMGR_CONFIG"

const defaultConfigFile = "config.toml"

type Config struct {
	AppName          string            `toml:"app_name"`
	APIV1Str         string            `toml:"api_v1_str"`
	APIPort          int               `toml:"api_port"`
	DatabaseURL      string            `toml:"database_url"`
	UploadFolder     string            `toml:"upload_folder"`
	AllowedFileTypes []models.FileType `toml:"allowed_file_types"`
	MaxUploadSize    int64             `toml:"max_upload_size"`
	TestMode         bool              `toml:"test_mode"`
	TestRows         int               `toml:"test_rows"`
	LogLevel         string            `toml:"log_level"`
	LogFormat        string            `toml:"log_format"`
}

func Default() Config {
	return Config{
		AppName:          "Production Data Manager",
		APIV1Str:         "/api/v1",
		APIPort:          8080,
		DatabaseURL:      "sqlite:///./production_data.db",
		UploadFolder:     "./uploads",
		AllowedFileTypes: append([]models.FileType(nil), models.AllFileTypes...),
		MaxUploadSize:    100 * 1024 * 1024,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// New builds the configuration from the defaults, then the TOML file named by
// PRODMGR_CONFIG (or ./config.toml when present), then the environment.
func New() (Config, error) {
	cfg := Default()

	if err := cfg.loadFile(); err != nil {
		return Config{}, err
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile() error {
	path := os.Getenv(ConfigPathEnv)
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	defaults := c.AllowedFileTypes
	c.AllowedFileTypes = nil
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.AllowedFileTypes == nil {
		c.AllowedFileTypes = defaults
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.AppName = getEnv("APP_NAME", c.AppName)
	c.APIV1Str = getEnv("API_V1_STR", c.APIV1Str)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.UploadFolder = getEnv("UPLOAD_FOLDER", c.UploadFolder)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if value := os.Getenv("ALLOWED_FILE_TYPES"); value != "" {
		c.AllowedFileTypes = nil
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				c.AllowedFileTypes = append(c.AllowedFileTypes, models.FileType(item))
			}
		}
	}

	var err error
	c.APIPort, err = getEnvAsInt("API_PORT", c.APIPort)
	if err != nil {
		return err
	}

	c.TestRows, err = getEnvAsInt("TEST_ROWS", c.TestRows)
	if err != nil {
		return err
	}

	c.TestMode, err = getEnvAsBool("TEST_MODE", c.TestMode)
	if err != nil {
		return err
	}

	maxUploadSize, err := getEnvAsInt("MAX_UPLOAD_SIZE", int(c.MaxUploadSize))
	if err != nil {
		return err
	}
	c.MaxUploadSize = int64(maxUploadSize)

	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d", c.MaxUploadSize)
	}
	if c.TestRows < 0 {
		return fmt.Errorf("test rows must not be negative, got %d", c.TestRows)
	}
	if len(c.AllowedFileTypes) == 0 {
		return fmt.Errorf("at least one allowed file type is required")
	}
	for _, ft := range c.AllowedFileTypes {
		if !ft.IsValid() {
			return fmt.Errorf("invalid allowed file type %q", ft)
		}
	}
	return nil
}

// IsAllowed reports whether uploads of ft are accepted.
func (c Config) IsAllowed(ft models.FileType) bool {
	for _, allowed := range c.AllowedFileTypes {
		if allowed == ft {
			return true
		}
	}
	return false
}

// IngestionConfig returns the pipeline options. Test mode caps the rows read
// per file.
func (c Config) IngestionConfig() ingestion.Config {
	if !c.TestMode {
		return ingestion.Config{}
	}
	return ingestion.Config{MaxRows: c.TestRows}
}

func (c Config) EnsureUploadFolder() error {
	if err := os.MkdirAll(c.UploadFolder, 0755); err != nil {
		return fmt.Errorf("failed to create upload folder %s: %w", c.UploadFolder, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}

	return value, nil
}
