// Package config provides YAML/env configuration for the CLI and the report server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ARMALOGS_SERVER_PORT.
const EnvPrefix = "ARMALOGS"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Extract ExtractConfig `mapstructure:"extract"`
	Report  ReportConfig  `mapstructure:"report"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int     `mapstructure:"port"`
	BindAddress          string  `mapstructure:"bind-address"`
	EnableCORS           bool    `mapstructure:"enable-cors"`
	AllowOrigins         string  `mapstructure:"allow-origins"`
	ReadTimeout          int     `mapstructure:"read-timeout-seconds"`
	WriteTimeout         int     `mapstructure:"write-timeout-seconds"`
	IdleTimeout          int     `mapstructure:"idle-timeout-seconds"`
	BodyLimit            string  `mapstructure:"body-limit"`
	EnableRequestLogging bool    `mapstructure:"enable-request-logging"`
	ShowErrorDetails     bool    `mapstructure:"show-error-details"`
	// RateLimit is the per-client request rate for mutating requests; 0 disables it.
	RateLimit            float64 `mapstructure:"rate-limit"`
	RateBurst            int     `mapstructure:"rate-burst"`
}

// StorageConfig contains event table storage settings
type StorageConfig struct {
	DataDirectory    string `mapstructure:"data-dir"`
	UploadsDirectory string `mapstructure:"uploads-dir"`
	// Format is the extension used for tables extracted by the server.
	Format           string `mapstructure:"format"`
}

// ExtractConfig contains log discovery and extraction settings
type ExtractConfig struct {
	Workers     int      `mapstructure:"workers"`
	LogPattern  string   `mapstructure:"log-pattern"`
	MarkersFile string   `mapstructure:"markers-file"`
	Output      string   `mapstructure:"output"`
	// Schedule is a cron spec for server-side extraction of Roots; empty disables it.
	Schedule    string   `mapstructure:"schedule"`
	Roots       []string `mapstructure:"roots"`
}

// ReportConfig contains report settings
type ReportConfig struct {
	Input                  string `mapstructure:"input"`
	// Output is the report CSV written by the CLI; "-" means stdout.
	Output                 string `mapstructure:"output"`
	TTLMinutes             int    `mapstructure:"ttl-minutes"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup-interval-minutes"`
	RecentFilesLimit       int    `mapstructure:"recent-files-limit"`
}

// defaults in viper key form
var defaults = map[string]any{
	"server.port":                     8089,
	"server.bind-address":             "0.0.0.0",
	"server.enable-cors":              true,
	"server.allow-origins":            "*",
	"server.read-timeout-seconds":     30,
	"server.write-timeout-seconds":    30,
	"server.idle-timeout-seconds":     120,
	"server.body-limit":               "512M",
	"server.enable-request-logging":   true,
	"server.show-error-details":       false,
	"server.rate-limit":               2.0,
	"server.rate-burst":               20,
	"storage.data-dir":                "./data",
	"storage.uploads-dir":             "./data/uploads",
	"storage.format":                  ".csv",
	"extract.workers":                 runtime.GOMAXPROCS(0),
	"extract.log-pattern":             "*.log",
	"extract.markers-file":            "",
	"extract.output":                  "connects.csv",
	"extract.schedule":                "",
	"extract.roots":                   []string{},
	"report.input":                    "connects.csv",
	"report.output":                   "report.csv",
	"report.ttl-minutes":              30,
	"report.cleanup-interval-minutes": 5,
	"report.recent-files-limit":       20,
}

// NewViper returns a viper instance with all defaults registered and
// environment overrides enabled. Callers may bind flags to it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// LoadDotEnv exports the variables of each .env file (default ".env") that
// exists, so ARMALOGS_* overrides can live next to the binary. Variables
// already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	cfg, err := decode(NewViper())
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

// Load reads configPath (YAML) into v and decodes the result. An empty path
// uses defaults, environment and bound flags only. Relative directories in a
// config file are resolved against the file's directory.
func Load(v *viper.Viper, configPath string) (*AppConfig, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found: %s", configPath)
			}
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		cfg.resolvePaths(filepath.Dir(configPath))
	}
	return cfg, nil
}

// LoadOrCreate loads configPath, writing a default config there first when
// the file does not exist.
func LoadOrCreate(v *viper.Viper, configPath string) (*AppConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := v.SafeWriteConfigAs(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		fmt.Printf("[Config] Created default config at %s\n", configPath)
	}
	return Load(v, configPath)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Extract.Workers <= 0 {
		cfg.Extract.Workers = runtime.GOMAXPROCS(0)
	}
	if !strings.HasPrefix(cfg.Storage.Format, ".") {
		cfg.Storage.Format = "." + cfg.Storage.Format
	}
	return cfg, nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{&c.Storage.DataDirectory, &c.Storage.UploadsDirectory} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	if c.Extract.MarkersFile != "" && !filepath.IsAbs(c.Extract.MarkersFile) {
		c.Extract.MarkersFile = filepath.Join(configDir, c.Extract.MarkersFile)
	}
	for i, root := range c.Extract.Roots {
		if !filepath.IsAbs(root) {
			c.Extract.Roots[i] = filepath.Join(configDir, root)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	for _, dir := range []string{c.Storage.DataDirectory, c.Storage.UploadsDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
