package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tivault/docmatch/internal/model"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the docmatch server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Document configuration
	DocumentDirectory string
	MaxFileSize       int64 // Maximum document file size in bytes

	// Template catalog configuration
	DatabasePath string // Empty keeps the catalog in memory

	// Matching configuration
	MinimumConfidence  float64
	AutoApplyThreshold float64
	FuzzyMatching      bool
	FuzzyThreshold     float64
	CacheTTLHours      int
	MaxConcurrent      int

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	settings := model.DefaultMatchingSettings()
	criteria := model.DefaultMatchingCriteria()

	return &Config{
		Mode:              ModeStdio, // Default to stdio mode for MCP compatibility
		Host:              DefaultHost,
		Port:              DefaultPort,
		DocumentDirectory: currentDir,
		MaxFileSize:       DefaultMaxFileSize,
		DatabasePath:      "",

		MinimumConfidence:  settings.MinimumConfidence,
		AutoApplyThreshold: criteria.AutoApplicationThreshold,
		FuzzyMatching:      settings.FuzzyMatching,
		FuzzyThreshold:     settings.FuzzyThreshold,
		CacheTTLHours:      int(settings.CacheTTL / time.Hour),
		MaxConcurrent:      settings.MaxConcurrentOperations,

		Version:    "1.0.0",
		ServerName: "docmatch",
		LogLevel:   DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.DocumentDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.DocumentDirectory); err == nil {
			cfg.DocumentDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("DOCMATCH")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.DocumentDirectory)
	viper.SetDefault("db", cfg.DatabasePath)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("minconfidence", cfg.MinimumConfidence)
	viper.SetDefault("autoapply", cfg.AutoApplyThreshold)
	viper.SetDefault("fuzzy", cfg.FuzzyMatching)
	viper.SetDefault("fuzzythreshold", cfg.FuzzyThreshold)
	viper.SetDefault("cachettl", cfg.CacheTTLHours)
	viper.SetDefault("concurrency", cfg.MaxConcurrent)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.DocumentDirectory, "Directory containing documents to match")
	pflag.String("db", cfg.DatabasePath, "Path to the template catalog database (empty for in-memory)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum document file size in bytes")
	pflag.Float64("minconfidence", cfg.MinimumConfidence, "Minimum confidence for a template match")
	pflag.Float64("autoapply", cfg.AutoApplyThreshold, "Confidence at which a match is applied automatically")
	pflag.Bool("fuzzy", cfg.FuzzyMatching, "Enable fuzzy filename matching")
	pflag.Float64("fuzzythreshold", cfg.FuzzyThreshold, "Similarity threshold for fuzzy filename matching")
	pflag.Int("cachettl", cfg.CacheTTLHours, "Match cache TTL in hours")
	pflag.Int("concurrency", cfg.MaxConcurrent, "Maximum concurrent batch operations")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "dir", "db", "loglevel", "maxfilesize",
		"minconfidence", "autoapply", "fuzzy", "fuzzythreshold", "cachettl", "concurrency",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\ndocmatch - A Model Context Protocol server for template-based document matching\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/docs --db=catalog.db     "+
			"# stdio mode with a durable catalog\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/docs       # server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_MODE           Server mode\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_HOST           Server host\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_PORT           Server port\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_DIR            Document directory\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_DB             Catalog database path\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_LOGLEVEL       Log level\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_MAXFILESIZE    Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_MINCONFIDENCE  Minimum match confidence\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_AUTOAPPLY      Auto-apply threshold\n")
		fmt.Fprintf(os.Stderr, "  DOCMATCH_CONCURRENCY    Maximum concurrent operations\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.DocumentDirectory = viper.GetString("dir")
	cfg.DatabasePath = viper.GetString("db")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.MinimumConfidence = viper.GetFloat64("minconfidence")
	cfg.AutoApplyThreshold = viper.GetFloat64("autoapply")
	cfg.FuzzyMatching = viper.GetBool("fuzzy")
	cfg.FuzzyThreshold = viper.GetFloat64("fuzzythreshold")
	cfg.CacheTTLHours = viper.GetInt("cachettl")
	cfg.MaxConcurrent = viper.GetInt("concurrency")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate document directory
	if c.DocumentDirectory == "" {
		return errors.New("document directory cannot be empty")
	}

	// Check if document directory exists, create if it doesn't
	if _, err := os.Stat(c.DocumentDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.DocumentDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create document directory %s: %w", c.DocumentDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access document directory %s: %w", c.DocumentDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate matching thresholds
	if c.MinimumConfidence < 0 || c.MinimumConfidence > 1 {
		return errors.New("minimum confidence must be between 0 and 1")
	}
	if c.AutoApplyThreshold < 0 || c.AutoApplyThreshold > 1 {
		return errors.New("auto-apply threshold must be between 0 and 1")
	}
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 1 {
		return errors.New("fuzzy threshold must be between 0 and 1")
	}
	if c.CacheTTLHours < 0 {
		return errors.New("cache TTL cannot be negative")
	}
	if c.MaxConcurrent < 1 {
		return errors.New("concurrency must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// MatchingSettings converts the configuration into the matcher's settings.
func (c *Config) MatchingSettings() model.MatchingSettings {
	return model.MatchingSettings{
		FuzzyMatching:           c.FuzzyMatching,
		FuzzyThreshold:          c.FuzzyThreshold,
		MinimumConfidence:       c.MinimumConfidence,
		CacheTTL:                time.Duration(c.CacheTTLHours) * time.Hour,
		MaxConcurrentOperations: c.MaxConcurrent,
	}
}

// MatchingCriteria returns the scoring criteria with the configured
// auto-apply threshold over the default weights.
func (c *Config) MatchingCriteria() model.MatchingCriteria {
	criteria := model.DefaultMatchingCriteria()
	criteria.AutoApplicationThreshold = c.AutoApplyThreshold
	return criteria
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DocumentDirectory: %s, DatabasePath: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Host, c.Port, c.DocumentDirectory, c.DatabasePath, c.LogLevel, c.MaxFileSize)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
