package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fieldscope/fieldscope/internal/detect"
)

const (
	// Mode constants
	ModeStdio = "stdio"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
)

// Config holds all configuration for the fieldscope server, including the
// detection tuning thresholds. The tuning values are exposed as flags
// because they are empirically calibrated and occasionally need adjusting
// for a particular document corpus.
type Config struct {
	// Server configuration
	Mode string // "stdio"

	// Document configuration
	PDFDirectory string
	RasterDir    string // optional directory of pre-rendered page images
	MaxFileSize  int64  // Maximum PDF file size in bytes

	// Detection tuning
	IntraPassOverlap float64
	PersistedOverlap float64
	RasterScale      float64
	TargetLineGapPx  float64
	LuminanceCutoff  int
	RasterTrigger    int
	MaxOverlayBoxes  int

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

	tuning := detect.DefaultTuning()
	return &Config{
		Mode:             ModeStdio, // Default to stdio mode for MCP compatibility
		PDFDirectory:     currentDir,
		MaxFileSize:      DefaultMaxFileSize,
		IntraPassOverlap: tuning.IntraPassOverlap,
		PersistedOverlap: tuning.PersistedOverlap,
		RasterScale:      tuning.RasterScale,
		TargetLineGapPx:  tuning.TargetLineGapPx,
		LuminanceCutoff:  tuning.DarkLuminanceMax,
		RasterTrigger:    tuning.RasterTriggerCandidates,
		MaxOverlayBoxes:  tuning.MaxBoxes,
		Version:          "1.0.0",
		ServerName:       "fieldscope",
		LogLevel:         DefaultLogLevel,
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
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
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
	viper.SetEnvPrefix("FIELDSCOPE")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("rasterdir", cfg.RasterDir)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("intraoverlap", cfg.IntraPassOverlap)
	viper.SetDefault("persistedoverlap", cfg.PersistedOverlap)
	viper.SetDefault("rasterscale", cfg.RasterScale)
	viper.SetDefault("linegap", cfg.TargetLineGapPx)
	viper.SetDefault("luminance", cfg.LuminanceCutoff)
	viper.SetDefault("rastertrigger", cfg.RasterTrigger)
	viper.SetDefault("maxboxes", cfg.MaxOverlayBoxes)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("rasterdir", cfg.RasterDir, "Directory of pre-rendered page images (page-N.png) for scanned documents")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Float64("intraoverlap", cfg.IntraPassOverlap, "Overlap ratio treating two fresh candidates as duplicates")
	pflag.Float64("persistedoverlap", cfg.PersistedOverlap, "Overlap ratio at which a candidate defers to an existing box")
	pflag.Float64("rasterscale", cfg.RasterScale, "Raster render scale in pixels per point")
	pflag.Float64("linegap", cfg.TargetLineGapPx, "Preferred box-pair line gap in pixels at the render scale")
	pflag.Int("luminance", cfg.LuminanceCutoff, "Luminance below which a pixel counts as dark (0-255)")
	pflag.Int("rastertrigger", cfg.RasterTrigger, "Run the raster strategy when a page yields fewer candidates than this")
	pflag.Int("maxboxes", cfg.MaxOverlayBoxes, "Hard cap on overlay boxes per document")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "dir", "rasterdir", "loglevel", "maxfilesize",
		"intraoverlap", "persistedoverlap", "rasterscale", "linegap",
		"luminance", "rastertrigger", "maxboxes",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nfieldscope - Fillable-field detection and overlay server for flat PDFs\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                     "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                 "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/pdfs --rasterdir=/pdfs/pages # scanned documents with page images\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FIELDSCOPE_MODE             Server mode\n")
		fmt.Fprintf(os.Stderr, "  FIELDSCOPE_DIR              PDF directory\n")
		fmt.Fprintf(os.Stderr, "  FIELDSCOPE_RASTERDIR        Page image directory\n")
		fmt.Fprintf(os.Stderr, "  FIELDSCOPE_LOGLEVEL         Log level\n")
		fmt.Fprintf(os.Stderr, "  FIELDSCOPE_MAXFILESIZE      Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  FIELDSCOPE_MAXBOXES         Overlay box cap\n")
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
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.RasterDir = viper.GetString("rasterdir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.IntraPassOverlap = viper.GetFloat64("intraoverlap")
	cfg.PersistedOverlap = viper.GetFloat64("persistedoverlap")
	cfg.RasterScale = viper.GetFloat64("rasterscale")
	cfg.TargetLineGapPx = viper.GetFloat64("linegap")
	cfg.LuminanceCutoff = viper.GetInt("luminance")
	cfg.RasterTrigger = viper.GetInt("rastertrigger")
	cfg.MaxOverlayBoxes = viper.GetInt("maxboxes")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio {
		return errors.New("mode must be 'stdio'")
	}

	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}
	if _, err := os.Stat(c.PDFDirectory); err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.IntraPassOverlap <= 0 || c.IntraPassOverlap > 1 {
		return errors.New("intraoverlap must be in (0, 1]")
	}
	if c.PersistedOverlap <= 0 || c.PersistedOverlap > 1 {
		return errors.New("persistedoverlap must be in (0, 1]")
	}
	if c.RasterScale <= 0 || c.RasterScale > 8 {
		return errors.New("rasterscale must be in (0, 8]")
	}
	if c.LuminanceCutoff < 0 || c.LuminanceCutoff > 255 {
		return errors.New("luminance must be between 0 and 255")
	}
	if c.MaxOverlayBoxes <= 0 {
		return errors.New("maxboxes must be positive")
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

// Tuning maps the configuration onto the detection tuning knobs.
func (c *Config) Tuning() detect.Tuning {
	t := detect.DefaultTuning()
	t.IntraPassOverlap = c.IntraPassOverlap
	t.PersistedOverlap = c.PersistedOverlap
	t.RasterScale = c.RasterScale
	t.TargetLineGapPx = c.TargetLineGapPx
	t.DarkLuminanceMax = c.LuminanceCutoff
	t.RasterTriggerCandidates = c.RasterTrigger
	t.MaxBoxes = c.MaxOverlayBoxes
	return t
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, PDFDirectory: %s, RasterDir: %s, LogLevel: %s, MaxBoxes: %d}",
		c.Mode, c.PDFDirectory, c.RasterDir, c.LogLevel, c.MaxOverlayBoxes)
}
