package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Annotation AnnotationConfig `json:"annotation"`
	Palette    map[string][]int `json:"palette"`
	Prelabel   PrelabelConfig   `json:"prelabel"`
	Output     OutputConfig     `json:"output"`
	Log        LogConfig        `json:"log"`
}

// AnnotationConfig holds rules applied to annotation records
type AnnotationConfig struct {
	RequiredAttributes []string `json:"required_attributes"`
	Precision          int      `json:"precision"`
}

// PrelabelConfig holds vision-model settings for pre-labeling
type PrelabelConfig struct {
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	SendFormat    string  `json:"send_format"`
	SendSize      int     `json:"send_size"`
	SendQuality   int     `json:"send_quality"`
	MinConfidence float64 `json:"min_confidence"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OutputDir     string `json:"output_dir"`
	OverlayFormat string `json:"overlay_format"`
	Quality       int    `json:"quality"`
	Labels        bool   `json:"labels"`
	FillAlpha     uint8  `json:"fill_alpha"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Annotation: AnnotationConfig{
			RequiredAttributes: []string{},
			Precision:          4,
		},
		Palette: map[string][]int{},
		Prelabel: PrelabelConfig{
			URL:           "http://localhost:11434",
			Model:         "llava",
			SendFormat:    "jpg",
			SendSize:      1536,
			SendQuality:   85,
			MinConfidence: 0.3,
		},
		Output: OutputConfig{
			OutputDir:     "./output",
			OverlayFormat: "png",
			Quality:       90,
			Labels:        true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it is set, then applies environment overrides.
// A .env file in the working directory is loaded first if present.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()
	if filename != "" {
		var err error
		if config, err = LoadFromFile(filename); err != nil {
			return nil, err
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, config.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("ANNOTATE_OLLAMA_URL"); v != "" {
		c.Prelabel.URL = v
	}
	if v := os.Getenv("ANNOTATE_MODEL"); v != "" {
		c.Prelabel.Model = v
	}
	if v := os.Getenv("ANNOTATE_OUTPUT_DIR"); v != "" {
		c.Output.OutputDir = v
	}
	if v := os.Getenv("ANNOTATE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("ANNOTATE_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("ANNOTATE_PRECISION"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANNOTATE_PRECISION: %w", err)
		}
		c.Annotation.Precision = p
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Annotation.Precision < 0 || c.Annotation.Precision > 15 {
		return fmt.Errorf("annotation.precision must be between 0 and 15")
	}

	for class, channels := range c.Palette {
		if len(channels) != 3 {
			return fmt.Errorf("palette.%s must have exactly 3 channels", class)
		}
		for _, ch := range channels {
			if ch < 0 || ch > 255 {
				return fmt.Errorf("palette.%s channels must be between 0 and 255", class)
			}
		}
	}

	if c.Prelabel.SendQuality < 1 || c.Prelabel.SendQuality > 100 {
		return fmt.Errorf("prelabel.send_quality must be between 1 and 100")
	}

	if c.Prelabel.MinConfidence < 0 || c.Prelabel.MinConfidence > 1 {
		return fmt.Errorf("prelabel.min_confidence must be between 0 and 1")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Output.OverlayFormat {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.overlay_format must be png, jpg or webp")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "annotation-kit", "config.json")
}
