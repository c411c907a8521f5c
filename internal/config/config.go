// Package config loads the service configuration from YAML with viper,
// falling back to built-in defaults when no file is present.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Upload UploadConfig `mapstructure:"upload"`
	Model  ModelConfig  `mapstructure:"model"`
	Mask   MaskConfig   `mapstructure:"mask"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// UploadConfig bounds incoming images.
type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	MaxBatchFiles     int      `mapstructure:"max_batch_files"`
}

// ModelConfig points at the external segmentation model service.
type ModelConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// MaskConfig holds the options the counting core reads: grid dimensions,
// the second-stage binarization threshold and the watershed peak window.
type MaskConfig struct {
	Width             int `mapstructure:"width"`
	Height            int `mapstructure:"height"`
	BinarizeThreshold int `mapstructure:"binarize_threshold"`
	WatershedWindow   int `mapstructure:"watershed_window"`
}

// Load reads the configuration from the given YAML file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New loads config.yaml from the working directory, or returns the
// defaults when the file is missing or unreadable.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Mask.Width <= 0 || c.Mask.Height <= 0 {
		return fmt.Errorf("mask dimensions must be positive, got %dx%d", c.Mask.Width, c.Mask.Height)
	}
	if c.Mask.BinarizeThreshold < 0 || c.Mask.BinarizeThreshold > 255 {
		return fmt.Errorf("binarize threshold must be in 0-255, got %d", c.Mask.BinarizeThreshold)
	}
	if c.Mask.WatershedWindow <= 0 {
		return fmt.Errorf("watershed window must be positive, got %d", c.Mask.WatershedWindow)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("upload.max_size", 16*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{"png", "jpg", "jpeg"})
	v.SetDefault("upload.max_batch_files", 10)

	v.SetDefault("model.endpoint", "http://localhost:8501/predict")
	v.SetDefault("model.max_concurrent", 3)

	v.SetDefault("mask.width", 512)
	v.SetDefault("mask.height", 512)
	v.SetDefault("mask.binarize_threshold", 200)
	v.SetDefault("mask.watershed_window", 5)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Upload: UploadConfig{
			MaxSize:           16 * 1024 * 1024,
			AllowedExtensions: []string{"png", "jpg", "jpeg"},
			MaxBatchFiles:     10,
		},
		Model: ModelConfig{
			Endpoint:      "http://localhost:8501/predict",
			MaxConcurrent: 3,
		},
		Mask: MaskConfig{
			Width:             512,
			Height:            512,
			BinarizeThreshold: 200,
			WatershedWindow:   5,
		},
	}
}
