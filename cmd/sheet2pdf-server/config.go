package main

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Store  StoreConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string
	Port string
	// MaxUploadBytes bounds the multipart request body.
	MaxUploadBytes int
}

// EngineConfig holds rendering engine settings.
type EngineConfig struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string
}

// StoreConfig holds artifact store settings.
type StoreConfig struct {
	ArtifactDir string
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           "8080",
			MaxUploadBytes: 100 * 1024 * 1024,
		},
		Engine: EngineConfig{
			Headless: true,
			Timeout:  2 * time.Minute,
		},
		Store: StoreConfig{
			ArtifactDir: "./artifacts",
		},
	}
}

// FromEnv applies environment overrides to the defaults.
func FromEnv() Config {
	cfg := Defaults()

	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if limit := os.Getenv("SHEET2PDF_MAX_UPLOAD_BYTES"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			cfg.Server.MaxUploadBytes = parsed
		}
	}
	if dir := os.Getenv("SHEET2PDF_ARTIFACT_DIR"); dir != "" {
		cfg.Store.ArtifactDir = dir
	}
	if path := os.Getenv("SHEET2PDF_BROWSER_PATH"); path != "" {
		cfg.Engine.BrowserPath = path
	}
	if headless := os.Getenv("SHEET2PDF_HEADLESS"); headless != "" {
		if parsed, err := strconv.ParseBool(headless); err == nil {
			cfg.Engine.Headless = parsed
		}
	}
	if timeout := os.Getenv("SHEET2PDF_ENGINE_TIMEOUT"); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil {
			cfg.Engine.Timeout = parsed
		}
	}
	return cfg
}
