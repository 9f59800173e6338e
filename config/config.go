package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ServerConfig struct {
	URL          string `toml:"url"`
	Token        string `toml:"token,omitempty"`
	DefaultModel string `toml:"default_model"`
}

type UserConfig struct {
	Server              ServerConfig `toml:"server"`
	DefaultSystemPrompt string       `toml:"default_system_prompt,omitempty"`
	ProviderDomains     []string     `toml:"provider_domains,omitempty"`
}

type Config struct {
	DataDirectory       string
	ServerURL           string
	AuthToken           string
	DefaultModel        string
	DefaultSystemPrompt string
	ProviderDomains     []string
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if server := os.Getenv("COACHTUI_SERVER"); server != "" {
		c.ServerURL = server
	}
	if token := os.Getenv("COACHTUI_TOKEN"); token != "" {
		c.AuthToken = token
	}
	if dataDir := os.Getenv("COACHTUI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv("COACHTUI_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// Create debug log with secure permissions (0600 - may contain sensitive debug info)
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (COACHTUI_DEBUG=%s) ===", os.Getenv("COACHTUI_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}

// Load reads the system config (data directory) and the user config
// (server settings) and applies env overrides on top.
func Load() (*Config, error) {
	sysCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, err
	}

	dataDir := ExpandPath(sysCfg.DataDirectory)
	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDirectory:       sysCfg.DataDirectory,
		ServerURL:           userCfg.Server.URL,
		AuthToken:           userCfg.Server.Token,
		DefaultModel:        userCfg.Server.DefaultModel,
		DefaultSystemPrompt: userCfg.DefaultSystemPrompt,
		ProviderDomains:     userCfg.ProviderDomains,
	}

	if len(cfg.ProviderDomains) == 0 {
		cfg.ProviderDomains = DefaultProviderDomains()
	}

	cfg.applyEnvOverrides()

	if err := os.MkdirAll(cfg.DataDir(), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}
