package core

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	ThisAppName    = "NtfyBridge"
	ThisAppVersion = "0.1.0"

	defaultServerURL = "https://ntfy.sh"
	defaultSince     = "10m"
	defaultPriority  = "default"

	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second

	envServerURL      = "NTFY_URL"
	envTopic          = "NTFY_TOPIC"
	envToken          = "NTFY_TOKEN"
	envProtectedTopic = "NTFY_PROTECTED_TOPIC"
)

type NtfyBridgeConfig struct {
	ServerURL       string `json:"server_url"`
	Topic           string `json:"topic"`
	Token           string `json:"token,omitempty"`
	ProtectedTopic  bool   `json:"protected_topic"`
	DefaultPriority string `json:"default_priority,omitempty"`
	LogFilePath     string `json:"log_file_path"`
	DebugMode       bool   `json:"debug_mode"`
}

func CreateStandardConfigFile(configPath string) (*NtfyBridgeConfig, error) {
	// Create the config file with default values
	defaultConfig := NtfyBridgeConfig{
		ServerURL:       defaultServerURL,
		Topic:           "",
		DefaultPriority: defaultPriority,
		LogFilePath:     "ntfybridge.log",
		DebugMode:       false,
	}

	configData, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return nil, err
	}

	err = os.WriteFile(configPath, configData, 0644)

	if err != nil {
		return nil, fmt.Errorf(
			"error writing config file %s: %w",
			configPath,
			err,
		)
	}
	return &defaultConfig, nil
}

func LoadConfig(configPath string) (*NtfyBridgeConfig, error) {
	// Read existing config
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s: %w",
			configPath,
			err,
		)
	}

	var config NtfyBridgeConfig
	if err := json.Unmarshal(configData, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// LoadConfigFromEnv builds a config from environment variables alone. A .env
// file in the working directory is read first when present.
func LoadConfigFromEnv() *NtfyBridgeConfig {
	config := &NtfyBridgeConfig{}
	config.ApplyEnv()
	config.applyDefaults()
	return config
}

// ApplyEnv overlays environment variables onto the config. Set variables win
// over file values so a deployment can override a checked-in config.
func (config *NtfyBridgeConfig) ApplyEnv() {
	// A missing .env file is not an error, the variables may be set directly
	_ = godotenv.Load()

	if value := os.Getenv(envServerURL); value != "" {
		config.ServerURL = value
	}
	if value := os.Getenv(envTopic); value != "" {
		config.Topic = value
	}
	if value := os.Getenv(envToken); value != "" {
		config.Token = value
	}
	if value := os.Getenv(envProtectedTopic); value == "true" || value == "1" || value == "yes" {
		config.ProtectedTopic = true
	}
}

func (config *NtfyBridgeConfig) applyDefaults() {
	if config.ServerURL == "" {
		config.ServerURL = defaultServerURL
	}
	if config.DefaultPriority == "" {
		config.DefaultPriority = defaultPriority
	}
}

func InitLogger(logFilePath string, debugMode bool) (*log.Logger, error) {
	// Initialize the logger with the specified log file path.
	// "stdout" is only safe for commands that do not use stdout as the MCP transport.
	var logger *log.Logger

	if logFilePath == "stdout" {
		logger = log.New(os.Stdout, "", log.LstdFlags)
	} else if logFilePath != "" {
		f1, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)

		if err != nil {
			return nil, fmt.Errorf("error opening log file: %v", err)
		}

		logger = log.New(f1, "", log.LstdFlags)
	} else {
		logger = log.New(io.Discard, "", log.LstdFlags)
	}

	// Set the log level based on the debug flag
	if debugMode {
		logger.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	return logger, nil
}
