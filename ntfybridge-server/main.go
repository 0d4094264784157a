package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ntfybridge/ntfybridge/core"
	"github.com/spf13/cobra"
)

var (
	configFile string
	serverURL  string
	topicFlag  string
	tokenFlag  string
	logFile    string
	debugMode  bool
	noInput    bool
)

var rootCmd = &cobra.Command{
	Use:   "ntfybridge-server",
	Short: "MCP bridge to a ntfy push notification service. Version: " + core.ThisAppVersion,
	Long: `ntfybridge-server exposes two MCP tools to AI assistants:
	- ntfy_send publishes a notification to a ntfy topic. Markdown in the
	  message body is detected automatically and URLs in the body become
	  clickable view buttons.
	- ntfy_fetch reads back messages cached by the ntfy server.

Configuration is taken from a JSON config file (--config), from a .env file,
or from the NTFY_URL, NTFY_TOPIC, NTFY_TOKEN and NTFY_PROTECTED_TOPIC
environment variables. Flags override both.

Example:
  ntfybridge-server run --topic alerts
  ntfybridge-server listen --topic alerts --log stdout
  ntfybridge-server init --config ntfybridge_config.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("no command specified, use 'run', 'listen', 'init' or 'version'")
	},
}

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Serve the MCP protocol on stdin/stdout",
	Long:         `Run the bridge as an MCP server over stdio. This is the command an MCP client config should point at. Stdout carries the protocol, so logs go to the configured log file only.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var listenCmd = &cobra.Command{
	Use:          "listen",
	Short:        "Subscribe to the topic and print incoming messages",
	Long:         `Connect to the ntfy websocket endpoint and print every incoming message to the terminal. Messages that contain markdown are rendered; plain messages are printed as-is.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListener()
	},
}

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a standard config file",
	Long:         `Create a config file with default values at the path given by --config.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return fmt.Errorf("--config is required for init")
		}
		if _, err := core.CreateStandardConfigFile(configFile); err != nil {
			return err
		}
		fmt.Printf("Config file created at %s\n", configFile)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s version %s\n", core.ThisAppName, core.ThisAppVersion)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "config file path. Environment variables override file values.")
	rootCmd.PersistentFlags().
		StringVar(&serverURL, "server", "", "ntfy server URL (default https://ntfy.sh)")
	rootCmd.PersistentFlags().
		StringVar(&topicFlag, "topic", "", "default ntfy topic")
	rootCmd.PersistentFlags().
		StringVar(&tokenFlag, "token", "", "access token for protected topics")
	rootCmd.PersistentFlags().
		StringVar(&logFile, "log", "", "log file path, or 'stdout' (listen only)")
	rootCmd.PersistentFlags().
		BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().
		BoolVar(&noInput, "no-input", false, "never prompt for credentials")
}

// loadConfig merges file config, environment and flags, flags last.
func loadConfig() (*core.NtfyBridgeConfig, error) {
	var config *core.NtfyBridgeConfig
	if configFile != "" {
		loaded, err := core.LoadConfig(configFile)
		if err != nil {
			return nil, err
		}
		loaded.ApplyEnv()
		config = loaded
	} else {
		config = core.LoadConfigFromEnv()
	}

	if serverURL != "" {
		config.ServerURL = serverURL
	}
	if topicFlag != "" {
		config.Topic = topicFlag
	}
	if tokenFlag != "" {
		config.Token = tokenFlag
	}
	if logFile != "" {
		config.LogFilePath = logFile
	}
	if debugMode {
		config.DebugMode = true
	}
	return config, nil
}

func runServer() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	// Stdout is the MCP transport; never log there while serving.
	if config.LogFilePath == "stdout" {
		config.LogFilePath = ""
	}

	if err := ensureToken(config); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bridge, err := core.GetNtfyBridge(*config, ctx)
	if err != nil {
		return err
	}
	if err := bridge.Init(); err != nil {
		return err
	}
	defer bridge.Finish()

	return bridge.ServeStdio()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
