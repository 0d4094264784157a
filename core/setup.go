package core

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/mark3labs/mcp-go/server"
)

// NtfyBridge ties the configuration, the ntfy client and the MCP server
// together. Create it with GetNtfyBridge, then call Init before serving.
type NtfyBridge struct {
	context context.Context
	config  NtfyBridgeConfig
	logger  *log.Logger
	client  *NtfyClient
	server  *server.MCPServer
}

func GetNtfyBridge(config NtfyBridgeConfig, ctx context.Context) (*NtfyBridge, error) {
	logger, err := InitLogger(config.LogFilePath, config.DebugMode)

	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %v", err)
	}
	return GetNtfyBridgeWithLogger(config, ctx, logger)
}

func GetNtfyBridgeWithLogger(config NtfyBridgeConfig, ctx context.Context, logger *log.Logger) (*NtfyBridge, error) {
	config.applyDefaults()

	bridge := &NtfyBridge{
		config: config,
	}

	bridge.context = ctx

	bridge.logger = logger

	return bridge, nil
}

func (bridge *NtfyBridge) WithLogger(logger *log.Logger) {
	bridge.logger = logger
}

// WithToken sets the access token, typically after prompting the user for it.
// Must be called before Init.
func (bridge *NtfyBridge) WithToken(token string) {
	bridge.config.Token = token
}

func (bridge *NtfyBridge) Init() error {
	parsed, err := url.Parse(bridge.config.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid ntfy server url %q", bridge.config.ServerURL)
	}

	bridge.client = NewNtfyClient(
		bridge.config.ServerURL,
		bridge.config.Topic,
		bridge.config.Token,
		bridge.logger,
	)
	bridge.client.WithDefaultPriority(bridge.config.DefaultPriority)

	bridge.server = server.NewMCPServer(
		ThisAppName,
		ThisAppVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Bridge to a ntfy push notification service. "+
			"Use ntfy_send to notify the user and ntfy_fetch to read back recent messages."),
	)
	registerTools(bridge.server, bridge.client, bridge.logger)

	bridge.logger.Printf("%s initialized for server %s", ThisAppName, bridge.config.ServerURL)
	return nil
}

// Client returns the underlying ntfy client. Valid after Init.
func (bridge *NtfyBridge) Client() *NtfyClient {
	return bridge.client
}

// MCPServer returns the assembled MCP server. Valid after Init.
func (bridge *NtfyBridge) MCPServer() *server.MCPServer {
	return bridge.server
}

// ServeStdio serves the MCP protocol on stdin/stdout until the client
// disconnects. Nothing else may write to stdout while it runs.
func (bridge *NtfyBridge) ServeStdio() error {
	return server.ServeStdio(bridge.server)
}

func (bridge *NtfyBridge) Finish() {
	bridge.logger.Printf("%s finished", ThisAppName)
}
