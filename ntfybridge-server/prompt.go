package main

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/ntfybridge/ntfybridge/core"
	"golang.org/x/term"
)

// ensureToken asks for an access token when the topic is marked protected and
// none is configured. The prompt only runs on an interactive terminal, so an
// MCP client driving stdin never sees it. Declining the prompt (Ctrl+C)
// continues without authentication; the server will answer 403 if the topic
// really needs it.
func ensureToken(config *core.NtfyBridgeConfig) error {
	interactive := !noInput && term.IsTerminal(int(os.Stdin.Fd()))
	if !tokenPromptNeeded(config, interactive) {
		return nil
	}

	var token string
	err := huh.NewForm(huh.NewGroup(huh.NewInput().
		Title("Access token for protected topic " + config.Topic).
		EchoMode(huh.EchoModePassword).
		Value(&token)),
	).WithTheme(huh.ThemeCharm()).
		Run()

	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	config.Token = strings.TrimSpace(token)
	return nil
}

func tokenPromptNeeded(config *core.NtfyBridgeConfig, interactive bool) bool {
	return interactive && config.Token == "" && config.ProtectedTopic
}
