package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/ntfybridge/ntfybridge/core"
)

var (
	// Tokyo Night theme colors
	tokyoCyan = lipgloss.Color("73")  // #7dcfff
	tokyoBlue = lipgloss.Color("111") // #7aa2f7
	tokyoFg   = lipgloss.Color("189") // #c0caf5

	titleStyle = lipgloss.NewStyle().
			Foreground(tokyoBlue).
			Bold(true)

	metaStyle = lipgloss.NewStyle().
			Foreground(tokyoCyan)

	bodyStyle = lipgloss.NewStyle().
			Foreground(tokyoFg).
			PaddingLeft(2)
)

func runListener() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	if config.Topic == "" {
		return fmt.Errorf("a topic is required, set --topic or NTFY_TOPIC")
	}
	if config.DebugMode {
		log.SetLevel(log.DebugLevel)
	}

	if err := ensureToken(config); err != nil {
		return err
	}

	logger, err := core.InitLogger(config.LogFilePath, config.DebugMode)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	subscriber := core.NewSubscriber(config.ServerURL, config.Topic, config.Token, logger)
	messages, err := subscriber.Listen(ctx)
	if err != nil {
		return err
	}

	log.Info("Listening for messages", "server", config.ServerURL, "topic", config.Topic)

	for message := range messages {
		printMessage(message)
	}

	log.Info("Listener stopped")
	return nil
}

func printMessage(message core.Message) {
	title := message.Title
	if title == "" {
		title = message.Topic
	}
	timestamp := time.Unix(message.Time, 0).Local().Format("15:04:05")

	fmt.Printf("\n%s %s\n", titleStyle.Render(title), metaStyle.Render(timestamp))

	if core.HasMarkup(message.Message) {
		fmt.Printf("%s\n", markdown.Render(message.Message, 80, 2))
	} else if message.Message != "" {
		fmt.Printf("%s\n", bodyStyle.Render(message.Message))
	}

	if len(message.Tags) > 0 {
		fmt.Printf("%s\n", metaStyle.Render("tags: "+strings.Join(message.Tags, ", ")))
	}
	for _, action := range message.Actions {
		if action.URL != "" {
			fmt.Printf("%s\n", metaStyle.Render(fmt.Sprintf("[%s] %s", action.Label, action.URL)))
		}
	}
}
