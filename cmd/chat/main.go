// chat - terminal client for TechGadgets support
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/techgadgets/support-chat/internal/config"
	"github.com/techgadgets/support-chat/internal/domain"
	"github.com/techgadgets/support-chat/internal/session"
	"github.com/techgadgets/support-chat/internal/transcript"
	"github.com/techgadgets/support-chat/internal/transport"
)

func main() {
	// Log to stderr at warn level so structured logs don't interleave
	// with the conversation.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	transcriptLog, err := transcript.NewLogger(transcript.Config{
		Enabled:       cfg.Transcript.Enabled,
		Dir:           cfg.Transcript.Dir,
		GlobalEnabled: cfg.Transcript.GlobalEnabled,
		GlobalPath:    cfg.Transcript.GlobalPath,
		QueueSize:     cfg.Transcript.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize transcript logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := transcriptLog.Close(); closeErr != nil {
			slog.Warn("failed to close transcript logger", "error", closeErr)
		}
	}()

	client := transport.NewHTTPClient(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	ctrl := session.New(client, cfg.APIBaseURL,
		session.WithLogger(logger),
		session.WithTranscript(transcriptLog),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	warn := color.New(color.FgYellow).SprintFunc()

	// One-shot reachability probe; chatting is allowed either way.
	go func() {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.HealthTimeout)
		defer cancel()
		if ctrl.ProbeHealth(probeCtx) == session.ReachabilityDown {
			fmt.Println(warn("⚠️  Cannot connect to the support service at " + cfg.APIBaseURL + ". Make sure the server is running."))
		}
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	boldYellow := color.New(color.FgYellow, color.Bold).SprintFunc()

	fmt.Println(boldGreen("Welcome to TechGadgets Support!"))
	fmt.Println("How can I help you today?")
	fmt.Println("Type your message and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil {
		snap := ctrl.Snapshot()
		if snap.AwaitingPhone {
			fmt.Print(boldYellow("Phone number: "))
		} else {
			fmt.Print(boldGreen("You: "))
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "exit") {
			break
		}

		before := len(ctrl.Snapshot().Messages)
		if snap.AwaitingPhone {
			ctrl.SubmitPhone(ctx, line)
		} else {
			ctrl.SubmitMessage(ctx, line)
		}

		after := ctrl.Snapshot()
		for _, msg := range after.Messages[before:] {
			if msg.Role != domain.RoleAssistant {
				continue
			}
			fmt.Println(boldCyan("Assistant: ") + msg.Content)
		}
		fmt.Println()
	}

	fmt.Println("Goodbye!")
}
