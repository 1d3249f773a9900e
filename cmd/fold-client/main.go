// ABOUTME: CLI for chatting with agents through a fold gateway.
// ABOUTME: One-shot and REPL chat plus session lifecycle commands over WebSocket.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/fold-client/internal/agent"
	"github.com/2389/fold-client/internal/config"
	"github.com/2389/fold-client/internal/gateway"
	"github.com/2389/fold-client/internal/identity"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(setupLogger(cfg.Logging))

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "chat":
		err = cmdChat(cfg, args)
	case "history":
		err = cmdHistory(cfg, args)
	case "reset":
		err = cmdSessionOp(cfg, "reset", args)
	case "compact":
		err = cmdSessionOp(cfg, "compact", args)
	case "abort":
		err = cmdSessionOp(cfg, "abort", args)
	case "status":
		err = cmdStatus(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: fold-client <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  chat <session-key> [msg]   Chat with an agent (REPL if no message)")
	fmt.Println("  history <session-key> [n]  Show the last n history records (default 20)")
	fmt.Println("  reset <session-key>        Reset the session's conversation state")
	fmt.Println("  compact <session-key>      Compact the session's context")
	fmt.Println("  abort <session-key>        Abort the session's in-flight run")
	fmt.Println("  status <session-key>...    Resolve session status (concurrent)")
	fmt.Println()
	yellow.Println("Session keys have the form agent:{agentId}:{sessionName}, e.g. agent:main:main")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  FOLD_GATEWAY_URL  Gateway WebSocket URL (default: ws://localhost:18789/gateway)")
	fmt.Println("  FOLD_TOKEN        Bearer token for the gateway")
	fmt.Println("  FOLD_CONFIG       Path to a YAML config file")
	fmt.Println("  FOLD_PROFILES     Path to a TOML profiles file")
	fmt.Println("  FOLD_PROFILE      Profile name to select from FOLD_PROFILES")
}

// loadConfig assembles configuration from FOLD_CONFIG (when set),
// environment defaults, and an optional profile overlay.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if path := os.Getenv("FOLD_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if profilesPath := os.Getenv("FOLD_PROFILES"); profilesPath != "" {
		name := os.Getenv("FOLD_PROFILE")
		if name == "" {
			return nil, fmt.Errorf("FOLD_PROFILE is required when FOLD_PROFILES is set")
		}
		profiles, err := config.LoadProfiles(profilesPath)
		if err != nil {
			return nil, err
		}
		if err := profiles.Apply(cfg, name); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// connect loads the device identity, resolves the auth token, and
// establishes the gateway connection.
func connect(ctx context.Context, cfg *config.Config) (*gateway.Client, func(), error) {
	repo, err := identity.NewSQLiteRepository(cfg.Identity.Path)
	if err != nil {
		return nil, nil, err
	}

	id, err := repo.LoadOrCreate(ctx)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}

	token := identity.ResolveToken(cfg.Gateway.Token, id)
	if exp, ok := identity.TokenExpiry(token); ok && time.Now().After(exp) {
		color.Yellow("Warning: token expired %s\n", exp.Format(time.RFC3339))
	}

	client := gateway.NewClient(gateway.Config{
		URL:         cfg.Gateway.URL,
		Token:       token,
		CallTimeout: cfg.Gateway.CallTimeout,
	})
	if err := client.Connect(ctx); err != nil {
		repo.Close()
		return nil, nil, err
	}

	cleanup := func() {
		client.Close()
		repo.Close()
	}
	return client, cleanup, nil
}

func cmdChat(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: chat <session-key> [message]")
	}
	sessionKey := args[0]

	ctx := context.Background()
	client, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := agent.NewOrchestrator(client, slog.Default())
	opts := agent.ExecuteOptions{Timeout: cfg.Gateway.ExecuteTimeout}

	if len(args) >= 2 {
		message := strings.Join(args[1:], " ")
		return chatOneShot(ctx, orch, sessionKey, message, opts)
	}

	return chatREPL(ctx, orch, sessionKey, opts)
}

// chatOneShot streams a single exchange, printing deltas as they arrive.
func chatOneShot(ctx context.Context, orch *agent.Orchestrator, sessionKey, message string, opts agent.ExecuteOptions) error {
	events, err := orch.ExecuteStream(ctx, sessionKey, message, opts)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	for ev := range events {
		switch ev.Stream {
		case gateway.StreamAssistant:
			fmt.Print(ev.Data.Delta)
		case gateway.StreamThinking:
			gray.Print(ev.Data.Delta)
		case gateway.StreamTool:
			cyan.Printf("\n[tool: %s]\n", ev.Data.Name)
		case gateway.StreamLifecycle:
			switch ev.Data.Phase {
			case gateway.PhaseEnd:
				fmt.Println()
				if ev.Data.Usage != nil {
					gray.Printf("(%d in / %d out tokens)\n",
						ev.Data.Usage.InputTokens, ev.Data.Usage.OutputTokens)
				}
			case gateway.PhaseError:
				fmt.Println()
				color.Red("agent error: %s\n", ev.Data.Error)
			}
		}
	}
	return nil
}

// chatREPL runs an interactive loop of non-streaming executions.
func chatREPL(ctx context.Context, orch *agent.Orchestrator, sessionKey string, opts agent.ExecuteOptions) error {
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	fmt.Printf("Chatting with %s (ctrl-d to exit)\n", sessionKey)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		green.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		result, err := orch.Execute(ctx, sessionKey, message, opts)
		if err != nil {
			return err
		}
		if !result.Success {
			color.Red("agent error: %s\n", result.ErrorMessage)
			continue
		}
		fmt.Println(result.Content)
		gray.Printf("(%dms)\n", result.LatencyMs)
	}
}

func cmdHistory(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: history <session-key> [limit]")
	}
	sessionKey := args[0]

	limit := 20
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return fmt.Errorf("limit must be a positive integer, got %q", args[1])
		}
		limit = n
	}

	ctx := context.Background()
	client, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := agent.NewOrchestrator(client, slog.Default())
	records, err := orch.History(ctx, sessionKey, limit)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	for _, rec := range records {
		if rec.Role == "user" {
			green.Printf("%s: ", rec.Role)
		} else {
			fmt.Printf("%s: ", rec.Role)
		}
		fmt.Println(rec.Content)
	}
	return nil
}

func cmdSessionOp(cfg *config.Config, op string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <session-key>", op)
	}
	sessionKey := args[0]

	ctx := context.Background()
	client, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := agent.NewOrchestrator(client, slog.Default())

	switch op {
	case "reset":
		err = orch.Reset(ctx, sessionKey)
	case "compact":
		err = orch.Compact(ctx, sessionKey)
	case "abort":
		err = orch.Abort(ctx, sessionKey)
	}
	if err != nil {
		return err
	}

	color.Green("%s: ok\n", op)
	return nil
}

// cmdStatus resolves every given session concurrently over the one
// shared connection.
func cmdStatus(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: status <session-key>...")
	}

	ctx := context.Background()
	client, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	orch := agent.NewOrchestrator(client, slog.Default())

	statuses := make([]*agent.SessionStatus, len(args))
	g, gctx := errgroup.WithContext(ctx)
	for i, sessionKey := range args {
		i, sessionKey := i, sessionKey
		g.Go(func() error {
			status, err := orch.Resolve(gctx, sessionKey)
			if err != nil {
				return fmt.Errorf("%s: %w", sessionKey, err)
			}
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, sessionKey := range args {
		switch statuses[i].Status {
		case "running":
			color.Cyan("%s: running\n", sessionKey)
		case "error":
			color.Red("%s: error\n", sessionKey)
		default:
			fmt.Printf("%s: %s\n", sessionKey, statuses[i].Status)
		}
	}
	return nil
}
