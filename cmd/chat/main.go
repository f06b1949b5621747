// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command chat is a line-oriented client for a local inference server.
// It streams answers live, splits out model reasoning, and accepts PDF,
// image, and text attachments.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jeranaias/ollamachat/internal/attach"
	"github.com/jeranaias/ollamachat/internal/catalog"
	"github.com/jeranaias/ollamachat/internal/config"
	"github.com/jeranaias/ollamachat/internal/engine"
	"github.com/jeranaias/ollamachat/internal/model"
	"github.com/jeranaias/ollamachat/internal/ollama"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := ollama.NewClient(&ollama.ClientConfig{BaseURL: cfg.Server.URL}, logger)

	// Ctrl+C is handled per turn (cancel the stream, stay in the REPL), so
	// the root context stays alive for the whole session.
	ctx := context.Background()

	if cfg.Server.Autostart {
		if err := client.EnsureRunning(ctx); err != nil {
			logger.Warn("server not running and autostart failed", zap.Error(err))
		}
	}

	cat := catalog.New(client, logger)
	if cfg.Chat.Model != "" {
		cat.Select(cfg.Chat.Model)
	}
	if _, err := cat.Refresh(ctx); err != nil {
		if errors.Is(err, catalog.ErrNoModels) {
			fmt.Println("The server has no models installed. Pull one first (e.g. `ollama pull llama3.2`).")
		} else {
			fmt.Printf("Could not reach the server at %s: %v\n", cfg.Server.URL, err)
			fmt.Println("Continuing offline; use /models to retry once the server is up.")
		}
	}

	eng := engine.New(client, cat, engine.Config{
		SystemPrompt:  cfg.Chat.SystemPrompt,
		DocumentModel: cfg.Chat.DocumentModel,
		Options:       generationOptions(cfg.Generation),
	}, logger)

	if path, err := config.Path(); err == nil {
		watcher, werr := config.NewWatcher(path, func(next *config.Config) {
			if next.Chat.Model != "" {
				cat.Select(next.Chat.Model)
			}
		}, logger)
		if werr == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	return repl(ctx, eng, cat, cfg)
}

// newLogger builds the zap logger from the log config.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	if cfg.Path != "" {
		zcfg.OutputPaths = []string{cfg.Path}
	}
	return zcfg.Build()
}

// generationOptions maps config sampling parameters onto the wire options.
// Returns nil when everything is unset so the request carries no options
// block at all.
func generationOptions(g config.GenerationConfig) *ollama.Options {
	if g.Temperature == 0 && g.TopK == 0 && g.TopP == 0 &&
		g.RepeatPenalty == 0 && g.NumCtx == 0 && g.NumPredict == 0 && g.Seed == 0 {
		return nil
	}
	return &ollama.Options{
		Temperature:   g.Temperature,
		TopK:          g.TopK,
		TopP:          g.TopP,
		RepeatPenalty: g.RepeatPenalty,
		NumCtx:        g.NumCtx,
		NumPredict:    g.NumPredict,
		Seed:          g.Seed,
	}
}

// =============================================================================
// REPL
// =============================================================================

func repl(ctx context.Context, eng *engine.Engine, cat *catalog.Catalog, cfg *config.Config) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("ollamachat - type a message, /help for commands")
	if selected := cat.Selected(); selected != "" {
		fmt.Printf("model: %s\n", selected)
	}

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := command(ctx, input, eng, cat, cfg); quit {
				return nil
			}
			continue
		}

		sendTurn(ctx, eng, input)
	}
}

// sendTurn runs one streaming text turn, printing deltas as they arrive.
// Ctrl+C cancels the stream without leaving the REPL.
func sendTurn(ctx context.Context, eng *engine.Engine, prompt string) {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	go func() {
		select {
		case <-interrupt:
			eng.Cancel()
		case <-turnCtx.Done():
		}
	}()

	printed := 0
	inReasoning := false
	eng.OnUpdate = func(answer, reasoning string) {
		if reasoning != "" && answer == "" && !inReasoning {
			fmt.Print("(thinking...)")
			inReasoning = true
			return
		}
		if inReasoning && answer != "" {
			fmt.Print("\r              \r")
			inReasoning = false
		}
		if len(answer) > printed {
			fmt.Print(answer[printed:])
			printed = len(answer)
		}
	}
	defer func() { eng.OnUpdate = nil }()

	if err := eng.Send(turnCtx, prompt); err != nil {
		if errors.Is(err, engine.ErrBusy) {
			fmt.Println("still responding; wait or press Ctrl+C")
			return
		}
		fmt.Printf("\n%v\n", err)
		return
	}

	fmt.Println()
	msgs := eng.Messages()
	if len(msgs) > 0 {
		if stats := msgs[len(msgs)-1].FormatStats(); stats != "" {
			fmt.Println(stats)
		}
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

func command(ctx context.Context, input string, eng *engine.Engine, cat *catalog.Catalog, cfg *config.Config) bool {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(`commands:
  /models              list available models
  /model <name>        switch model
  /attach <files...>   attach PDFs, images, or text files; prompt follows
  /reasoning           show the last answer's reasoning
  /reset               clear the conversation and document context
  /quit                exit`)

	case "/models":
		models, err := cat.Refresh(ctx)
		if err != nil {
			fmt.Printf("could not list models: %v\n", err)
			break
		}
		for _, m := range models {
			marker := "  "
			if m.Name == cat.Selected() {
				marker = "* "
			}
			fmt.Printf("%s%-30s %8s\n", marker, m.Name, m.FormatSize())
		}

	case "/model":
		if len(fields) < 2 {
			fmt.Println("usage: /model <name>")
			break
		}
		cat.Select(fields[1])
		fmt.Printf("model: %s\n", fields[1])

	case "/attach":
		if len(fields) < 2 {
			fmt.Println("usage: /attach <files...> [prompt]")
			break
		}
		attachTurn(ctx, eng, fields[1:], cfg.Generation.Temperature)

	case "/reasoning":
		printLastReasoning(eng)

	case "/reset":
		eng.Reset()
		fmt.Println("conversation cleared")

	default:
		fmt.Printf("unknown command %s (try /help)\n", fields[0])
	}
	return false
}

// attachTurn splits args into existing file paths and trailing prompt words,
// then runs an attachment turn.
func attachTurn(ctx context.Context, eng *engine.Engine, args []string, temperature float64) {
	var attachments []model.Attachment
	var promptWords []string

	for i, arg := range args {
		data, err := os.ReadFile(arg)
		if err != nil {
			// First non-file argument starts the prompt.
			promptWords = args[i:]
			break
		}
		attachments = append(attachments, attach.New(filepath.Base(arg), data))
	}

	if len(attachments) == 0 {
		fmt.Println("no readable files given")
		return
	}

	content, metrics, _, err := eng.Respond(ctx, strings.Join(promptWords, " "), attachments, temperature)
	if err != nil {
		fmt.Printf("%v\n", err)
		return
	}

	fmt.Println(content)
	if metrics != nil {
		fmt.Println(metrics.Format())
	}
}

func printLastReasoning(eng *engine.Engine) {
	msgs := eng.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			if msgs[i].Reasoning != nil && *msgs[i].Reasoning != "" {
				fmt.Println(*msgs[i].Reasoning)
			} else {
				fmt.Println("no reasoning captured for the last answer")
			}
			return
		}
	}
	fmt.Println("no assistant messages yet")
}
