// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - serve command: run the chat backend.
//
// Examples:
//   chatterm serve                       Ollama on 127.0.0.1:5000
//   chatterm serve --provider gemini     Gemini (GEMINI_API_KEY from env or .env)
//   chatterm serve --host 0.0.0.0 --port 8080

package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/chatterm/internal/assistant"
	"github.com/jeranaias/chatterm/internal/config"
	"github.com/jeranaias/chatterm/internal/gemini"
	"github.com/jeranaias/chatterm/internal/ollama"
	"github.com/jeranaias/chatterm/internal/server"
	"github.com/jeranaias/chatterm/internal/websearch"
)

const (
	// shutdownTimeout bounds the wait for in-flight requests on exit.
	shutdownTimeout = 10 * time.Second

	// Chat memory kept per client IP.
	historyTurns    = 10
	historySessions = 1000
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host     string
		port     int
		provider string
		envFile  string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat backend (POST /chat, POST /search)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadDotEnv(envFile); err != nil {
				return NewCommandError("serve", "load", "cannot read "+envFile, err)
			}
			a.cfg.ApplyEnvOverrides()

			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("provider") {
				a.cfg.Server.Provider = provider
			}
			if err := a.cfg.Validate(); err != nil {
				return NewCommandError("serve", "validate", "invalid configuration", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", server.DefaultPort, "listen port")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider: ollama or gemini")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with GEMINI_API_KEY, PORT, ...")
	return cmd
}

// loadDotEnv loads path into the environment. A missing file is fine.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// serve runs the backend until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	log.SetOutput(a.errOut)

	bot, err := newAssistant(ctx, a.cfg)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:               a.cfg.Server.Addr(),
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		Version:            Version,
	}, bot)

	fmt.Fprintf(a.out, "%s serving on http://%s (provider %s)\n",
		SuccessStyle.Render("✓"), a.cfg.Server.Addr(), bot.ProviderName())

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return NewCommandError("serve", "listen", "server stopped", err)
	}
	fmt.Fprintf(a.out, "stopped after %s\n", formatDurationShort(time.Since(start)))
	return nil
}

// newAssistant wires the configured provider and search backend.
func newAssistant(ctx context.Context, cfg *config.Config) (*assistant.Assistant, error) {
	var provider assistant.Provider

	switch cfg.Server.Provider {
	case "gemini":
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.Gemini.APIKey,
			Model:       cfg.Gemini.Model,
			VisionModel: cfg.Gemini.VisionModel,
		})
		if err != nil {
			return nil, NewCommandError("serve", "connect", "cannot create Gemini client", err)
		}
		provider = assistant.NewGeminiProvider(client)

	default:
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.Ollama.URL,
			DefaultModel: cfg.Ollama.Model,
		})
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.CheckRunning(checkCtx); err != nil {
			log.Printf("OLLAMA_UNAVAILABLE | url=%s err=%v (start it with: ollama serve)", cfg.Ollama.URL, err)
		} else {
			for _, m := range missingOllamaModels(checkCtx, client, cfg.Ollama.Model, cfg.Ollama.VisionModel) {
				log.Printf("OLLAMA_MODEL_MISSING | model=%s (pull it with: ollama pull %s)", m, m)
			}
		}
		cancel()
		provider = assistant.NewOllamaProvider(client, cfg.Ollama.Model, cfg.Ollama.VisionModel)
	}

	opts := assistant.Options{
		MaxSearchResults: cfg.Server.MaxSearchResults,
		History:          assistant.NewHistory(historyTurns, historySessions),
	}
	if cfg.Server.SearchBackend == "duckduckgo" {
		ddg := websearch.NewDuckDuckGo()
		ddg.MaxResults = max(cfg.Server.MaxSearchResults, 5)
		opts.Searcher = ddg
	}
	return assistant.New(provider, opts), nil
}

// missingOllamaModels returns the models that have not been pulled.
// Empty names fall back to the client's default model.
func missingOllamaModels(ctx context.Context, client *ollama.Client, models ...string) []string {
	var missing []string
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m == "" {
			m = client.DefaultModel()
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		if !client.ModelExists(ctx, m) {
			missing = append(missing, m)
		}
	}
	return missing
}
