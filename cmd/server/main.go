package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/chaosdash/internal/ai/ollama"
	"github.com/kiliankoe/chaosdash/internal/ai/openai"
	"github.com/kiliankoe/chaosdash/internal/api"
	"github.com/kiliankoe/chaosdash/internal/chaos"
	"github.com/kiliankoe/chaosdash/internal/config"
	"github.com/kiliankoe/chaosdash/internal/game"
	"github.com/kiliankoe/chaosdash/internal/prompt"
	"github.com/kiliankoe/chaosdash/internal/ws"
)

const version = "v0.3.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
		envFile     = flag.String("env-file", ".env", "Optional dotenv file to load before reading the environment")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Chaosdash - Real-time fill-in-the-blank party game

Usage: %s [options]

Options:
  -h, --help          Show this help message
  -v, --version       Show version information
  --port PORT         Port to listen on (default: 8080 or PORT env var)
  --env-file FILE     Dotenv file to load (default: .env, ignored when missing)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  LOG_LEVEL           debug, info, warn or error (default: info)
  MIN_PLAYERS         Players needed to start a game (default: 2)
  MAX_PLAYERS         Players allowed per room, 0 for no limit (default: 0)
  GRACE_DELAY         Pause before a finished phase advances (default: 1500ms)
  PROMPT_TIMEOUT      How long to wait for a prompt provider (default: 2s)
  EMPTY_ROOM_TTL      How long a room nobody joined is kept (default: 2m)
  MAX_ANSWER_LEN      Longest accepted answer in characters (default: 140)
  VOTERS_MUST_ANSWER  Only players who answered may vote (default: true)
  CHAOS_PROBABILITY   Chance of a chaos rule from round 2 on (default: 0.35)
  CHAOS_SEED          Seed for chaos picks, 0 for random (default: 0)
  PROMPT_SOURCE       "catalog", "openai" or "ollama" (default: catalog)
  DEFAULT_MODEL       AI model for generated prompts (default: gpt-3.5-turbo)
  SYSTEM_PROMPT       System prompt for generated prompts
  OPENAI_API_KEY      OpenAI API key (required for PROMPT_SOURCE=openai)
  OPENAI_BASE_URL     Custom OpenAI API base URL (optional)
  OLLAMA_HOST         Ollama host URL (default: http://localhost:11434)
  EXPORT_ENABLED      Append round results to a file (default: false)
  EXPORT_FILE         Path of the results file (default: ./chaosdash-results.txt)
  ADMIN_USER          Admin username for basic auth
  ADMIN_PASS          Admin password for basic auth
  CORS_ORIGINS        Comma separated allowed origins (default: any)
  PUBLIC_URL          Base URL encoded into join QR codes
  COMMAND_RATE        Commands per second per connection (default: 5)
  COMMAND_BURST       Command burst per connection (default: 10)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Chaosdash %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Str("file", *envFile).Msg("failed to load env file")
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Prompts
	catalogRand, err := chaos.NewRand(0)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed prompt catalog")
	}
	catalog := prompt.NewCatalog(catalogRand)
	var prompts prompt.Provider = catalog
	switch cfg.PromptSource {
	case "openai":
		prompts = prompt.NewAIProvider(openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL), cfg.DefaultModel, cfg.SystemPrompt)
	case "ollama":
		prompts = prompt.NewAIProvider(ollama.New(cfg.OllamaHost), cfg.DefaultModel, cfg.SystemPrompt)
	}

	// Chaos
	chaosRand, err := chaos.NewRand(cfg.ChaosSeed)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed chaos modifier")
	}
	modifier := chaos.NewModifier(cfg.ChaosProbability, chaosRand)

	// Rooms, rounds and the connection hub
	hub := ws.NewHub()
	reg := game.NewRegistry(cfg.GameSettings(), hub)
	defer reg.Close()
	machine := game.NewMachine(reg, prompts, modifier)
	if cfg.ExportEnabled {
		machine.SetExporter(game.NewFileExporter(cfg.ExportFile))
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.Logger())
	r.Use(api.CORS(cfg.CORSOrigins))

	api.New(reg, catalog, api.Options{
		AdminUser:   cfg.AdminUser,
		AdminPass:   cfg.AdminPass,
		JoinURL:     cfg.JoinURL,
		Connections: hub.Connections,
	}).Register(r)
	if cfg.AdminEnabled() {
		log.Info().Msg("admin routes enabled")
	}

	dispatcher := ws.NewDispatcher(reg, machine, hub, ws.Limits{Rate: cfg.CommandRate, Burst: cfg.CommandBurst})
	io := ws.Mount(r, dispatcher)
	defer io.Close()
	r.GET("/ws/:roomId", ws.NewRawServer(dispatcher, originChecker(cfg.CORSOrigins)).Handle)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info().Str("port", cfg.Port).Str("prompts", cfg.PromptSource).Float64("chaos", cfg.ChaosProbability).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// originChecker restricts raw WebSocket upgrades to the CORS origins.
func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}
