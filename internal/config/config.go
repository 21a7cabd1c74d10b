package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kiliankoe/chaosdash/internal/game"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	MinPlayers       int           `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers       int           `env:"MAX_PLAYERS" envDefault:"0"`
	GraceDelay       time.Duration `env:"GRACE_DELAY" envDefault:"1500ms"`
	PromptTimeout    time.Duration `env:"PROMPT_TIMEOUT" envDefault:"2s"`
	EmptyRoomTTL     time.Duration `env:"EMPTY_ROOM_TTL" envDefault:"2m"`
	MaxAnswerLen     int           `env:"MAX_ANSWER_LEN" envDefault:"140"`
	VotersMustAnswer bool          `env:"VOTERS_MUST_ANSWER" envDefault:"true"`

	ChaosProbability float64 `env:"CHAOS_PROBABILITY" envDefault:"0.35"`
	ChaosSeed        int64   `env:"CHAOS_SEED" envDefault:"0"`

	PromptSource  string `env:"PROMPT_SOURCE" envDefault:"catalog"` // catalog, openai or ollama
	DefaultModel  string `env:"DEFAULT_MODEL" envDefault:"gpt-3.5-turbo"`
	SystemPrompt  string `env:"SYSTEM_PROMPT"`
	OpenAIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OllamaHost    string `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`

	ExportEnabled bool   `env:"EXPORT_ENABLED" envDefault:"false"`
	ExportFile    string `env:"EXPORT_FILE" envDefault:"./chaosdash-results.txt"`

	AdminUser   string   `env:"ADMIN_USER"`
	AdminPass   string   `env:"ADMIN_PASS"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`
	PublicURL   string   `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	CommandRate  float64 `env:"COMMAND_RATE" envDefault:"5"`
	CommandBurst int     `env:"COMMAND_BURST" envDefault:"10"`
}

// FromEnv parses the configuration from the environment.
func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	switch c.PromptSource {
	case "catalog", "openai", "ollama":
	default:
		return fmt.Errorf("PROMPT_SOURCE must be catalog, openai or ollama, got %q", c.PromptSource)
	}
	if c.PromptSource == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("PROMPT_SOURCE=openai requires OPENAI_API_KEY")
	}
	if c.ChaosProbability < 0 || c.ChaosProbability > 1 {
		return fmt.Errorf("CHAOS_PROBABILITY must be within [0,1], got %v", c.ChaosProbability)
	}
	if c.MinPlayers < 1 {
		return fmt.Errorf("MIN_PLAYERS must be at least 1, got %d", c.MinPlayers)
	}
	if c.MaxPlayers != 0 && c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("MAX_PLAYERS (%d) is below MIN_PLAYERS (%d)", c.MaxPlayers, c.MinPlayers)
	}
	return nil
}

// AdminEnabled reports whether the admin routes should be mounted.
func (c Config) AdminEnabled() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}

// JoinURL is the link encoded into a room's QR code.
func (c Config) JoinURL(roomID string) string {
	return strings.TrimRight(c.PublicURL, "/") + "/?room=" + roomID
}

// GameSettings maps the environment onto the game tunables.
func (c Config) GameSettings() game.Settings {
	return game.Settings{
		MinPlayers:       c.MinPlayers,
		MaxPlayers:       c.MaxPlayers,
		GraceDelay:       c.GraceDelay,
		PromptTimeout:    c.PromptTimeout,
		EmptyRoomTTL:     c.EmptyRoomTTL,
		MaxAnswerLen:     c.MaxAnswerLen,
		VotersMustAnswer: c.VotersMustAnswer,
	}
}
