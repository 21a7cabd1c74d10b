package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiliankoe/chaosdash/internal/ai"
	"github.com/rs/zerolog/log"
)

const DefaultSystemPrompt = "You write short, funny fill-in-the-blank prompts for a party game. " +
	"Reply with exactly one prompt and nothing else. Mark every blank with ____ (four underscores)."

// AIProvider asks an LLM for a fresh prompt on every call.
type AIProvider struct {
	completer    ai.Completer
	model        string
	systemPrompt string
}

func NewAIProvider(c ai.Completer, model, systemPrompt string) *AIProvider {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &AIProvider{completer: c, model: model, systemPrompt: systemPrompt}
}

func (p *AIProvider) Prompt(ctx context.Context, theme string) (Template, error) {
	if theme == "" {
		theme = DefaultTheme
	}
	ask := fmt.Sprintf("Write one party game prompt about the theme %q.", theme)
	text, err := p.completer.CompleteWithSystem(ctx, p.model, p.systemPrompt, ask)
	if err != nil {
		return Template{}, fmt.Errorf("generate prompt: %w", err)
	}
	t := Template{Text: cleanReply(text), Theme: theme}
	if err := Validate(t); err != nil {
		log.Debug().Str("theme", theme).Str("reply", text).Msg("discarding generated prompt")
		return Template{}, err
	}
	return t, nil
}

// cleanReply strips quotes and list markers models like to add.
func cleanReply(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "-*0123456789. ")
	return strings.Trim(s, "\"“” ")
}
