// Package prompt supplies the fill-in-the-blank prompts players answer.
package prompt

import (
	"context"
	"errors"
	"strings"
)

// Blank marks a spot in a prompt that players fill in.
const Blank = "____"

// Template is issued to a round and never changed afterwards.
type Template struct {
	Text  string `json:"text"`
	Theme string `json:"theme"`
}

// Blanks counts the blank markers in the template.
func (t Template) Blanks() int {
	return strings.Count(t.Text, Blank)
}

// Provider returns one prompt for a theme.
type Provider interface {
	Prompt(ctx context.Context, theme string) (Template, error)
}

// Default is used whenever a provider fails or is too slow.
var Default = Template{Text: "The real reason the party ended early: " + Blank, Theme: DefaultTheme}

var ErrNoBlank = errors.New("prompt has no blank marker")

// Validate reports whether t can be issued to a round.
func Validate(t Template) error {
	if strings.TrimSpace(t.Text) == "" || t.Blanks() == 0 {
		return ErrNoBlank
	}
	return nil
}
