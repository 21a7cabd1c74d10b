package prompt

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPromptsHaveBlanks(t *testing.T) {
	for theme, prompts := range builtin {
		for _, text := range prompts {
			assert.NoError(t, Validate(Template{Text: text, Theme: theme}), "%s: %q", theme, text)
		}
	}
	assert.NoError(t, Validate(Default))
}

func TestTemplateBlanks(t *testing.T) {
	assert.Equal(t, 0, Template{Text: "no blanks"}.Blanks())
	assert.Equal(t, 2, Template{Text: "a " + Blank + " and a " + Blank}.Blanks())
}

func TestCatalogDoesNotRepeatWithinDeck(t *testing.T) {
	c := NewCatalog(rand.New(rand.NewSource(1)))
	n := len(builtin["office"])
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		p, err := c.Prompt(context.Background(), "office")
		require.NoError(t, err)
		assert.Equal(t, "office", p.Theme)
		assert.False(t, seen[p.Text], "repeated %q before deck was exhausted", p.Text)
		seen[p.Text] = true
	}
	assert.Len(t, seen, n)

	// next draw reshuffles and still returns something from the theme
	p, err := c.Prompt(context.Background(), "office")
	require.NoError(t, err)
	assert.True(t, seen[p.Text])
}

func TestCatalogUnknownThemeFallsBack(t *testing.T) {
	c := NewCatalog(rand.New(rand.NewSource(1)))
	p, err := c.Prompt(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, p.Theme)
	assert.Contains(t, builtin[DefaultTheme], p.Text)
}

func TestCatalogCancelledContext(t *testing.T) {
	c := NewCatalog(rand.New(rand.NewSource(1)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Prompt(ctx, "food")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCatalogThemes(t *testing.T) {
	c := NewCatalog(rand.New(rand.NewSource(1)))
	assert.Equal(t, []string{"classic", "food", "office", "tech"}, c.Themes())
	assert.True(t, c.HasTheme("tech"))
	assert.False(t, c.HasTheme("space"))
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) CompleteWithSystem(ctx context.Context, model, system, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestAIProvider(t *testing.T) {
	f := &fakeCompleter{reply: "1. \"Never trust a ____ wearing a hat.\"\nHope that helps!"}
	p := NewAIProvider(f, "model", "")
	tpl, err := p.Prompt(context.Background(), "food")
	require.NoError(t, err)
	assert.Equal(t, "Never trust a ____ wearing a hat.", tpl.Text)
	assert.Equal(t, "food", tpl.Theme)
	assert.Contains(t, f.prompt, `"food"`)
}

func TestAIProviderRejectsReplyWithoutBlank(t *testing.T) {
	p := NewAIProvider(&fakeCompleter{reply: "Here is a prompt without blanks"}, "model", "")
	_, err := p.Prompt(context.Background(), "tech")
	assert.ErrorIs(t, err, ErrNoBlank)
}

func TestAIProviderWrapsCompleterError(t *testing.T) {
	boom := errors.New("boom")
	p := NewAIProvider(&fakeCompleter{err: boom}, "model", "")
	_, err := p.Prompt(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}
