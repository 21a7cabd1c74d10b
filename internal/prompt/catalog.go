package prompt

import (
	"context"
	"math/rand"
	"sort"
	"sync"
)

const DefaultTheme = "classic"

var builtin = map[string][]string{
	"classic": {
		"The worst thing to say at a wedding: " + Blank,
		"A terrible name for a pet goldfish: " + Blank,
		"The secret ingredient in grandma's soup is " + Blank,
		"What aliens would find most confusing about humans: " + Blank,
		"Never bring " + Blank + " to a birthday party.",
		"The eighth wonder of the world: " + Blank,
		"A rejected superhero power: " + Blank,
		"The real reason dinosaurs went extinct: " + Blank,
	},
	"office": {
		"The subject line that gets everyone to read the email: " + Blank,
		"What the printer is actually thinking: " + Blank,
		"An unusual item to bring to the team standup: " + Blank,
		"The new HR policy nobody asked for: " + Blank,
		"The worst possible answer to \"any questions?\": " + Blank,
		"Why the meeting could have been an email: " + Blank,
	},
	"food": {
		"A pizza topping that should be illegal: " + Blank,
		"The chef's special tonight is " + Blank + " with a side of " + Blank + ".",
		"What's really in the mystery meat: " + Blank,
		"A cereal mascot that never made it: " + Blank,
		"The worst flavor of ice cream: " + Blank,
		"A dish you should never serve on a first date: " + Blank,
	},
	"tech": {
		"The error message nobody wants to see: " + Blank,
		"The next big startup idea: Uber, but for " + Blank,
		"What the cloud is actually made of: " + Blank,
		"A feature nobody asked for in the next phone: " + Blank,
		"The real reason the deploy failed on Friday: " + Blank,
		"My password is " + Blank + ", please don't tell anyone.",
	},
}

// Catalog hands out built-in prompts per theme. Each theme is a shuffled deck
// drawn without repetition; an exhausted deck is reshuffled.
type Catalog struct {
	mu     sync.Mutex
	rng    *rand.Rand
	themes map[string][]string
	decks  map[string][]string
}

func NewCatalog(rng *rand.Rand) *Catalog {
	themes := make(map[string][]string, len(builtin))
	for k, v := range builtin {
		themes[k] = append([]string(nil), v...)
	}
	return &Catalog{rng: rng, themes: themes, decks: make(map[string][]string)}
}

// Prompt draws the next prompt for theme. Unknown themes use DefaultTheme.
func (c *Catalog) Prompt(ctx context.Context, theme string) (Template, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.themes[theme]; !ok {
		theme = DefaultTheme
	}
	deck := c.decks[theme]
	if len(deck) == 0 {
		deck = append([]string(nil), c.themes[theme]...)
		c.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	}
	text := deck[len(deck)-1]
	c.decks[theme] = deck[:len(deck)-1]
	return Template{Text: text, Theme: theme}, nil
}

// Themes lists the available theme ids in sorted order.
func (c *Catalog) Themes() []string {
	out := make([]string, 0, len(c.themes))
	for k := range c.themes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasTheme reports whether theme is part of the catalog.
func (c *Catalog) HasTheme(theme string) bool {
	_, ok := c.themes[theme]
	return ok
}
