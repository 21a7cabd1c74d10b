package game

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileExporter appends a plain-text summary of each scored round to a file.
type FileExporter struct {
	path string
	mu   sync.Mutex
}

func NewFileExporter(path string) *FileExporter {
	return &FileExporter{path: path}
}

func (e *FileExporter) ExportRound(res RoundResults) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	if err := WriteRound(f, res, time.Now()); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// WriteRound renders one round. The first round of a room gets a header with
// the player list.
func WriteRound(w io.Writer, res RoundResults, at time.Time) error {
	names := make(map[string]string, len(res.Players))
	for _, p := range res.Players {
		names[p.ID] = p.Name
	}
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return "Unknown"
	}

	var sb strings.Builder
	if res.Round == 1 {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Chaosdash Results - Room %s\n", res.RoomID)
		fmt.Fprintf(&sb, "Started: %s\n", at.Format("2006-01-02 15:04:05"))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
		sb.WriteString("Players:\n")
		for _, p := range res.Players {
			fmt.Fprintf(&sb, "- %s %s\n", p.Avatar, p.Name)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Round %d: %q\n", res.Round, res.Prompt)
	if res.Rule != nil {
		fmt.Fprintf(&sb, "Chaos: %s\n", res.Rule.Announcement)
	}
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	for _, a := range res.Answers {
		if a.Text != a.Original {
			fmt.Fprintf(&sb, "- %s: %q (was %q)\n", name(a.PlayerID), a.Text, a.Original)
			continue
		}
		fmt.Fprintf(&sb, "- %s: %q\n", name(a.PlayerID), a.Text)
	}

	if len(res.Votes) > 0 {
		voters := make(map[string][]string)
		for voter, target := range res.Votes {
			voters[target] = append(voters[target], name(voter))
		}
		sb.WriteString("\nVotes:\n")
		for _, p := range res.Players {
			vs := voters[p.ID]
			if len(vs) == 0 {
				continue
			}
			sort.Strings(vs)
			fmt.Fprintf(&sb, "- %s: %d vote(s) from %s\n", p.Name, res.Tallies[p.ID], strings.Join(vs, ", "))
		}
	}
	if res.Winner != "" {
		fmt.Fprintf(&sb, "\nWinner: %s\n", name(res.Winner))
	}

	players := append([]Player(nil), res.Players...)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })
	sb.WriteString("\nScores after this round:\n")
	for _, p := range players {
		fmt.Fprintf(&sb, "- %s: %d points (%+d), %d coins\n", p.Name, p.Score, res.Deltas[p.ID], p.Currency)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
