package game

import "github.com/kiliankoe/chaosdash/internal/chaos"

// tally counts votes per target.
func tally(votes map[string]string) map[string]int {
	out := make(map[string]int, len(votes))
	for _, target := range votes {
		out[target]++
	}
	return out
}

// pickWinner walks candidates in join order so the earliest joiner keeps
// ties. Normal polarity needs at least one vote. Reversed polarity picks the
// lowest tally, zero included.
func pickWinner(r *Room, tallies map[string]int, polarity chaos.Polarity) string {
	winner, best := "", 0
	for _, id := range r.order {
		if !r.onBallot(id) {
			continue
		}
		n := tallies[id]
		switch polarity {
		case chaos.PolarityReversed:
			if winner == "" || n < best {
				winner, best = id, n
			}
		default:
			if n > best {
				winner, best = id, n
			}
		}
	}
	return winner
}

// scoreRound applies the round's points to the room and returns the full
// results. Scores never drop below zero; deltas report what was applied.
func scoreRound(r *Room) RoundResults {
	tallies := tally(r.Votes)
	mult := r.Rule.PointMultiplier()
	reversed := r.Rule.VotingPolarity() == chaos.PolarityReversed

	res := RoundResults{
		RoomID:   r.ID,
		Round:    r.Round,
		Winner:   pickWinner(r, tallies, r.Rule.VotingPolarity()),
		Tallies:  tallies,
		Deltas:   make(map[string]int, len(r.Players)),
		Answers:  append([]Answer{}, r.Answers...),
		Votes:    make(map[string]string, len(r.Votes)),
		Scores:   make(map[string]int, len(r.Players)),
		Currency: make(map[string]int, len(r.Players)),
	}
	if r.Prompt != nil {
		res.Prompt = r.Prompt.Text
	}
	if r.Rule != nil {
		rule := *r.Rule
		res.Rule = &rule
	}
	for k, v := range r.Votes {
		res.Votes[k] = v
	}

	for _, id := range r.order {
		p := r.Players[id]
		delta := tallies[id] * mult
		if reversed {
			delta = -delta
		}
		score := p.Score + delta
		if score < 0 {
			score = 0
		}
		applied := score - p.Score
		p.Score = score
		if applied > 0 {
			p.Currency += 10 * applied
		}
		res.Deltas[id] = applied
		res.Scores[id] = p.Score
		res.Currency[id] = p.Currency
	}
	res.Players = r.players()
	return res
}
