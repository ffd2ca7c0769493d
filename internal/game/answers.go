// internal/game/answers.go
package game

import (
	"strings"

	"github.com/jason-s-yu/scatter/internal/models"
)

// Submission is one player's answers for the active round, indexed by category.
type Submission struct {
	Player  string
	Team    string
	Answers []string
}

// Aggregator collects a round's submissions behind a barrier that fires once
// every expected player has submitted. It is not safe for concurrent use; the
// owning group's lock guards it.
type Aggregator struct {
	pending  int
	fired    bool
	expected map[string]bool       // players the barrier waits on
	order    []string              // player names in first-arrival order
	subs     map[string]Submission // keyed by player name
}

// NewAggregator returns an aggregator waiting on the named players.
func NewAggregator(expected []string) *Aggregator {
	a := &Aggregator{}
	a.Reset(expected)
	return a
}

// Reset clears all submissions and waits on the named players. Players that
// join afterwards may still submit but are not waited on.
func (a *Aggregator) Reset(expected []string) {
	a.expected = make(map[string]bool, len(expected))
	for _, name := range expected {
		a.expected[name] = true
	}
	a.pending = len(a.expected)
	a.fired = false
	a.order = nil
	a.subs = make(map[string]Submission, len(a.expected))
}

// Expect adds a player to the barrier, e.g. one who joined mid-round. No-op if
// the player is already expected or has already submitted.
func (a *Aggregator) Expect(player string) {
	if _, ok := a.subs[player]; ok || a.expected[player] {
		return
	}
	a.expected[player] = true
	a.pending++
}

// Teams lists the teams that submitted, in first-arrival order.
func (a *Aggregator) Teams() []string {
	seen := make(map[string]bool)
	var out []string
	for _, player := range a.order {
		t := a.subs[player].Team
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Pending is the number of players the barrier is still waiting on.
func (a *Aggregator) Pending() int { return a.pending }

// Submitted reports whether the player already submitted this round.
func (a *Aggregator) Submitted(player string) bool {
	_, ok := a.subs[player]
	return ok
}

// Submit records s. A repeat from the same player replaces their answers but
// does not count toward the barrier again. Returns true exactly once, on the
// submission that satisfies the barrier; after that the aggregator stays
// closed until Reset.
func (a *Aggregator) Submit(s Submission) bool {
	if a.fired {
		return false
	}
	if _, ok := a.subs[s.Player]; ok {
		a.subs[s.Player] = s
		return false
	}
	a.subs[s.Player] = s
	a.order = append(a.order, s.Player)
	if a.expected[s.Player] && a.pending > 0 {
		a.pending--
	}
	return a.tryFire()
}

// Drop releases a player who left before submitting. Returns true if that
// satisfied the barrier for the players who did submit.
func (a *Aggregator) Drop(player string) bool {
	if _, ok := a.subs[player]; ok || !a.expected[player] || a.pending == 0 {
		return false
	}
	delete(a.expected, player)
	a.pending--
	if len(a.subs) == 0 {
		return false
	}
	return a.tryFire()
}

func (a *Aggregator) tryFire() bool {
	if a.pending > 0 || a.fired {
		return false
	}
	a.fired = true
	return true
}

// Canonical picks, for every team and category, the first non-empty answer in
// arrival order. Teams with no submission get empty answers.
func (a *Aggregator) Canonical(teams []string, categoryCount int) map[string][]string {
	out := make(map[string][]string, len(teams))
	for _, t := range teams {
		out[t] = make([]string, categoryCount)
	}
	for _, player := range a.order {
		s := a.subs[player]
		answers, ok := out[s.Team]
		if !ok {
			continue
		}
		for i := 0; i < categoryCount && i < len(s.Answers); i++ {
			if answers[i] != "" {
				continue
			}
			answers[i] = strings.TrimSpace(s.Answers[i])
		}
	}
	return out
}

// CompareAcrossTeams flags every answer given by two or more teams in the same
// category. The flag is applied to all teams holding that answer.
func CompareAcrossTeams(canonical map[string][]string, categoryCount int) map[string][]models.FinalAnswer {
	out := make(map[string][]models.FinalAnswer, len(canonical))
	for team := range canonical {
		out[team] = make([]models.FinalAnswer, categoryCount)
	}
	for i := 0; i < categoryCount; i++ {
		counts := make(map[string]int, len(canonical))
		for _, answers := range canonical {
			if key := answerKey(answers, i); key != "" {
				counts[key]++
			}
		}
		for team, answers := range canonical {
			var ans string
			if i < len(answers) {
				ans = answers[i]
			}
			key := answerKey(answers, i)
			out[team][i] = models.FinalAnswer{
				Answer:    ans,
				Duplicate: key != "" && counts[key] > 1,
			}
		}
	}
	return out
}

func answerKey(answers []string, i int) string {
	if i >= len(answers) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(answers[i]))
}
