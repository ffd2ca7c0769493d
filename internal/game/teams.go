// internal/game/teams.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/scatter/internal/models"
)

// Formation decides which team each player lands on.
type Formation interface {
	// Assign returns the teams in display order, each holding its players.
	// Players arrive already deduplicated and in roster order.
	Assign(players []*models.Player) []*models.Team
}

// RoundRobin deals players onto len(Names) teams one at a time, so team sizes
// never differ by more than one.
type RoundRobin struct {
	Names []string
}

// Assign implements Formation.
func (rr RoundRobin) Assign(players []*models.Player) []*models.Team {
	n := len(rr.Names)
	if n > len(players) {
		n = len(players)
	}
	if n < 1 {
		n = 1
	}
	teams := make([]*models.Team, n)
	for i := range teams {
		teams[i] = &models.Team{Name: teamName(rr.Names, i)}
	}
	for i, p := range players {
		t := teams[i%n]
		t.Players = append(t.Players, p)
	}
	return teams
}

// FixedPair is the deterministic two-team layout used for demos and for
// exercising the cross-team protocol: the final two joiners form the Minority
// team and everyone before them joins the Majority.
type FixedPair struct {
	Majority string
	Minority string
}

// Assign implements Formation.
func (fp FixedPair) Assign(players []*models.Player) []*models.Team {
	major := &models.Team{Name: fp.Majority}
	minor := &models.Team{Name: fp.Minority}
	for i, p := range players {
		if len(players)-i > 2 {
			major.Players = append(major.Players, p)
		} else {
			minor.Players = append(minor.Players, p)
		}
	}
	return []*models.Team{major, minor}
}

// FormTeams dedupes players by name, runs the formation, stamps each player's
// Team field and appends the opening score slot to every team.
func FormTeams(players []*models.Player, f Formation) []*models.Team {
	unique := dedupeByName(players)
	teams := f.Assign(unique)
	for _, t := range teams {
		for _, p := range t.Players {
			p.Team = t.Name
		}
		t.Scores = append(t.Scores, 0)
	}
	return teams
}

// NewFormation picks the formation for a mode string from config.
func NewFormation(mode string, names []string, count int) Formation {
	if mode == FormationFixed {
		return FixedPair{Majority: teamName(names, 0), Minority: teamName(names, 1)}
	}
	if count < 1 {
		count = 2
	}
	picked := make([]string, 0, count)
	taken := make(map[string]bool, count)
	for _, n := range names {
		if len(picked) == count {
			break
		}
		if n != "" && !taken[n] {
			picked = append(picked, n)
			taken[n] = true
		}
	}
	for i := 0; len(picked) < count; i++ {
		n := teamName(nil, i)
		if !taken[n] {
			picked = append(picked, n)
			taken[n] = true
		}
	}
	return RoundRobin{Names: picked}
}

// Formation modes accepted by NewFormation.
const (
	FormationRoundRobin = "roundRobin"
	FormationFixed      = "fixed"
)

var fallbackTeamNames = []string{"Purple", "Green", "Orange", "Blue", "Red", "Yellow"}

func teamName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	if i < len(fallbackTeamNames) {
		return fallbackTeamNames[i]
	}
	return fmt.Sprintf("Team %d", i+1)
}

func dedupeByName(players []*models.Player) []*models.Player {
	seen := make(map[string]bool, len(players))
	out := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p == nil || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out
}

func findTeam(teams []*models.Team, name string) *models.Team {
	for _, t := range teams {
		if t.Name == name {
			return t
		}
	}
	return nil
}
