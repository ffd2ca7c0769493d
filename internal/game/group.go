// internal/game/group.go
package game

import (
	"math/rand"
	"sync"

	"github.com/jason-s-yu/scatter/internal/models"
)

// Phase is the round phase a group's clients see.
type Phase string

const (
	PhaseReady   Phase = "ready"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// Group is one named room. All fields are guarded by Mu, including the timer
// and aggregator, whose tick goroutine takes Mu itself.
type Group struct {
	Mu sync.Mutex

	Name          string
	Players       []*models.Player // roster in join order
	Teams         []*models.Team
	Phase         Phase
	RoundSeconds  int
	CategoryCount int
	Round         *models.Round

	timer   *RoundTimer
	answers *Aggregator
	pools   promptPools
	rng     *rand.Rand
}

// TeamView is the broadcast shape of a team.
type TeamView struct {
	Name    string   `json:"name"`
	Players []string `json:"players"`
	Scores  []int    `json:"scores"`
}

// Snapshot is a point-in-time copy of a group for read-only callers.
type Snapshot struct {
	Name          string        `json:"name"`
	Phase         Phase         `json:"phase"`
	Players       []string      `json:"players"`
	Teams         []TeamView    `json:"teams"`
	Round         *models.Round `json:"round,omitempty"`
	Remaining     int           `json:"remaining"`
	RoundSeconds  int           `json:"roundSeconds"`
	CategoryCount int           `json:"categoryCount"`
}

func newGroup(name string, rules Rules, seed int64) *Group {
	return &Group{
		Name:          name,
		Phase:         PhaseReady,
		RoundSeconds:  rules.RoundSeconds,
		CategoryCount: rules.Categories,
		answers:       NewAggregator(nil),
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func (g *Group) playerByName(name string) *models.Player {
	for _, p := range g.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// addOrReconnect puts the player on the roster. A name already on the roster
// takes over that entry with the new connection.
func (g *Group) addOrReconnect(name, connID string) (*models.Player, bool) {
	if p := g.playerByName(name); p != nil {
		p.ConnID = connID
		return p, true
	}
	p := &models.Player{ConnID: connID, Name: name, Group: g.Name}
	g.Players = append(g.Players, p)
	return p, false
}

func (g *Group) removePlayer(name string) *models.Player {
	for i, p := range g.Players {
		if p.Name == name {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			return p
		}
	}
	return nil
}

func (g *Group) playerNames() []string {
	names := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		names = append(names, p.Name)
	}
	return names
}

func (g *Group) teamNames() []string {
	names := make([]string, 0, len(g.Teams))
	for _, t := range g.Teams {
		names = append(names, t.Name)
	}
	return names
}

func (g *Group) teamViews() []TeamView {
	views := make([]TeamView, 0, len(g.Teams))
	for _, t := range g.Teams {
		scores := make([]int, len(t.Scores))
		copy(scores, t.Scores)
		views = append(views, TeamView{Name: t.Name, Players: t.MemberNames(), Scores: scores})
	}
	return views
}

func (g *Group) teamRecords() []models.TeamRecord {
	recs := make([]models.TeamRecord, 0, len(g.Teams))
	for _, t := range g.Teams {
		recs = append(recs, t.Record())
	}
	return recs
}

// hydrate rebuilds the team map from stored records. Members who are not on
// the live roster are kept as connectionless placeholders.
func (g *Group) hydrate(records []models.TeamRecord) {
	g.Teams = make([]*models.Team, 0, len(records))
	for _, rec := range records {
		t := &models.Team{Name: rec.Name}
		t.Scores = append(t.Scores, rec.Scores...)
		if len(t.Scores) == 0 {
			t.Scores = []int{0}
		}
		for _, member := range rec.Members {
			p := g.playerByName(member)
			if p == nil {
				p = &models.Player{Name: member, Group: g.Name}
			}
			p.Team = t.Name
			t.Players = append(t.Players, p)
		}
		g.Teams = append(g.Teams, t)
	}
}

// placeOnTeam moves p onto the named team, creating the team if needed.
func (g *Group) placeOnTeam(p *models.Player, team string) {
	for _, t := range g.Teams {
		if t.Name == team {
			continue
		}
		t.RemovePlayer(p.Name)
	}
	t := findTeam(g.Teams, team)
	if t == nil {
		t = &models.Team{Name: team, Scores: []int{0}}
		g.Teams = append(g.Teams, t)
	}
	p.Team = team
	for i, member := range t.Players {
		if member.Name == p.Name {
			t.Players[i] = p
			return
		}
	}
	t.Players = append(t.Players, p)
}

func (g *Group) snapshot() Snapshot {
	s := Snapshot{
		Name:          g.Name,
		Phase:         g.Phase,
		Players:       g.playerNames(),
		Teams:         g.teamViews(),
		RoundSeconds:  g.RoundSeconds,
		CategoryCount: g.CategoryCount,
	}
	if g.Round != nil {
		r := *g.Round
		r.Categories = append([]string(nil), g.Round.Categories...)
		s.Round = &r
	}
	if g.timer != nil {
		s.Remaining = g.timer.Remaining()
	}
	return s
}
