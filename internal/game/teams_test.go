// internal/game/teams_test.go
package game

import (
	"fmt"
	"testing"

	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayers(names ...string) []*models.Player {
	out := make([]*models.Player, 0, len(names))
	for i, n := range names {
		out = append(out, &models.Player{ConnID: fmt.Sprintf("c%d", i), Name: n, Group: "g"})
	}
	return out
}

func TestRoundRobinDealsInRosterOrder(t *testing.T) {
	players := makePlayers("a", "b", "c", "d", "e")
	teams := FormTeams(players, RoundRobin{Names: []string{"Purple", "Green"}})

	require.Len(t, teams, 2)
	assert.Equal(t, []string{"a", "c", "e"}, teams[0].MemberNames())
	assert.Equal(t, []string{"b", "d"}, teams[1].MemberNames())
	for _, tm := range teams {
		assert.Equal(t, []int{0}, tm.Scores)
		for _, p := range tm.Players {
			assert.Equal(t, tm.Name, p.Team)
		}
	}
}

func TestRoundRobinSizesDifferByAtMostOne(t *testing.T) {
	for n := 1; n <= 9; n++ {
		names := make([]string, n)
		for i := range names {
			names[i] = fmt.Sprintf("p%d", i)
		}
		teams := FormTeams(makePlayers(names...), RoundRobin{Names: []string{"A", "B", "C"}})
		lo, hi, total := n, 0, 0
		for _, tm := range teams {
			size := len(tm.Players)
			total += size
			if size < lo {
				lo = size
			}
			if size > hi {
				hi = size
			}
		}
		assert.Equal(t, n, total, "n=%d", n)
		assert.LessOrEqual(t, hi-lo, 1, "n=%d", n)
	}
}

func TestRoundRobinClampsTeamCountToPlayers(t *testing.T) {
	teams := FormTeams(makePlayers("solo"), RoundRobin{Names: []string{"A", "B"}})
	require.Len(t, teams, 1)
	assert.Equal(t, []string{"solo"}, teams[0].MemberNames())
}

func TestFormTeamsDedupesByName(t *testing.T) {
	players := makePlayers("a", "b", "a", "c")
	teams := FormTeams(players, RoundRobin{Names: []string{"X", "Y"}})

	total := 0
	for _, tm := range teams {
		total += len(tm.Players)
	}
	assert.Equal(t, 3, total)
	assert.Equal(t, "c0", teams[0].Players[0].ConnID, "first occurrence wins")
}

func TestFixedPairPutsLastTwoOnMinority(t *testing.T) {
	teams := FormTeams(makePlayers("a", "b", "c", "d", "e"), FixedPair{Majority: "Purple", Minority: "Green"})
	require.Len(t, teams, 2)
	assert.Equal(t, []string{"a", "b", "c"}, teams[0].MemberNames())
	assert.Equal(t, []string{"d", "e"}, teams[1].MemberNames())

	single := FormTeams(makePlayers("a"), FixedPair{Majority: "Purple", Minority: "Green"})
	assert.Empty(t, single[0].Players)
	assert.Equal(t, []string{"a"}, single[1].MemberNames())
}

func TestNewFormation(t *testing.T) {
	f := NewFormation(FormationFixed, []string{"Red"}, 0)
	assert.Equal(t, FixedPair{Majority: "Red", Minority: "Green"}, f)

	f = NewFormation(FormationRoundRobin, []string{"Red", "Red", "Blue"}, 3)
	assert.Equal(t, RoundRobin{Names: []string{"Red", "Blue", "Purple"}}, f)

	f = NewFormation("", nil, 0)
	assert.Equal(t, RoundRobin{Names: []string{"Purple", "Green"}}, f)
}
