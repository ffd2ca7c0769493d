package models

// Team is a named subset of a group's players together with its score history.
// The last entry of Scores is the current round's score.
type Team struct {
	Name    string
	Players []*Player
	Scores  []int
}

// CurrentScore returns the trailing score entry, or 0 if none exists yet.
func (t *Team) CurrentScore() int {
	if len(t.Scores) == 0 {
		return 0
	}
	return t.Scores[len(t.Scores)-1]
}

// SetCurrentScore overwrites the trailing score entry and reports whether it changed.
func (t *Team) SetCurrentScore(score int) bool {
	if len(t.Scores) == 0 {
		t.Scores = append(t.Scores, score)
		return true
	}
	if t.Scores[len(t.Scores)-1] == score {
		return false
	}
	t.Scores[len(t.Scores)-1] = score
	return true
}

// HasPlayer reports whether a player with the given name is on the team.
func (t *Team) HasPlayer(name string) bool {
	for _, p := range t.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// RemovePlayer drops the named player from the roster. Returns false if absent.
func (t *Team) RemovePlayer(name string) bool {
	for i, p := range t.Players {
		if p.Name == name {
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return true
		}
	}
	return false
}

// MemberNames returns a copy of the roster's names in order.
func (t *Team) MemberNames() []string {
	names := make([]string, 0, len(t.Players))
	for _, p := range t.Players {
		names = append(names, p.Name)
	}
	return names
}

// Record builds the persistence projection of the team.
func (t *Team) Record() TeamRecord {
	scores := make([]int, len(t.Scores))
	copy(scores, t.Scores)
	return TeamRecord{
		Name:    t.Name,
		Members: t.MemberNames(),
		Scores:  scores,
	}
}

// TeamRecord is how a team is stored by the persistence layer.
type TeamRecord struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Scores  []int    `json:"scores"`
}
