package models

// Player is a single participant in a group. Name and Group together identify
// the player across reconnects; ConnID is whatever connection currently
// speaks for them.
type Player struct {
	ConnID string `json:"id"`
	Name   string `json:"name"`
	Group  string `json:"group"`
	Team   string `json:"team,omitempty"`
}
