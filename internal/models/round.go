package models

import (
	"time"

	"github.com/google/uuid"
)

// Round is the prompt a group plays against: one letter and an ordered list of categories.
type Round struct {
	Letter     string    `json:"letter"`
	Categories []string  `json:"categories"`
	StartedAt  time.Time `json:"startedAt"`
}

// FinalAnswer is one team's answer for one category after cross-team comparison.
type FinalAnswer struct {
	Answer    string `json:"answer"`
	Duplicate bool   `json:"duplicate"`
}

// RoundRecord is the history entry emitted once a round's answers are aggregated.
type RoundRecord struct {
	ID         uuid.UUID                `json:"id"`
	Group      string                   `json:"group"`
	Letter     string                   `json:"letter"`
	Categories []string                 `json:"categories"`
	Answers    map[string][]FinalAnswer `json:"answers"`
	FinishedAt time.Time                `json:"finishedAt"`
}
