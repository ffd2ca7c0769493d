// internal/game/events.go
package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event types. Aliases used by older clients are mapped in eventAliases.
const (
	EventJoin              = "join"
	EventCreateTeams       = "createTeams"
	EventChangeGameState   = "changeGameState"
	EventPause             = "pause"
	EventResetRound        = "resetRound"
	EventTeamJoin          = "teamJoin"
	EventNewGuess          = "newGuess"
	EventNewMessage        = "newMessage"
	EventSubmitFinalAnswer = "submitFinalAnswer"
	EventUpdateScore       = "updateScore"
	EventFailedAnswer      = "failedAnswer"
	EventGameChoices       = "gameChoices"
)

var eventAliases = map[string]string{
	"initJoin":     EventJoin,
	"joinTeam":     EventJoin,
	"pushPause":    EventPause,
	"reset":        EventResetRound,
	"myTeam":       EventTeamJoin,
	"FinalAnswer":  EventSubmitFinalAnswer,
	"updateScores": EventUpdateScore,
}

// Outbound message types.
const (
	MsgAllUsers       = "allUsers"
	MsgCurrentUser    = "currentUser"
	MsgNewTeams       = "newTeams"
	MsgGameState      = "gameState"
	MsgClock          = "clock"
	MsgNewGame        = "newGame"
	MsgAllSubmissions = "allSubmissions"
	MsgUpdateAnswers  = "updateAnswers"
	MsgUpdateMessage  = "updateMessage"
	MsgStartOver      = "startOver"
	MsgError          = "error"
)

var (
	// ErrUnknownEvent is returned for a frame whose type is not recognised.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrInvalidEvent is returned when a required field is missing.
	ErrInvalidEvent = errors.New("invalid event")
)

// Message is a single outbound frame.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Event is one decoded inbound frame.
type Event interface {
	Name() string
	validate() error
}

// JoinEvent enters a group. A non-empty Team marks a rejoin after a refresh.
type JoinEvent struct {
	PlayerName string `json:"name"`
	Group      string `json:"group"`
	Team       string `json:"team,omitempty"`
	Ticket     string `json:"ticket,omitempty"`
}

type CreateTeamsEvent struct {
	Group string `json:"group"`
}

type ChangeGameStateEvent struct {
	State string `json:"state"`
	Group string `json:"group"`
}

type PauseEvent struct {
	Group string `json:"group"`
}

type ResetRoundEvent struct {
	Group string `json:"group"`
}

// TeamJoinEvent subscribes the connection to its team's channel. Group
// defaults to the connection's group.
type TeamJoinEvent struct {
	Team  string `json:"team"`
	Group string `json:"group,omitempty"`
}

type NewGuessEvent struct {
	Team    string          `json:"team"`
	Group   string          `json:"group,omitempty"`
	Guesses json.RawMessage `json:"guesses"`
}

// NewMessageEvent is relayed whole; Raw holds every field the client sent.
type NewMessageEvent struct {
	Team  string                 `json:"team"`
	Group string                 `json:"group,omitempty"`
	Raw   map[string]interface{} `json:"-"`
}

type SubmitFinalAnswerEvent struct {
	Group   string   `json:"group"`
	Team    string   `json:"team"`
	Answers []string `json:"answers"`
}

type UpdateScoreEvent struct {
	Group string `json:"group"`
	Team  string `json:"team"`
	Score *int   `json:"score"`
}

type FailedAnswerEvent struct {
	Group   string          `json:"group"`
	Answers json.RawMessage `json:"answers"`
}

// GameChoicesEvent changes a group's defaults for later rounds.
type GameChoicesEvent struct {
	Group        string  `json:"group"`
	Categories   int     `json:"categories"`
	TimerMinutes float64 `json:"timerMinutes"`
	Timer        float64 `json:"timer,omitempty"`
}

func (JoinEvent) Name() string              { return EventJoin }
func (CreateTeamsEvent) Name() string       { return EventCreateTeams }
func (ChangeGameStateEvent) Name() string   { return EventChangeGameState }
func (PauseEvent) Name() string             { return EventPause }
func (ResetRoundEvent) Name() string        { return EventResetRound }
func (TeamJoinEvent) Name() string          { return EventTeamJoin }
func (NewGuessEvent) Name() string          { return EventNewGuess }
func (NewMessageEvent) Name() string        { return EventNewMessage }
func (SubmitFinalAnswerEvent) Name() string { return EventSubmitFinalAnswer }
func (UpdateScoreEvent) Name() string       { return EventUpdateScore }
func (FailedAnswerEvent) Name() string      { return EventFailedAnswer }
func (GameChoicesEvent) Name() string       { return EventGameChoices }

func (e JoinEvent) validate() error {
	if e.Ticket != "" {
		return nil
	}
	return requireFields("name", e.PlayerName, "group", e.Group)
}
func (e CreateTeamsEvent) validate() error     { return requireFields("group", e.Group) }
func (e ChangeGameStateEvent) validate() error { return requireFields("state", e.State, "group", e.Group) }
func (e PauseEvent) validate() error           { return requireFields("group", e.Group) }
func (e ResetRoundEvent) validate() error      { return requireFields("group", e.Group) }
func (e TeamJoinEvent) validate() error        { return requireFields("team", e.Team) }
func (e NewGuessEvent) validate() error        { return requireFields("team", e.Team) }
func (e NewMessageEvent) validate() error      { return nil }
func (e SubmitFinalAnswerEvent) validate() error {
	return requireFields("group", e.Group)
}
func (e UpdateScoreEvent) validate() error {
	if e.Score == nil {
		return fmt.Errorf("%w: missing score", ErrInvalidEvent)
	}
	return requireFields("group", e.Group, "team", e.Team)
}
func (e FailedAnswerEvent) validate() error {
	if len(e.Answers) == 0 {
		return fmt.Errorf("%w: missing answers", ErrInvalidEvent)
	}
	return requireFields("group", e.Group)
}
func (e GameChoicesEvent) validate() error { return requireFields("group", e.Group) }

// requireFields takes field/value pairs and fails on the first empty value.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidEvent, pairs[i])
		}
	}
	return nil
}

// DecodeEvent parses one text frame of the form {"type": "...", ...fields}.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	typ := head.Type
	if alias, ok := eventAliases[typ]; ok {
		typ = alias
	}

	var ev Event
	var err error
	switch typ {
	case EventJoin:
		ev, err = decodeAs[JoinEvent](data)
	case EventCreateTeams:
		ev, err = decodeAs[CreateTeamsEvent](data)
	case EventChangeGameState:
		ev, err = decodeAs[ChangeGameStateEvent](data)
	case EventPause:
		ev, err = decodeAs[PauseEvent](data)
	case EventResetRound:
		ev, err = decodeAs[ResetRoundEvent](data)
	case EventTeamJoin:
		ev, err = decodeAs[TeamJoinEvent](data)
	case EventNewGuess:
		ev, err = decodeAs[NewGuessEvent](data)
	case EventNewMessage:
		var msg NewMessageEvent
		if err = json.Unmarshal(data, &msg); err == nil {
			err = json.Unmarshal(data, &msg.Raw)
		}
		ev = msg
	case EventSubmitFinalAnswer:
		ev, err = decodeAs[SubmitFinalAnswerEvent](data)
	case EventUpdateScore:
		ev, err = decodeAs[UpdateScoreEvent](data)
	case EventFailedAnswer:
		ev, err = decodeAs[FailedAnswerEvent](data)
	case EventGameChoices:
		var gc GameChoicesEvent
		if err = json.Unmarshal(data, &gc); err == nil && gc.TimerMinutes == 0 {
			gc.TimerMinutes = gc.Timer
		}
		ev = gc
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, typ, err)
	}
	if err := ev.validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}
