// internal/game/events_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventAliases(t *testing.T) {
	cases := map[string]string{
		`{"type":"initJoin","name":"ann","group":"g"}`:                  EventJoin,
		`{"type":"joinTeam","name":"ann","group":"g","team":"Purple"}`:  EventJoin,
		`{"type":"pushPause","group":"g"}`:                              EventPause,
		`{"type":"reset","group":"g"}`:                                  EventResetRound,
		`{"type":"myTeam","team":"Purple"}`:                             EventTeamJoin,
		`{"type":"FinalAnswer","group":"g","team":"Purple"}`:            EventSubmitFinalAnswer,
		`{"type":"updateScores","group":"g","team":"Purple","score":3}`: EventUpdateScore,
	}
	for raw, want := range cases {
		ev, err := DecodeEvent([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, want, ev.Name(), raw)
	}
}

func TestDecodeEventFields(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"submitFinalAnswer","group":"g","team":"Green","answers":["Apple",""]}`))
	require.NoError(t, err)
	sub := ev.(SubmitFinalAnswerEvent)
	assert.Equal(t, []string{"Apple", ""}, sub.Answers)
	assert.Equal(t, "Green", sub.Team)

	ev, err = DecodeEvent([]byte(`{"type":"gameChoices","group":"g","categories":8,"timer":2}`))
	require.NoError(t, err)
	gc := ev.(GameChoicesEvent)
	assert.Equal(t, 8, gc.Categories)
	assert.Equal(t, 2.0, gc.TimerMinutes)

	ev, err = DecodeEvent([]byte(`{"type":"newMessage","team":"Green","text":"hi","from":"ann"}`))
	require.NoError(t, err)
	msg := ev.(NewMessageEvent)
	assert.Equal(t, "Green", msg.Team)
	assert.Equal(t, "hi", msg.Raw["text"])
	assert.Equal(t, "newMessage", msg.Raw["type"])

	ev, err = DecodeEvent([]byte(`{"type":"updateScore","group":"g","team":"Green","score":0}`))
	require.NoError(t, err)
	require.NotNil(t, ev.(UpdateScoreEvent).Score)
	assert.Equal(t, 0, *ev.(UpdateScoreEvent).Score)

	ev, err = DecodeEvent([]byte(`{"type":"join","ticket":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", ev.(JoinEvent).Ticket)
}

func TestDecodeEventRejects(t *testing.T) {
	bad := []string{
		`{"type":"join","name":"ann"}`,
		`{"type":"createTeams"}`,
		`{"type":"changeGameState","group":"g"}`,
		`{"type":"updateScore","group":"g","team":"Green"}`,
		`{"type":"failedAnswer","group":"g"}`,
		`{"type":"newGuess","guesses":[]}`,
		`{"type":"submitFinalAnswer","group":"g","answers":"nope"}`,
		`not json`,
	}
	for _, raw := range bad {
		_, err := DecodeEvent([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidEvent, raw)
	}

	_, err := DecodeEvent([]byte(`{"type":"dance","group":"g"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
