// internal/game/coordinator.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Broadcaster delivers outbound messages. Every send must be non-blocking: the
// coordinator calls it with a group lock held.
type Broadcaster interface {
	// JoinGroup subscribes a connection to a group's channel.
	JoinGroup(connID, group string)
	// JoinTeam subscribes a connection to one team channel of a group,
	// replacing any previous team subscription in that group.
	JoinTeam(connID, group, team string)
	ToGroup(group string, msg Message)
	ToTeam(group, team string, msg Message)
	ToConn(connID string, msg Message)
}

type nopBroadcaster struct{}

func (nopBroadcaster) JoinGroup(string, string)        {}
func (nopBroadcaster) JoinTeam(string, string, string) {}
func (nopBroadcaster) ToGroup(string, Message)         {}
func (nopBroadcaster) ToTeam(string, string, Message)  {}
func (nopBroadcaster) ToConn(string, Message)          {}

// Tickets issues and verifies rejoin tickets binding a name to a group.
type Tickets interface {
	Issue(name, group string) (string, error)
	Parse(ticket string) (name, group string, err error)
}

// Rules are the per-group defaults.
type Rules struct {
	RoundSeconds     int    // before teams exist
	Categories       int    // before teams exist
	TeamRoundSeconds int    // applied by createTeams
	TeamCategories   int    // applied by createTeams
	TeamCount        int    // teams formed in round-robin mode
	TeamMode         string // FormationRoundRobin or FormationFixed
}

// DefaultRules returns the stock game defaults.
func DefaultRules() Rules {
	return Rules{
		RoundSeconds:     60,
		Categories:       6,
		TeamRoundSeconds: 180,
		TeamCategories:   12,
		TeamCount:        2,
		TeamMode:         FormationRoundRobin,
	}
}

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	Store        Store
	Recorder     RoundRecorder
	Broadcaster  Broadcaster
	Tickets      Tickets
	Corpus       *Corpus
	Clock        clockwork.Clock
	Logger       *logrus.Logger
	Rules        Rules
	Seed         int64
	QueueSize    int
	WriteTimeout time.Duration
}

var (
	ErrUnknownGroup  = errors.New("unknown group")
	ErrNotJoined     = errors.New("connection has not joined a group")
	ErrInvalidTicket = errors.New("invalid rejoin ticket")
)

// Coordinator owns every group's state and applies inbound events to it.
type Coordinator struct {
	store    Store
	recorder RoundRecorder
	out      Broadcaster
	tickets  Tickets
	corpus   *Corpus
	clock    clockwork.Clock
	log      *logrus.Logger
	rules    Rules

	groups  *GroupStore
	persist *persister

	connMu sync.Mutex
	conns  map[string]PlayerKey

	seedMu sync.Mutex
	seed   int64
}

// NewCoordinator builds a coordinator and starts its persistence worker.
func NewCoordinator(opts Options) *Coordinator {
	if opts.Store == nil {
		opts.Store = NopStore{}
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = nopBroadcaster{}
	}
	if opts.Corpus == nil {
		opts.Corpus = DefaultCorpus()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Rules == (Rules{}) {
		opts.Rules = DefaultRules()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Coordinator{
		store:    opts.Store,
		recorder: opts.Recorder,
		out:      opts.Broadcaster,
		tickets:  opts.Tickets,
		corpus:   opts.Corpus,
		clock:    opts.Clock,
		log:      opts.Logger,
		rules:    opts.Rules,
		groups:   NewGroupStore(),
		persist:  newPersister(opts.QueueSize, opts.WriteTimeout, opts.Logger),
		conns:    make(map[string]PlayerKey),
		seed:     opts.Seed,
	}
}

// Groups lists the live group names.
func (c *Coordinator) Groups() []string { return c.groups.Names() }

// Snapshot returns a copy of the named group's state.
func (c *Coordinator) Snapshot(group string) (Snapshot, bool) {
	g, ok := c.groups.Get(group)
	if !ok {
		return Snapshot{}, false
	}
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.snapshot(), true
}

// Close stops every group timer and waits for queued persistence writes.
func (c *Coordinator) Close() {
	for _, g := range c.groups.All() {
		g.Mu.Lock()
		if g.timer != nil {
			g.timer.Stop()
		}
		g.Mu.Unlock()
	}
	c.persist.close()
}

// Handle applies one inbound event sent by connID.
func (c *Coordinator) Handle(ctx context.Context, connID string, ev Event) error {
	switch e := ev.(type) {
	case JoinEvent:
		return c.join(ctx, connID, e)
	case CreateTeamsEvent:
		return c.createTeams(e.Group)
	case ChangeGameStateEvent:
		return c.changeGameState(e.Group, e.State)
	case PauseEvent:
		return c.withGroup(e.Group, c.pauseLocked)
	case ResetRoundEvent:
		return c.withGroup(e.Group, func(g *Group) {
			c.startRoundLocked(g)
			c.out.ToGroup(g.Name, Message{Type: MsgGameState, Payload: g.Phase})
		})
	case TeamJoinEvent:
		return c.teamJoin(connID, e)
	case NewGuessEvent:
		group, err := c.groupFor(connID, e.Group)
		if err != nil {
			return err
		}
		c.out.ToTeam(group, e.Team, Message{Type: MsgUpdateAnswers, Payload: e.Guesses})
		return nil
	case NewMessageEvent:
		return c.newMessage(connID, e)
	case SubmitFinalAnswerEvent:
		return c.submitFinalAnswer(connID, e)
	case UpdateScoreEvent:
		return c.updateScore(e)
	case FailedAnswerEvent:
		if _, ok := c.groups.Get(e.Group); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownGroup, e.Group)
		}
		c.out.ToGroup(e.Group, Message{Type: MsgAllSubmissions, Payload: e.Answers})
		return nil
	case GameChoicesEvent:
		return c.withGroup(e.Group, func(g *Group) {
			if e.Categories > 0 {
				g.CategoryCount = e.Categories
			}
			if e.TimerMinutes > 0 {
				g.RoundSeconds = int(math.Round(e.TimerMinutes * 60))
			}
			c.log.WithFields(logrus.Fields{"group": g.Name, "categories": g.CategoryCount, "seconds": g.RoundSeconds}).Debug("game choices updated")
		})
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

// Disconnect removes the player speaking on connID from its group.
func (c *Coordinator) Disconnect(connID string) {
	c.connMu.Lock()
	key, ok := c.conns[connID]
	delete(c.conns, connID)
	c.connMu.Unlock()
	if !ok {
		return
	}
	g, ok := c.groups.Get(key.Group)
	if !ok {
		return
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()

	p := g.playerByName(key.Name)
	if p == nil || p.ConnID != connID {
		// the player already reconnected elsewhere
		return
	}
	g.removePlayer(p.Name)
	for _, t := range g.Teams {
		t.RemovePlayer(p.Name)
	}
	if g.answers.Drop(p.Name) {
		c.aggregateLocked(g)
	}

	c.out.ToGroup(g.Name, Message{Type: MsgAllUsers, Payload: g.playerNames()})
	hasTeams := len(g.Teams) > 0
	if hasTeams {
		c.out.ToGroup(g.Name, Message{Type: MsgNewTeams, Payload: g.teamViews()})
	}
	c.log.WithFields(logrus.Fields{"group": g.Name, "player": p.Name, "conn": connID}).Info("player left")

	c.enqueue("deleteUser", g.Name, func(ctx context.Context) error {
		return c.store.DeleteUser(ctx, connID)
	})
	if hasTeams {
		recs := g.teamRecords()
		c.enqueue("upsertGroup", g.Name, func(ctx context.Context) error {
			return c.store.UpsertGroup(ctx, g.Name, recs)
		})
	}
}

func (c *Coordinator) join(ctx context.Context, connID string, e JoinEvent) error {
	if e.Ticket != "" {
		if c.tickets == nil {
			return fmt.Errorf("%w: tickets disabled", ErrInvalidTicket)
		}
		name, group, err := c.tickets.Parse(e.Ticket)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTicket, err)
		}
		e.PlayerName, e.Group = name, group
	}

	key := PlayerKey{Name: e.PlayerName, Group: e.Group}
	c.connMu.Lock()
	prev, bound := c.conns[connID]
	c.connMu.Unlock()
	if bound && prev != key {
		c.Disconnect(connID)
	}

	g := c.group(e.Group)
	if e.Team != "" {
		c.hydrate(ctx, g)
	}

	c.connMu.Lock()
	c.conns[connID] = key
	c.connMu.Unlock()

	g.Mu.Lock()
	defer g.Mu.Unlock()

	c.out.JoinGroup(connID, g.Name)
	p, reconnected := g.addOrReconnect(e.PlayerName, connID)
	g.answers.Expect(p.Name)

	logger := c.log.WithFields(logrus.Fields{"group": g.Name, "player": p.Name, "conn": connID})

	if e.Team != "" {
		g.placeOnTeam(p, e.Team)
		c.out.JoinTeam(connID, g.Name, p.Team)
		c.out.ToConn(connID, Message{Type: MsgNewTeams, Payload: g.teamViews()})
		if !reconnected {
			c.out.ToGroup(g.Name, Message{Type: MsgAllUsers, Payload: g.playerNames()})
		}
		logger.WithField("team", p.Team).Info("player rejoined team")

		fields := PlayerFields{ConnID: connID, Team: p.Team}
		recs := g.teamRecords()
		c.enqueue("upsertUser", g.Name, func(ctx context.Context) error {
			return c.store.UpsertUser(ctx, key, fields)
		})
		c.enqueue("upsertGroup", g.Name, func(ctx context.Context) error {
			return c.store.UpsertGroup(ctx, g.Name, recs)
		})
		return nil
	}

	if p.Team != "" {
		c.out.JoinTeam(connID, g.Name, p.Team)
	}
	var ticket string
	if c.tickets != nil {
		t, err := c.tickets.Issue(p.Name, g.Name)
		if err != nil {
			logger.WithError(err).Warn("failed to issue rejoin ticket")
		}
		ticket = t
	}
	c.out.ToConn(connID, Message{Type: MsgCurrentUser, Payload: currentUser{Player: *p, Ticket: ticket}})
	c.out.ToGroup(g.Name, Message{Type: MsgAllUsers, Payload: g.playerNames()})
	logger.WithField("reconnected", reconnected).Info("player joined")

	fields := PlayerFields{ConnID: connID, Team: p.Team}
	c.enqueue("upsertUser", g.Name, func(ctx context.Context) error {
		return c.store.UpsertUser(ctx, key, fields)
	})
	return nil
}

type currentUser struct {
	models.Player
	Ticket string `json:"ticket,omitempty"`
}

// hydrate loads a group's stored teams when the live map is empty, e.g. after
// a restart. The store is read without the group lock held.
func (c *Coordinator) hydrate(ctx context.Context, g *Group) {
	g.Mu.Lock()
	empty := len(g.Teams) == 0
	g.Mu.Unlock()
	if !empty {
		return
	}

	records, err := c.store.FindGroup(ctx, g.Name)
	if err != nil {
		c.log.WithField("group", g.Name).WithError(err).Warn("failed to load stored teams")
		return
	}
	if len(records) == 0 {
		return
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()
	if len(g.Teams) == 0 {
		g.hydrate(records)
		c.log.WithFields(logrus.Fields{"group": g.Name, "teams": len(records)}).Info("restored teams from store")
	}
}

func (c *Coordinator) createTeams(group string) error {
	return c.withGroup(group, func(g *Group) {
		if len(g.Players) == 0 {
			c.log.WithField("group", g.Name).Warn("createTeams with no players")
			return
		}
		for _, p := range g.Players {
			p.Team = ""
		}
		formation := NewFormation(c.rules.TeamMode, c.corpus.Teams, c.rules.TeamCount)
		g.Teams = FormTeams(g.Players, formation)
		g.RoundSeconds = c.rules.TeamRoundSeconds
		g.CategoryCount = c.rules.TeamCategories
		g.timer.Reset(g.RoundSeconds)
		g.Phase = PhaseReady
		g.Round = nil
		g.answers.Reset(g.playerNames())

		for _, p := range g.Players {
			c.out.JoinTeam(p.ConnID, g.Name, p.Team)
		}
		c.out.ToGroup(g.Name, Message{Type: MsgNewTeams, Payload: g.teamViews()})
		c.log.WithFields(logrus.Fields{"group": g.Name, "teams": len(g.Teams)}).Info("teams formed")

		recs := g.teamRecords()
		c.enqueue("deleteTeams", g.Name, func(ctx context.Context) error {
			return c.store.DeleteTeamsForGroup(ctx, g.Name)
		})
		c.enqueue("upsertGroup", g.Name, func(ctx context.Context) error {
			return c.store.UpsertGroup(ctx, g.Name, recs)
		})
		for _, p := range g.Players {
			key := PlayerKey{Name: p.Name, Group: g.Name}
			fields := PlayerFields{ConnID: p.ConnID, Team: p.Team}
			c.enqueue("upsertUser", g.Name, func(ctx context.Context) error {
				return c.store.UpsertUser(ctx, key, fields)
			})
		}
	})
}

// visiblePhase maps a requested state to the phase clients are told about.
var visiblePhase = map[string]Phase{
	"running":    PhaseRunning,
	"paused":     PhasePaused,
	"pause":      PhasePaused,
	"ready":      PhaseReady,
	"resetRound": PhaseReady,
	"startOver":  PhaseReady,
}

func (c *Coordinator) changeGameState(group, state string) error {
	phase, known := visiblePhase[state]
	return c.withGroup(group, func(g *Group) {
		if !known {
			c.log.WithFields(logrus.Fields{"group": g.Name, "state": state}).Warn("ignoring unknown game state")
			return
		}
		c.out.ToGroup(g.Name, Message{Type: MsgGameState, Payload: phase})

		switch state {
		case "running":
			switch g.Phase {
			case PhaseReady:
				c.startRoundLocked(g)
			default:
				// resume a paused round, or re-assert the single tick source
				g.timer.Start(g.RoundSeconds)
				g.Phase = PhaseRunning
			}
		case "paused", "pause":
			c.pauseTimerLocked(g)
		case "ready", "resetRound":
			g.timer.Reset(g.RoundSeconds)
			g.Phase = PhaseReady
		case "startOver":
			g.timer.Reset(g.RoundSeconds)
			g.Phase = PhaseReady
			g.Round = nil
			g.answers.Reset(g.playerNames())
			for _, t := range g.Teams {
				t.Scores = []int{0}
			}
			c.out.ToGroup(g.Name, Message{Type: MsgStartOver, Payload: g.CategoryCount})
			c.out.ToGroup(g.Name, Message{Type: MsgNewTeams, Payload: g.teamViews()})

			recs := g.teamRecords()
			c.enqueue("upsertGroup", g.Name, func(ctx context.Context) error {
				return c.store.UpsertGroup(ctx, g.Name, recs)
			})
		}
	})
}

func (c *Coordinator) pauseLocked(g *Group) {
	if g.Phase != PhaseRunning {
		c.log.WithFields(logrus.Fields{"group": g.Name, "phase": g.Phase}).Debug("pause ignored")
		return
	}
	c.pauseTimerLocked(g)
	c.out.ToGroup(g.Name, Message{Type: MsgGameState, Payload: PhasePaused})
}

func (c *Coordinator) pauseTimerLocked(g *Group) {
	if g.Phase != PhaseRunning {
		return
	}
	g.timer.Pause()
	g.Phase = PhasePaused
}

// startRoundLocked draws a fresh prompt and starts the countdown.
func (c *Coordinator) startRoundLocked(g *Group) {
	letter, cats := g.pools.next(c.corpus, g.CategoryCount, g.rng)
	g.Round = &models.Round{Letter: letter, Categories: cats, StartedAt: c.clock.Now()}
	g.answers.Reset(g.playerNames())
	g.Phase = PhaseRunning

	c.out.ToGroup(g.Name, Message{Type: MsgNewGame, Payload: newGame{Letter: letter, Categories: cats}})
	c.log.WithFields(logrus.Fields{"group": g.Name, "letter": letter, "categories": len(cats), "seconds": g.RoundSeconds}).Info("round started")

	g.timer.Reset(g.RoundSeconds)
	g.timer.Start(g.RoundSeconds)
}

type newGame struct {
	Letter     string   `json:"letter"`
	Categories []string `json:"categories"`
}

func (c *Coordinator) teamJoin(connID string, e TeamJoinEvent) error {
	group, err := c.groupFor(connID, e.Group)
	if err != nil {
		return err
	}
	c.out.JoinTeam(connID, group, e.Team)
	return nil
}

func (c *Coordinator) newMessage(connID string, e NewMessageEvent) error {
	group, err := c.groupFor(connID, e.Group)
	if err != nil {
		return err
	}
	return c.withGroup(group, func(g *Group) {
		msg := Message{Type: MsgUpdateMessage, Payload: e.Raw}
		t := findTeam(g.Teams, e.Team)
		if e.Team == "" || t == nil || len(t.Players) <= 1 {
			c.out.ToGroup(g.Name, msg)
			return
		}
		c.out.ToTeam(g.Name, t.Name, msg)
	})
}

func (c *Coordinator) submitFinalAnswer(connID string, e SubmitFinalAnswerEvent) error {
	c.connMu.Lock()
	key, ok := c.conns[connID]
	c.connMu.Unlock()
	if !ok {
		return ErrNotJoined
	}
	if key.Group != e.Group {
		return fmt.Errorf("%w: %s", ErrNotJoined, e.Group)
	}
	return c.withGroup(e.Group, func(g *Group) {
		team := e.Team
		if p := g.playerByName(key.Name); p != nil && p.Team != "" {
			team = p.Team
		}
		// before teams exist every player answers for themselves
		if len(g.Teams) == 0 {
			team = key.Name
		}
		sub := Submission{Player: key.Name, Team: team, Answers: append([]string(nil), e.Answers...)}
		if g.answers.Submit(sub) {
			c.aggregateLocked(g)
			return
		}
		c.log.WithFields(logrus.Fields{"group": g.Name, "player": key.Name, "pending": g.answers.Pending()}).Debug("answers submitted")
	})
}

// aggregateLocked compares the round's answers across teams and broadcasts the
// result. The barrier stays closed until the next round re-arms it.
func (c *Coordinator) aggregateLocked(g *Group) {
	teams := g.teamNames()
	if len(teams) == 0 {
		teams = g.answers.Teams()
	}
	n := g.CategoryCount
	if g.Round != nil {
		n = len(g.Round.Categories)
	}
	result := CompareAcrossTeams(g.answers.Canonical(teams, n), n)
	c.out.ToGroup(g.Name, Message{Type: MsgAllSubmissions, Payload: result})
	c.log.WithFields(logrus.Fields{"group": g.Name, "teams": len(result)}).Info("round answers aggregated")

	if c.recorder == nil {
		return
	}
	rec := models.RoundRecord{
		ID:         uuid.New(),
		Group:      g.Name,
		Answers:    result,
		FinishedAt: c.clock.Now(),
	}
	if g.Round != nil {
		rec.Letter = g.Round.Letter
		rec.Categories = append([]string(nil), g.Round.Categories...)
	}
	c.enqueue("recordRound", g.Name, func(ctx context.Context) error {
		return c.recorder.RecordRound(ctx, rec)
	})
}

func (c *Coordinator) updateScore(e UpdateScoreEvent) error {
	return c.withGroup(e.Group, func(g *Group) {
		t := findTeam(g.Teams, e.Team)
		if t == nil {
			c.log.WithFields(logrus.Fields{"group": g.Name, "team": e.Team}).Warn("score for unknown team")
			return
		}
		if !t.SetCurrentScore(*e.Score) {
			return
		}
		c.out.ToGroup(g.Name, Message{Type: MsgNewTeams, Payload: g.teamViews()})
		recs := g.teamRecords()
		c.enqueue("upsertGroup", g.Name, func(ctx context.Context) error {
			return c.store.UpsertGroup(ctx, g.Name, recs)
		})
	})
}

// group returns the named group, creating it with its timer on first use.
func (c *Coordinator) group(name string) *Group {
	g, created := c.groups.GetOrCreate(name, func() *Group {
		g := newGroup(name, c.rules, c.nextSeed())
		g.timer = NewRoundTimer(c.clock, &g.Mu,
			func(remaining int) {
				c.out.ToGroup(g.Name, Message{Type: MsgClock, Payload: remaining})
			},
			func() {
				g.Phase = PhaseReady
				c.out.ToGroup(g.Name, Message{Type: MsgGameState, Payload: PhaseReady})
			},
		)
		return g
	})
	if created {
		c.log.WithField("group", name).Info("group created")
	}
	return g
}

// withGroup runs fn with the named group's lock held.
func (c *Coordinator) withGroup(name string, fn func(g *Group)) error {
	g, ok := c.groups.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, name)
	}
	g.Mu.Lock()
	defer g.Mu.Unlock()
	fn(g)
	return nil
}

// groupFor resolves the group an event targets: the explicit one if given,
// otherwise the group connID joined.
func (c *Coordinator) groupFor(connID, group string) (string, error) {
	if group != "" {
		if _, ok := c.groups.Get(group); !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownGroup, group)
		}
		return group, nil
	}
	c.connMu.Lock()
	defer c.connMu.Unlock()
	key, ok := c.conns[connID]
	if !ok {
		return "", ErrNotJoined
	}
	return key.Group, nil
}

func (c *Coordinator) enqueue(op, group string, run func(ctx context.Context) error) {
	c.persist.enqueue(job{op: op, group: group, run: run})
}

func (c *Coordinator) nextSeed() int64 {
	c.seedMu.Lock()
	defer c.seedMu.Unlock()
	c.seed++
	return c.seed
}
