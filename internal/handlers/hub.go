// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"

	"github.com/jason-s-yu/scatter/internal/game"
	"github.com/sirupsen/logrus"
)

// Conn is one live websocket client. Messages queued on OutChan are written
// by the connection's write pump.
type Conn struct {
	ID      string
	OutChan chan game.Message
	Cancel  context.CancelFunc
}

// NewConn builds a connection with an outbound buffer of size buffer.
func NewConn(id string, buffer int, cancel context.CancelFunc) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	return &Conn{ID: id, OutChan: make(chan game.Message, buffer), Cancel: cancel}
}

// Hub routes coordinator broadcasts to connections. It implements
// game.Broadcaster; every send is non-blocking and a full buffer drops the
// message.
type Hub struct {
	log *logrus.Logger

	mu        sync.RWMutex
	conns     map[string]*Conn
	groups    map[string]map[string]*Conn // group -> connID -> conn
	teams     map[teamKey]map[string]*Conn
	connGroup map[string]string
	connTeam  map[string]teamKey
}

type teamKey struct {
	group string
	team  string
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		log:       logger,
		conns:     make(map[string]*Conn),
		groups:    make(map[string]map[string]*Conn),
		teams:     make(map[teamKey]map[string]*Conn),
		connGroup: make(map[string]string),
		connTeam:  make(map[string]teamKey),
	}
}

// Register makes conn addressable by its ID.
func (h *Hub) Register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID] = conn
}

// Unregister drops every subscription of connID and closes its OutChan.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	h.leaveTeamLocked(connID)
	h.leaveGroupLocked(connID)
	delete(h.conns, connID)
	close(conn.OutChan)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// JoinGroup implements game.Broadcaster. A connection belongs to one group.
func (h *Hub) JoinGroup(connID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	if h.connGroup[connID] == group {
		return
	}
	h.leaveTeamLocked(connID)
	h.leaveGroupLocked(connID)
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]*Conn)
	}
	h.groups[group][connID] = conn
	h.connGroup[connID] = group
}

// JoinTeam implements game.Broadcaster.
func (h *Hub) JoinTeam(connID, group, team string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn, ok := h.conns[connID]
	if !ok || team == "" {
		return
	}
	h.leaveTeamLocked(connID)
	key := teamKey{group: group, team: team}
	if h.teams[key] == nil {
		h.teams[key] = make(map[string]*Conn)
	}
	h.teams[key][connID] = conn
	h.connTeam[connID] = key
}

// ToGroup implements game.Broadcaster.
func (h *Hub) ToGroup(group string, msg game.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.groups[group] {
		h.send(conn, msg)
	}
}

// ToTeam implements game.Broadcaster.
func (h *Hub) ToTeam(group, team string, msg game.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.teams[teamKey{group: group, team: team}] {
		h.send(conn, msg)
	}
}

// ToConn implements game.Broadcaster.
func (h *Hub) ToConn(connID string, msg game.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn, ok := h.conns[connID]; ok {
		h.send(conn, msg)
	}
}

// send must be called with h.mu held, which keeps OutChan open.
func (h *Hub) send(conn *Conn, msg game.Message) {
	select {
	case conn.OutChan <- msg:
	default:
		h.log.WithFields(logrus.Fields{"conn": conn.ID, "type": msg.Type}).Warn("outbound buffer full, dropped message")
	}
}

func (h *Hub) leaveGroupLocked(connID string) {
	group, ok := h.connGroup[connID]
	if !ok {
		return
	}
	delete(h.groups[group], connID)
	if len(h.groups[group]) == 0 {
		delete(h.groups, group)
	}
	delete(h.connGroup, connID)
}

func (h *Hub) leaveTeamLocked(connID string) {
	key, ok := h.connTeam[connID]
	if !ok {
		return
	}
	delete(h.teams[key], connID)
	if len(h.teams[key]) == 0 {
		delete(h.teams, key)
	}
	delete(h.connTeam, connID)
}
