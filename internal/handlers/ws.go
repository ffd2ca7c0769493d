// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/scatter/internal/game"
	"github.com/jason-s-yu/scatter/internal/middleware"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "scatter"

const pingInterval = 30 * time.Second

// Coordinator is the game side of the socket.
type Coordinator interface {
	Handle(ctx context.Context, connID string, ev game.Event) error
	Disconnect(connID string)
	Snapshot(group string) (game.Snapshot, bool)
	Groups() []string
}

// WSConfig tunes the socket handler.
type WSConfig struct {
	OriginPatterns []string
	SendBuffer     int
	ReadLimit      int64
}

// WSHandler upgrades the request and pumps frames between the client and the
// coordinator until either side goes away. Closing serverCtx closes every
// socket with ServerShuttingDown.
func WSHandler(serverCtx context.Context, logger *logrus.Logger, hub *Hub, coord Coordinator, cfg WSConfig) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: cfg.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the scatter subprotocol")
			return
		}
		if cfg.ReadLimit > 0 {
			c.SetReadLimit(cfg.ReadLimit)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := NewConn(uuid.NewString(), cfg.SendBuffer, cancel)
		hub.Register(conn)
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		go func() {
			select {
			case <-serverCtx.Done():
				c.Close(ServerShuttingDown, "server shutting down")
			case <-ctx.Done():
			}
		}()
		go writePump(ctx, c, conn, logger)

		err = readPump(ctx, c, conn, hub, coord, logger)

		coord.Disconnect(conn.ID)
		hub.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
	}
}

// readPump decodes inbound frames and hands them to the coordinator. It
// returns the error that ended the connection, nil for a normal close.
func readPump(ctx context.Context, c *websocket.Conn, conn *Conn, hub *Hub, coord Coordinator, logger *logrus.Logger) error {
	log := logger.WithField("conn", conn.ID)
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			log.Warnf("ignoring non-text message type %d", typ)
			continue
		}

		ev, err := game.DecodeEvent(data)
		if err != nil {
			log.WithError(err).Debug("rejected inbound frame")
			hub.ToConn(conn.ID, errorMessage(err))
			continue
		}

		if err := coord.Handle(ctx, conn.ID, ev); err != nil {
			log.WithError(err).WithField("event", ev.Name()).Warn("event not applied")
			if clientVisible(err) {
				hub.ToConn(conn.ID, errorMessage(err))
			}
		}
	}
}

func writePump(ctx context.Context, c *websocket.Conn, conn *Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing %s for conn %s: %v", msg.Type, conn.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Debugf("write to conn %s failed: %v", conn.ID, err)
				conn.Cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debugf("ping to conn %s failed: %v", conn.ID, err)
				conn.Cancel()
				return
			}
		}
	}
}

func clientVisible(err error) bool {
	return errors.Is(err, game.ErrInvalidTicket) ||
		errors.Is(err, game.ErrNotJoined) ||
		errors.Is(err, game.ErrUnknownGroup)
}

func errorMessage(err error) game.Message {
	return game.Message{Type: game.MsgError, Payload: err.Error()}
}
