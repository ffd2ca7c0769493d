// internal/handlers/api_server.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jason-s-yu/scatter/internal/middleware"
	"github.com/jason-s-yu/scatter/internal/models"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrSize       = 320
	historyLimit = 20
)

// History reads stored round results.
type History interface {
	RecentRounds(ctx context.Context, group string, limit int) ([]models.RoundRecord, error)
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	// ClientURL is the origin of the browser client. It is the only origin
	// allowed by CORS and the base of QR join links. Empty allows any origin.
	ClientURL string
	WS        WSConfig
	// History serves GET /groups/:group/rounds. Nil leaves the route unregistered.
	History History
}

// NewRouter wires every HTTP route behind CORS and request logging.
func NewRouter(serverCtx context.Context, logger *logrus.Logger, hub *Hub, coord Coordinator, cfg APIConfig) http.Handler {
	mux := httprouter.New()

	mux.GET("/", pingHandler)
	mux.GET("/ws", WSHandler(serverCtx, logger, hub, coord, cfg.WS))
	mux.GET("/groups", listGroupsHandler(coord))
	mux.GET("/groups/:group", groupHandler(coord))
	mux.GET("/groups/:group/qr", qrHandler(cfg.ClientURL))
	if cfg.History != nil {
		mux.GET("/groups/:group/rounds", roundsHandler(logger, cfg.History))
	}

	origins := []string{"*"}
	if cfg.ClientURL != "" {
		origins = []string{strings.TrimSuffix(cfg.ClientURL, "/")}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowCredentials: cfg.ClientURL != "",
	})

	return middleware.LogMiddleware(logger)(c.Handler(mux))
}

func pingHandler(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

func listGroupsHandler(coord Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"groups": coord.Groups()})
	}
}

func groupHandler(coord Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
		snap, ok := coord.Snapshot(ps.ByName("group"))
		if !ok {
			http.Error(w, "group not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func roundsHandler(logger *logrus.Logger, history History) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		limit := historyLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 100 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		group := ps.ByName("group")
		rounds, err := history.RecentRounds(r.Context(), group, limit)
		if err != nil {
			logger.WithError(err).WithField("group", group).Error("load round history")
			http.Error(w, "failed to load rounds", http.StatusInternalServerError)
			return
		}
		if rounds == nil {
			rounds = []models.RoundRecord{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"rounds": rounds})
	}
}

// qrHandler renders a PNG QR code of the client's join link for a group.
// Without a configured client URL the link points back at this host.
func qrHandler(clientURL string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		group := ps.ByName("group")
		if group == "" {
			http.Error(w, "missing group", http.StatusBadRequest)
			return
		}

		base := strings.TrimSuffix(clientURL, "/")
		if base == "" {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
				scheme = proto
			}
			base = scheme + "://" + r.Host
		}
		link := base + "/?group=" + url.QueryEscape(group)

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
