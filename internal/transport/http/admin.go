// Package http exposes the admin surface of a session: start/kick/finish
// controls plus a WebSocket observer feed of roster and leaderboard changes.
// It replaces the original operator windows with an API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kahyeet/internal/domain"
	"kahyeet/internal/game"
)

type AdminHandler struct {
	session  *game.Session
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewAdminHandler(session *game.Session, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{
		session: session,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes wires the admin endpoints onto a mux.
func (h *AdminHandler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/players", h.handlePlayers)
	mux.HandleFunc("/start", h.handleStart)
	mux.HandleFunc("/finish", h.handleFinish)
	mux.HandleFunc("/kick", h.handleKick)
	mux.HandleFunc("/ws", h.handleObserver)
	return mux
}

type stateResponse struct {
	SessionID   string                    `json:"sessionId"`
	Phase       string                    `json:"phase"`
	Players     []domain.Player           `json:"players"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
}

func (h *AdminHandler) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, stateResponse{
		SessionID:   h.session.ID(),
		Phase:       h.session.Phase().String(),
		Players:     h.session.Players(),
		Leaderboard: h.session.Leaderboard(),
	})
}

func (h *AdminHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.session.StartGame(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.session.Finish(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) handleKick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	player := r.URL.Query().Get("player")
	if player == "" {
		http.Error(w, "missing player", http.StatusBadRequest)
		return
	}
	if err := h.session.Kick(player); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrUnknownPlayer) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleObserver streams session snapshots over a WebSocket until the peer
// goes away.
func (h *AdminHandler) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("observer upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	snapshots, cancel := h.session.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Reads are discarded; this loop only detects the peer closing.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				h.log.Debug("observer write failed", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
