package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aeroprep/examd/internal/lifecycle"
	ws "github.com/aeroprep/examd/internal/websocket"
)

// stateStreamInterval is the polling cadence for snapshot pushes. One second
// keeps the countdown smooth without flooding the connection.
const stateStreamInterval = time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams state snapshots over WebSocket.
type WSHandler struct {
	controller *lifecycle.Controller
	log        zerolog.Logger
	upgrader   websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(controller *lifecycle.Controller, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		controller: controller,
		log:        log.With().Str("component", "ws_handler").Logger(),
		upgrader:   buildUpgrader(allowedOrigins),
	}
}

// StateStream godoc
// WS /ws/v1/exam/stream
// Upgrades to WebSocket and pushes a snapshot whenever the observable state
// changes, including each countdown second while an exam is active.
func (h *WSHandler) StateStream(c *gin.Context) {
	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	// The read pump and the push loop both write; the wrapper serializes
	// their frames.
	conn := ws.Wrap(raw)
	defer conn.Close()

	h.log.Info().Str("remote", conn.RemoteAddr()).Msg("Client connected")

	// Read pump: answers pings and detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg ws.RequestEnvelope
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Warn().Err(err).Msg("Unexpected close")
				} else {
					h.log.Debug().Msg("Connection closed")
				}
				return
			}
			switch msg.Action {
			case ws.ActionPing:
				conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			default:
				conn.WriteError("unknown action: " + string(msg.Action))
			}
		}
	}()

	ticker := time.NewTicker(stateStreamInterval)
	defer ticker.Stop()

	var lastSent []byte
	push := func() bool {
		view := buildSnapshotView(h.controller.Snapshot())
		encoded, err := json.Marshal(view)
		if err != nil {
			h.log.Error().Err(err).Msg("Snapshot encode failed")
			return true
		}
		if lastSent != nil && string(encoded) == string(lastSent) {
			return true
		}
		lastSent = encoded
		if err := conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Snapshot: json.RawMessage(encoded)}); err != nil {
			h.log.Debug().Err(err).Msg("Write failed")
			return false
		}
		return true
	}

	// Initial snapshot on connect.
	if !push() {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if !push() {
				return
			}
		}
	}
}
