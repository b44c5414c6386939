package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sudo-init-do/realtime-stack/internal/auth"
	"github.com/sudo-init-do/realtime-stack/internal/config"
	"github.com/sudo-init-do/realtime-stack/internal/domain"
	"github.com/sudo-init-do/realtime-stack/internal/hub"
	"github.com/sudo-init-do/realtime-stack/internal/service"
	"github.com/sudo-init-do/realtime-stack/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub      *hub.Hub
	service  service.ChatService
	verifier *auth.Verifier
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.ChatService, verifier *auth.Verifier, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		verifier: verifier,
		wsCfg:    wsCfg,
	}
}

// HandleWebSocket admits a connection. The bearer token arrives as a query
// parameter; a connection that fails verification is closed with a policy
// violation code before any session state exists.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	subject, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		log.L().Info().Err(err).Str("remote", r.RemoteAddr).Msg("connection rejected")
		reject(conn)
		return
	}

	client := hub.NewClient(uuid.New().String(), subject, h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func reject(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Invalid token")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}

// handleMessage dispatches one inbound envelope. Malformed or incomplete
// envelopes are dropped without any reply; the connection stays open.
func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	logger := log.L().With().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldSubject, client.Identity).
		Logger()
	ctx := log.WithLogger(context.Background(), &logger)

	switch env.Type {
	case domain.EnvelopeJoin:
		if env.RoomID == "" {
			return
		}
		if err := h.service.HandleJoin(ctx, client, env.RoomID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("join failed")
		}

	case domain.EnvelopeChat:
		if env.RoomID == "" || !env.HasPayload() {
			return
		}
		if err := h.service.HandleChat(ctx, client, env.RoomID, env.Payload); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("chat failed")
		}
	}
}

func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebSocket)
}
