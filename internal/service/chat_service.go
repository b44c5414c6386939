package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sudo-init-do/realtime-stack/internal/domain"
	"github.com/sudo-init-do/realtime-stack/internal/hub"
	"github.com/sudo-init-do/realtime-stack/internal/relay"
	"github.com/sudo-init-do/realtime-stack/pkg/log"
)

type chatService struct {
	hub   *hub.Hub
	relay relay.MessageRelay
}

func NewChatService(h *hub.Hub, r relay.MessageRelay) ChatService {
	return &chatService{hub: h, relay: r}
}

func (s *chatService) HandleJoin(ctx context.Context, c *hub.Client, roomID string) error {
	s.hub.Join(c, roomID)

	// Ack goes to the originating session only.
	return c.SendMessage(domain.NewJoinedMessage(roomID))
}

// HandleChat fans the message out to the room and hands it to the durable
// relay. The two are independent: the relay runs on its own goroutine, and
// a relay failure never retracts or delays the completed fan-out.
func (s *chatService) HandleChat(ctx context.Context, c *hub.Client, roomID string, payload json.RawMessage) error {
	ts := time.Now().UnixMilli()

	broadcast := &domain.ChatBroadcast{
		Type:    domain.EnvelopeChat,
		RoomID:  roomID,
		From:    c.Identity,
		Payload: payload,
		Ts:      ts,
	}
	if err := s.hub.Broadcast(roomID, broadcast); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldRoomID, roomID).Msg("broadcast failed")
	}

	record := &domain.PersistRecord{
		RoomID:  roomID,
		From:    c.Identity,
		Payload: payload,
		Ts:      ts,
	}
	logger := log.Ctx(ctx)
	go func() {
		// Detached from the connection's lifecycle: an in-flight relay
		// completes or fails on its own even if the sender disconnects.
		if err := s.relay.Relay(context.Background(), record); err != nil {
			logger.Error().Err(err).
				Str(log.FieldRoomID, roomID).
				Msg("relay failed, message not durably persisted")
		}
	}()

	return nil
}

func (s *chatService) Close() error {
	return s.relay.Close()
}
