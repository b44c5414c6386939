package service

import (
	"context"
	"encoding/json"

	"github.com/sudo-init-do/realtime-stack/internal/hub"
)

type ChatService interface {
	HandleJoin(ctx context.Context, client *hub.Client, roomID string) error
	HandleChat(ctx context.Context, client *hub.Client, roomID string, payload json.RawMessage) error
	Close() error
}
