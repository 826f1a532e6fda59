package domain

import (
	"context"

	"aquaflow/internal/models"
	"aquaflow/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SnapshotCache holds the last bulk read. Get returns nil, nil on a miss.
type SnapshotCache interface {
	Get(ctx context.Context) (*store.Snapshot, error)
	Set(ctx context.Context, snap *store.Snapshot) error
	Invalidate(ctx context.Context) error
}

// Journal records client write attempts and their outcome.
type Journal interface {
	RecordAttempt(ctx context.Context, task *models.SyncTask) error
	MarkConfirmed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errMsg string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
