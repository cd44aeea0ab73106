package service

import (
	"context"
	"log/slog"
)

// Notifier — коллаборатор, которому ядро отдаёт результаты операций.
// Рендеринг и доставку сообщений он делает сам; ядро текст не формирует.
type Notifier interface {
	EventCreated(ctx context.Context, event *EventView, creator UserView) error
	EventUpdated(ctx context.Context, event *EventFullView, actor UserView) error
	EventDeleted(ctx context.Context, result *DeleteResult, actor UserView) error
	VotesSubmitted(ctx context.Context, changeset *VoteChangeset) error
	EventFinalized(ctx context.Context, result *FinalizeResult) error
	EventUnfinalized(ctx context.Context, result *UnfinalizeResult) error
}

// NopNotifier — заглушка для тестов и окружений без нотификаций.
type NopNotifier struct{}

func (NopNotifier) EventCreated(context.Context, *EventView, UserView) error { return nil }
func (NopNotifier) EventUpdated(context.Context, *EventFullView, UserView) error { return nil }
func (NopNotifier) EventDeleted(context.Context, *DeleteResult, UserView) error { return nil }
func (NopNotifier) VotesSubmitted(context.Context, *VoteChangeset) error { return nil }
func (NopNotifier) EventFinalized(context.Context, *FinalizeResult) error { return nil }
func (NopNotifier) EventUnfinalized(context.Context, *UnfinalizeResult) error { return nil }

// notifyAsync запускает уведомление в фоне. Операция ядра к этому моменту
// уже завершена: ошибки доставки только логируются и никогда не влияют
// на её результат.
func notifyAsync(logger *slog.Logger, op string, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("notifier panicked", "op", op, "panic", r)
			}
		}()
		if err := fn(context.Background()); err != nil {
			logger.Error("notify failed", "op", op, "err", err)
		}
	}()
}
