package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/repository"
)

// FinalizeService — машина состояний open → finalized → open.
// Переход в finalized пишется compare-and-set-ом: из двух конкурентных
// finalize второй получает AlreadyFinalized, а не молча перезаписывает.
type FinalizeService struct {
	db       *gorm.DB
	users    repository.UserRepository
	events   repository.EventRepository
	slots    repository.SlotRepository
	votes    repository.VoteRepository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewFinalizeService(
	db *gorm.DB,
	users repository.UserRepository,
	events repository.EventRepository,
	slots repository.SlotRepository,
	votes repository.VoteRepository,
	notifier Notifier,
	logger *slog.Logger,
) *FinalizeService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FinalizeService{
		db:       db,
		users:    users,
		events:   events,
		slots:    slots,
		votes:    votes,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Finalize фиксирует событие на одном слоте. Остальные слоты и голоса не
// трогаются — помечается только выбранный. Непустая location записывается
// на событие той же транзакцией.
func (s *FinalizeService) Finalize(ctx context.Context, actorTelegramID, eventID, slotID int64, location string) (*FinalizeResult, error) {
	var result *FinalizeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		events := s.events.WithTx(tx)
		slots := s.slots.WithTx(tx)
		votes := s.votes.WithTx(tx)

		actor, err := resolveUser(ctx, users, actorTelegramID)
		if err != nil {
			return err
		}
		e, err := getActiveEvent(ctx, events, eventID)
		if err != nil {
			return err
		}
		if e.UserID != actor.ID {
			return ErrNotCreator
		}
		if e.IsFinalized() {
			return ErrAlreadyFinalized
		}

		slot, err := slots.GetActive(ctx, e.ID, slotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSlotNotFound
			}
			return storageFailure(err)
		}

		var loc *string
		if trimmed := strings.TrimSpace(location); trimmed != "" {
			loc = &trimmed
		}

		// Ранняя проверка выше — лишь быстрый отказ; гонку решает само
		// условие апдейта. Ноль затронутых строк значит, что final_slot_id
		// успел появиться (или событие удалили) между чтением и записью.
		ok, err := events.Finalize(ctx, e.ID, slot.ID, loc, s.now())
		if err != nil {
			return storageFailure(err)
		}
		if !ok {
			if _, err := getActiveEvent(ctx, events, e.ID); err != nil {
				return err
			}
			return ErrAlreadyFinalized
		}

		activeVotes, err := votes.ListActiveByEvent(ctx, e.ID)
		if err != nil {
			return storageFailure(err)
		}

		result = &FinalizeResult{
			EventID:      e.ID,
			PublicID:     e.PublicID,
			Title:        e.Title,
			Timezone:     e.Timezone,
			Location:     chooseLocation(loc, e.Location),
			FinalSlotID:  slot.ID,
			SlotStart:    slot.SlotStart,
			Creator:      userView(e.Creator),
			Participants: participantViews(activeVotes),
		}
		return nil
	})
	if err != nil {
		return nil, asEngineErr(err)
	}

	notifyAsync(s.logger, "event_finalized", func(ctx context.Context) error {
		return s.notifier.EventFinalized(ctx, result)
	})
	return result, nil
}

// Unfinalize возвращает событие в открытое состояние: final_slot_id
// очищается, слоты и голоса остаются в точности как были.
func (s *FinalizeService) Unfinalize(ctx context.Context, actorTelegramID, eventID int64) (*UnfinalizeResult, error) {
	var result *UnfinalizeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		events := s.events.WithTx(tx)
		votes := s.votes.WithTx(tx)

		actor, err := resolveUser(ctx, users, actorTelegramID)
		if err != nil {
			return err
		}
		e, err := getActiveEvent(ctx, events, eventID)
		if err != nil {
			return err
		}
		if e.UserID != actor.ID {
			return ErrNotCreator
		}
		if !e.IsFinalized() {
			return ErrNotFinalized
		}

		ok, err := events.Unfinalize(ctx, e.ID, s.now())
		if err != nil {
			return storageFailure(err)
		}
		if !ok {
			return ErrNotFinalized
		}

		restored, err := getActiveEvent(ctx, events, e.ID)
		if err != nil {
			return err
		}
		activeVotes, err := votes.ListActiveByEvent(ctx, e.ID)
		if err != nil {
			return storageFailure(err)
		}

		result = &UnfinalizeResult{
			Event:        eventDetails(restored, actor),
			Participants: participantViews(activeVotes),
		}
		return nil
	})
	if err != nil {
		return nil, asEngineErr(err)
	}

	notifyAsync(s.logger, "event_unfinalized", func(ctx context.Context) error {
		return s.notifier.EventUnfinalized(ctx, result)
	})
	return result, nil
}

func chooseLocation(updated *string, existing string) string {
	if updated != nil {
		return *updated
	}
	return existing
}
