package service

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/repository"
	"github.com/comunna/meety-core/internal/schedule"
)

// VoteService сверяет присланный участником набор слотов с его текущим
// выбором и применяет минимальный changeset. Повтор одного и того же
// набора не порождает ни одной записи.
type VoteService struct {
	db       *gorm.DB
	users    repository.UserRepository
	events   repository.EventRepository
	slots    repository.SlotRepository
	votes    repository.VoteRepository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewVoteService(
	db *gorm.DB,
	users repository.UserRepository,
	events repository.EventRepository,
	slots repository.SlotRepository,
	votes repository.VoteRepository,
	notifier Notifier,
	logger *slog.Logger,
) *VoteService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VoteService{
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

// Submit принимает полный желаемый набор слотов участника.
func (s *VoteService) Submit(ctx context.Context, voterTelegramID, eventID int64, slotIDs []int64) (*VoteChangeset, error) {
	requested := schedule.NormalizeSlotIDs(slotIDs)
	if len(requested) == 0 {
		return nil, ErrNoSlotsSelected
	}

	var changeset *VoteChangeset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		events := s.events.WithTx(tx)
		slots := s.slots.WithTx(tx)
		votes := s.votes.WithTx(tx)

		voter, err := resolveUser(ctx, users, voterTelegramID)
		if err != nil {
			return err
		}
		e, err := getActiveEvent(ctx, events, eventID)
		if err != nil {
			return err
		}

		// Каждый запрошенный слот обязан быть живым слотом этого события:
		// чужие, удалённые и несуществующие отвергаются одинаково.
		activeIDs, err := slots.ListActiveIDs(ctx, e.ID)
		if err != nil {
			return storageFailure(err)
		}
		active := make(map[int64]struct{}, len(activeIDs))
		for _, id := range activeIDs {
			active[id] = struct{}{}
		}
		for _, id := range requested {
			if _, ok := active[id]; !ok {
				return ErrInvalidSlotSelection
			}
		}

		if e.EventType == model.EventTypePoll && !e.MultipleChoice && len(requested) > 1 {
			return ErrMultipleChoiceNotAllowed
		}

		// Текущий выбор берём под row-level lock: конкурентные сабмиты
		// одного пользователя сериализуются и diff не теряет обновлений.
		current, err := votes.ActiveSlotIDsByUser(ctx, e.ID, voter.ID, true)
		if err != nil {
			return storageFailure(err)
		}

		toAdd, toRemove := schedule.Reconcile(current, requested)

		now := s.now()
		if err := votes.SoftDeleteByUserSlots(ctx, e.ID, voter.ID, toRemove, now); err != nil {
			return storageFailure(err)
		}
		batch := make([]model.EventVote, 0, len(toAdd))
		for _, slotID := range toAdd {
			batch = append(batch, model.EventVote{
				EventID: e.ID,
				SlotID:  slotID,
				UserID:  voter.ID,
			})
		}
		if err := votes.CreateBatch(ctx, batch); err != nil {
			return storageFailure(err)
		}

		total, err := votes.CountActiveByEvent(ctx, e.ID)
		if err != nil {
			return storageFailure(err)
		}

		changeset = &VoteChangeset{
			EventID:        e.ID,
			PublicID:       e.PublicID,
			Title:          e.Title,
			Added:          len(toAdd),
			Removed:        len(toRemove),
			Total:          total,
			AddedSlotIDs:   toAdd,
			RemovedSlotIDs: toRemove,
			Voter:          userView(voter),
			Creator:        userView(e.Creator),
		}
		return nil
	})
	if err != nil {
		return nil, asEngineErr(err)
	}

	notifyAsync(s.logger, "votes_submitted", func(ctx context.Context) error {
		return s.notifier.VotesSubmitted(ctx, changeset)
	})
	return changeset, nil
}
