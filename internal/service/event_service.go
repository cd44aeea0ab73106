package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/repository"
	"github.com/comunna/meety-core/internal/schedule"
)

// SlotDateInput — один день с набором времён "HH:MM" в таймзоне события.
type SlotDateInput struct {
	Date  time.Time
	Times []string
}

// CreateEventInput — параметры создания события.
type CreateEventInput struct {
	Title          string
	Description    string
	Location       string
	Timezone       string
	EventType      model.EventType
	MultipleChoice bool
	Dates          []SlotDateInput
}

// SlotEditInput — правка слота: без ID создаётся новый, с ID слот лишь
// валидируется (момент начала после создания неизменяем).
type SlotEditInput struct {
	ID        *int64
	SlotStart time.Time
}

// UpdateEventInput — атомарная правка события создателем.
type UpdateEventInput struct {
	EventID        int64
	Title          string
	Description    string
	Location       string
	Slots          []SlotEditInput
	DeletedSlotIDs []int64
}

// EventService — операции над событиями: создание, просмотр, списки,
// удаление и координация правок. Каждая операция — одна транзакция.
type EventService struct {
	db       *gorm.DB
	users    repository.UserRepository
	events   repository.EventRepository
	slots    repository.SlotRepository
	votes    repository.VoteRepository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewEventService(
	db *gorm.DB,
	users repository.UserRepository,
	events repository.EventRepository,
	slots repository.SlotRepository,
	votes repository.VoteRepository,
	notifier Notifier,
	logger *slog.Logger,
) *EventService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
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

// Create создаёт событие с начальным набором слотов. Времена слотов
// интерпретируются в таймзоне события и хранятся в UTC.
func (s *EventService) Create(ctx context.Context, actorTelegramID int64, in CreateEventInput) (*EventView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidInput(CodeInvalidArgument, "title must not be empty")
	}
	eventType := in.EventType
	if eventType == "" {
		eventType = model.EventTypePoll
	}
	if eventType != model.EventTypePoll && eventType != model.EventTypeBooking {
		return nil, invalidInput(CodeInvalidArgument, "unknown event type")
	}
	loc, err := schedule.LoadLocation(in.Timezone)
	if err != nil {
		return nil, invalidInput(CodeInvalidTimeFormat, "unknown timezone")
	}
	if len(in.Dates) == 0 {
		return nil, invalidInput(CodeInvalidArgument, "at least one slot is required")
	}

	// Все моменты начала разбираются до каких-либо записей.
	var instants []time.Time
	for _, d := range in.Dates {
		for _, clock := range d.Times {
			instant, err := schedule.SlotInstant(d.Date, clock, loc)
			if err != nil {
				return nil, invalidInput(CodeInvalidTimeFormat, "time slots must be in HH:MM format")
			}
			instants = append(instants, instant)
		}
	}
	if len(instants) == 0 {
		return nil, invalidInput(CodeInvalidArgument, "at least one slot is required")
	}

	var view *EventView
	var creatorView UserView
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		events := s.events.WithTx(tx)
		slots := s.slots.WithTx(tx)

		actor, err := resolveUser(ctx, users, actorTelegramID)
		if err != nil {
			return err
		}

		publicID, err := uuid.NewV7()
		if err != nil {
			return storageFailure(err)
		}

		event := &model.Event{
			PublicID:       publicID,
			UserID:         actor.ID,
			Title:          title,
			Description:    strings.TrimSpace(in.Description),
			Location:       strings.TrimSpace(in.Location),
			Timezone:       in.Timezone,
			EventType:      eventType,
			MultipleChoice: in.MultipleChoice,
		}
		if err := events.Create(ctx, event); err != nil {
			return storageFailure(err)
		}

		batch := make([]model.EventSlot, 0, len(instants))
		for _, instant := range instants {
			batch = append(batch, model.EventSlot{EventID: event.ID, SlotStart: instant})
		}
		if err := slots.CreateBatch(ctx, batch); err != nil {
			return storageFailure(err)
		}

		stored, err := slots.ListActive(ctx, event.ID)
		if err != nil {
			return storageFailure(err)
		}

		view = &EventView{
			ID:             event.ID,
			PublicID:       event.PublicID,
			UserID:         event.UserID,
			Title:          event.Title,
			Description:    event.Description,
			Location:       event.Location,
			Timezone:       event.Timezone,
			EventType:      event.EventType,
			MultipleChoice: event.MultipleChoice,
			FinalSlotID:    event.FinalSlotID,
			CreatedAt:      event.CreatedAt,
			Dates:          dateGroupViews(schedule.GroupSlots(stored, loc)),
		}

		creatorView = userView(actor)
		return nil
	})
	if err != nil {
		return nil, asEngineErr(err)
	}

	notifyAsync(s.logger, "event_created", func(ctx context.Context) error {
		return s.notifier.EventCreated(ctx, view, creatorView)
	})
	return view, nil
}

// ListActive возвращает активные события пользователя в порядке политики
// архивного классификатора.
func (s *EventService) ListActive(ctx context.Context, viewerTelegramID int64) ([]EventSummary, error) {
	active, _, err := s.partitioned(ctx, viewerTelegramID)
	if err != nil {
		return nil, err
	}
	out := make([]EventSummary, 0, len(active))
	for _, r := range active {
		out = append(out, summaryFromRow(r))
	}
	return out, nil
}

// ListArchived возвращает архив: удалённые и истёкшие события.
func (s *EventService) ListArchived(ctx context.Context, viewerTelegramID int64) ([]ArchivedEventSummary, error) {
	_, archived, err := s.partitioned(ctx, viewerTelegramID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]ArchivedEventSummary, 0, len(archived))
	for _, r := range archived {
		out = append(out, ArchivedEventSummary{
			EventSummary: summaryFromRow(r),
			IsDeleted:    r.Deleted(),
			IsExpired:    r.Expired(now),
		})
	}
	return out, nil
}

func (s *EventService) partitioned(ctx context.Context, viewerTelegramID int64) (active, archived []schedule.EventRow, err error) {
	viewer, err := resolveUser(ctx, s.users, viewerTelegramID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.events.ListForViewer(ctx, viewer.ID)
	if err != nil {
		return nil, nil, storageFailure(err)
	}
	active, archived = schedule.Partition(s.now(), rows)
	return active, archived, nil
}

func summaryFromRow(r schedule.EventRow) EventSummary {
	return EventSummary{
		ID:               r.EventID,
		PublicID:         r.PublicID,
		Title:            r.Title,
		EventType:        r.EventType,
		ParticipantCount: r.ParticipantCount,
		FinalSlotID:      r.FinalSlotID,
		IsCreator:        r.IsCreator,
	}
}

// Get возвращает полную карточку события глазами зрителя.
func (s *EventService) Get(ctx context.Context, viewerTelegramID, eventID int64) (*EventFullView, error) {
	viewer, err := resolveUser(ctx, s.users, viewerTelegramID)
	if err != nil {
		return nil, err
	}
	e, err := getActiveEvent(ctx, s.events, eventID)
	if err != nil {
		return nil, err
	}
	return buildFullView(ctx, s.slots, s.votes, e, viewer)
}

// GetByPublicID — то же по публичному идентификатору.
func (s *EventService) GetByPublicID(ctx context.Context, viewerTelegramID int64, publicID uuid.UUID) (*EventFullView, error) {
	viewer, err := resolveUser(ctx, s.users, viewerTelegramID)
	if err != nil {
		return nil, err
	}
	e, err := s.events.GetActiveByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, storageFailure(err)
	}
	return buildFullView(ctx, s.slots, s.votes, e, viewer)
}

// SoftDelete помечает событие удалённым. Запись остаётся tombstone-ом,
// физически ничего не стирается.
func (s *EventService) SoftDelete(ctx context.Context, actorTelegramID, eventID int64) (*DeleteResult, error) {
	var result *DeleteResult
	var actorView UserView

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		events := s.events.WithTx(tx)

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

		// Снимок до удаления — он уходит в подтверждение и коллаборатору.
		result = &DeleteResult{EventID: e.ID, Event: eventDetails(e, actor)}
		actorView = userView(actor)

		if err := events.SoftDelete(ctx, e.ID, s.now()); err != nil {
			return storageFailure(err)
		}
		return nil
	})
	if err != nil {
		return nil, asEngineErr(err)
	}

	notifyAsync(s.logger, "event_deleted", func(ctx context.Context) error {
		return s.notifier.EventDeleted(ctx, result, actorView)
	})
	return result, nil
}

// Update атомарно применяет правки создателя: поля события, новые слоты
// и мягкое удаление перечисленных слотов с каскадом по их голосам.
// Любая ошибка валидации отменяет всё.
func (s *EventService) Update(ctx context.Context, actorTelegramID int64, in UpdateEventInput) (*EventFullView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalidInput(CodeInvalidArgument, "title must not be empty")
	}
	if len(in.Slots) == 0 {
		return nil, invalidInput(CodeInvalidArgument, "at least one slot is required")
	}
	deletedIDs := schedule.NormalizeSlotIDs(in.DeletedSlotIDs)
	if len(deletedIDs) != len(in.DeletedSlotIDs) {
		return nil, invalidSlotID("duplicate slot ids in deleted list")
	}

	var view *EventFullView
	var actorView UserView

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		events := s.events.WithTx(tx)
		slots := s.slots.WithTx(tx)
		votes := s.votes.WithTx(tx)

		actor, err := resolveUser(ctx, users, actorTelegramID)
		if err != nil {
			return err
		}
		e, err := getActiveEvent(ctx, events, in.EventID)
		if err != nil {
			return err
		}
		if e.UserID != actor.ID {
			return ErrNotCreator
		}

		activeIDs, err := slots.ListActiveIDs(ctx, e.ID)
		if err != nil {
			return storageFailure(err)
		}
		active := make(map[int64]struct{}, len(activeIDs))
		for _, id := range activeIDs {
			active[id] = struct{}{}
		}

		for _, id := range deletedIDs {
			if _, ok := active[id]; !ok {
				return invalidSlotID("deleted slot does not belong to the event")
			}
			if e.FinalSlotID != nil && *e.FinalSlotID == id {
				return invalidSlotID("the finalized slot cannot be deleted")
			}
		}
		for _, edit := range in.Slots {
			if edit.ID != nil {
				if _, ok := active[*edit.ID]; !ok {
					return invalidSlotID("edited slot does not belong to the event")
				}
				continue
			}
			if edit.SlotStart.IsZero() {
				return invalidInput(CodeInvalidTimeFormat, "slot start is required")
			}
		}

		now := s.now()
		if err := events.UpdateFields(ctx, e.ID, map[string]any{
			"title":       title,
			"description": strings.TrimSpace(in.Description),
			"location":    strings.TrimSpace(in.Location),
			"updated_at":  now,
		}); err != nil {
			return storageFailure(err)
		}

		// Слот нельзя удалить, оставив на нём живые голоса:
		// каскад выполняется тем же now в той же транзакции.
		if len(deletedIDs) > 0 {
			if _, err := slots.SoftDelete(ctx, e.ID, deletedIDs, now); err != nil {
				return storageFailure(err)
			}
			if _, err := votes.SoftDeleteBySlots(ctx, e.ID, deletedIDs, now); err != nil {
				return storageFailure(err)
			}
		}

		var created []model.EventSlot
		for _, edit := range in.Slots {
			if edit.ID == nil {
				created = append(created, model.EventSlot{
					EventID:   e.ID,
					SlotStart: edit.SlotStart.UTC(),
				})
			}
		}
		if err := slots.CreateBatch(ctx, created); err != nil {
			return storageFailure(err)
		}

		reloaded, err := getActiveEvent(ctx, events, e.ID)
		if err != nil {
			return err
		}
		view, err = buildFullView(ctx, slots, votes, reloaded, actor)
		if err != nil {
			return err
		}
		actorView = userView(actor)
		return nil
	})
	if err != nil {
		return nil, asEngineErr(err)
	}

	notifyAsync(s.logger, "event_updated", func(ctx context.Context) error {
		return s.notifier.EventUpdated(ctx, view, actorView)
	})
	return view, nil
}

// resolveUser переводит Telegram ID в запись пользователя.
func resolveUser(ctx context.Context, users repository.UserRepository, telegramUserID int64) (*model.User, error) {
	u, err := users.FindByTelegramID(ctx, telegramUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storageFailure(err)
	}
	return u, nil
}

func getActiveEvent(ctx context.Context, events repository.EventRepository, eventID int64) (*model.Event, error) {
	e, err := events.GetActive(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, storageFailure(err)
	}
	return e, nil
}

// buildFullView собирает полную карточку: слоты с агрегатами голосов,
// участники и голоса зрителя. Счётчики считаются на момент запроса,
// ничего не кэшируется.
func buildFullView(
	ctx context.Context,
	slots repository.SlotRepository,
	votes repository.VoteRepository,
	e *model.Event,
	viewer *model.User,
) (*EventFullView, error) {
	stored, err := slots.ListActive(ctx, e.ID)
	if err != nil {
		return nil, storageFailure(err)
	}
	activeVotes, err := votes.ListActiveByEvent(ctx, e.ID)
	if err != nil {
		return nil, storageFailure(err)
	}
	return &EventFullView{
		Event:            eventDetails(e, viewer),
		Slots:            buildSlotViews(stored, activeVotes, viewer),
		Participants:     participantViews(activeVotes),
		CurrentUserVotes: userVoteViews(activeVotes, viewer),
	}, nil
}
