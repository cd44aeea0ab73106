package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/schedule"
)

type EventRepository interface {
	// Создать событие.
	Create(ctx context.Context, event *model.Event) error
	// Получить живое (не удалённое) событие по ID вместе с создателем.
	GetActive(ctx context.Context, id int64) (*model.Event, error)
	// То же по публичному идентификатору.
	GetActiveByPublicID(ctx context.Context, publicID uuid.UUID) (*model.Event, error)
	// Обновить поля события.
	UpdateFields(ctx context.Context, id int64, updates map[string]any) error
	// Мягко удалить событие.
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	// Finalize записывает финальный слот compare-and-set-ом: апдейт проходит
	// только пока final_slot_id пуст, а событие живо. false — ноль строк.
	Finalize(ctx context.Context, eventID, slotID int64, location *string, at time.Time) (bool, error)
	// Unfinalize снимает финализацию; false — финального слота не было.
	Unfinalize(ctx context.Context, eventID int64, at time.Time) (bool, error)
	// ListForViewer возвращает строки всех событий пользователя: созданных
	// им и тех, где он когда-либо голосовал. Погашенный голос членство не
	// отменяет, участие остаётся в истории. Классификация активно/в архиве
	// выполняется поверх, в schedule.Partition.
	ListForViewer(ctx context.Context, userID int64) ([]schedule.EventRow, error)
	WithTx(tx *gorm.DB) EventRepository
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &GormEventRepository{db: tx}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) GetActive(ctx context.Context, id int64) (*model.Event, error) {
	var e model.Event
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormEventRepository) GetActiveByPublicID(ctx context.Context, publicID uuid.UUID) (*model.Event, error) {
	var e model.Event
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("public_id = ? AND deleted_at IS NULL", publicID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *GormEventRepository) UpdateFields(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(updates).Error
}

func (r *GormEventRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", at).Error
}

func (r *GormEventRepository) Finalize(ctx context.Context, eventID, slotID int64, location *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"final_slot_id": slotID,
		"updated_at":    at,
	}
	if location != nil {
		updates["location"] = *location
	}
	res := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ? AND final_slot_id IS NULL AND deleted_at IS NULL", eventID).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormEventRepository) Unfinalize(ctx context.Context, eventID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("id = ? AND final_slot_id IS NOT NULL AND deleted_at IS NULL", eventID).
		Updates(map[string]any{
			"final_slot_id": nil,
			"updated_at":    at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormEventRepository) ListForViewer(ctx context.Context, userID int64) ([]schedule.EventRow, error) {
	var rows []schedule.EventRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			e.id            AS event_id,
			e.public_id     AS public_id,
			e.title         AS title,
			e.event_type    AS event_type,
			e.final_slot_id AS final_slot_id,
			fs.slot_start   AS final_slot_start,
			(e.user_id = ?) AS is_creator,
			e.created_at    AS created_at,
			e.deleted_at    AS deleted_at,
			(SELECT COUNT(DISTINCT v.user_id)
			   FROM event_votes v
			  WHERE v.event_id = e.id AND v.deleted_at IS NULL) AS participant_count
		FROM events e
		LEFT JOIN event_slots fs ON fs.id = e.final_slot_id
		WHERE e.user_id = ?
		   OR EXISTS (SELECT 1 FROM event_votes pv
		               WHERE pv.event_id = e.id
		                 AND pv.user_id = ?)
	`, userID, userID, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
