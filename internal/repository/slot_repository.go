package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/model"
)

type SlotRepository interface {
	// Вставить пачку слотов.
	CreateBatch(ctx context.Context, slots []model.EventSlot) error
	// Живые слоты события по возрастанию начала.
	ListActive(ctx context.Context, eventID int64) ([]model.EventSlot, error)
	// Идентификаторы живых слотов события.
	ListActiveIDs(ctx context.Context, eventID int64) ([]int64, error)
	// Живой слот события по ID.
	GetActive(ctx context.Context, eventID, slotID int64) (*model.EventSlot, error)
	// Мягко удалить слоты события; возвращает число затронутых строк.
	// Голоса по этим слотам гасит вызывающая сторона в той же транзакции.
	SoftDelete(ctx context.Context, eventID int64, slotIDs []int64, at time.Time) (int64, error)
	WithTx(tx *gorm.DB) SlotRepository
}

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) WithTx(tx *gorm.DB) SlotRepository {
	return &GormSlotRepository{db: tx}
}

func (r *GormSlotRepository) CreateBatch(ctx context.Context, slots []model.EventSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&slots).Error
}

func (r *GormSlotRepository) ListActive(ctx context.Context, eventID int64) ([]model.EventSlot, error) {
	var slots []model.EventSlot
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND deleted_at IS NULL", eventID).
		Order("slot_start ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormSlotRepository) ListActiveIDs(ctx context.Context, eventID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.EventSlot{}).
		Where("event_id = ? AND deleted_at IS NULL", eventID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormSlotRepository) GetActive(ctx context.Context, eventID, slotID int64) (*model.EventSlot, error) {
	var s model.EventSlot
	err := r.db.WithContext(ctx).
		Where("id = ? AND event_id = ? AND deleted_at IS NULL", slotID, eventID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSlotRepository) SoftDelete(ctx context.Context, eventID int64, slotIDs []int64, at time.Time) (int64, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.EventSlot{}).
		Where("event_id = ? AND id IN ? AND deleted_at IS NULL", eventID, slotIDs).
		Update("deleted_at", at)
	return res.RowsAffected, res.Error
}
