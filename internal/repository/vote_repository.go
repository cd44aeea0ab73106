package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comunna/meety-core/internal/model"
)

type VoteRepository interface {
	// Идентификаторы слотов, за которые пользователь сейчас голосует.
	// lock = true берёт строки под row-level lock: конкурентные
	// submitVotes одного пользователя сериализуются на этом селекте.
	ActiveSlotIDsByUser(ctx context.Context, eventID, userID int64, lock bool) ([]int64, error)
	// Вставить пачку новых голосов.
	CreateBatch(ctx context.Context, votes []model.EventVote) error
	// Погасить голоса пользователя по перечисленным слотам.
	SoftDeleteByUserSlots(ctx context.Context, eventID, userID int64, slotIDs []int64, at time.Time) error
	// Погасить все активные голоса по перечисленным слотам (каскад при
	// удалении слота).
	SoftDeleteBySlots(ctx context.Context, eventID int64, slotIDs []int64, at time.Time) (int64, error)
	// Все активные голоса события вместе с профилями голосовавших,
	// новые первыми.
	ListActiveByEvent(ctx context.Context, eventID int64) ([]model.EventVote, error)
	// Число активных голосов события.
	CountActiveByEvent(ctx context.Context, eventID int64) (int64, error)
	WithTx(tx *gorm.DB) VoteRepository
}

type GormVoteRepository struct {
	db *gorm.DB
}

func NewGormVoteRepository(db *gorm.DB) *GormVoteRepository {
	return &GormVoteRepository{db: db}
}

func (r *GormVoteRepository) WithTx(tx *gorm.DB) VoteRepository {
	return &GormVoteRepository{db: tx}
}

func (r *GormVoteRepository) ActiveSlotIDsByUser(ctx context.Context, eventID, userID int64, lock bool) ([]int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.EventVote{}).
		Where("event_id = ? AND user_id = ? AND deleted_at IS NULL", eventID, userID)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var ids []int64
	if err := q.Pluck("slot_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormVoteRepository) CreateBatch(ctx context.Context, votes []model.EventVote) error {
	if len(votes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&votes).Error
}

func (r *GormVoteRepository) SoftDeleteByUserSlots(ctx context.Context, eventID, userID int64, slotIDs []int64, at time.Time) error {
	if len(slotIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.EventVote{}).
		Where("event_id = ? AND user_id = ? AND slot_id IN ? AND deleted_at IS NULL", eventID, userID, slotIDs).
		Update("deleted_at", at).Error
}

func (r *GormVoteRepository) SoftDeleteBySlots(ctx context.Context, eventID int64, slotIDs []int64, at time.Time) (int64, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.EventVote{}).
		Where("event_id = ? AND slot_id IN ? AND deleted_at IS NULL", eventID, slotIDs).
		Update("deleted_at", at)
	return res.RowsAffected, res.Error
}

func (r *GormVoteRepository) ListActiveByEvent(ctx context.Context, eventID int64) ([]model.EventVote, error) {
	var votes []model.EventVote
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("event_id = ? AND deleted_at IS NULL", eventID).
		Order("created_at DESC").
		Find(&votes).Error
	if err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *GormVoteRepository) CountActiveByEvent(ctx context.Context, eventID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.EventVote{}).
		Where("event_id = ? AND deleted_at IS NULL", eventID).
		Count(&total).Error
	return total, err
}
