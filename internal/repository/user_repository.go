package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/model"
)

type UserRepository interface {
	// Найти пользователя по Telegram ID.
	FindByTelegramID(ctx context.Context, telegramUserID int64) (*model.User, error)
	// Создать пользователя при первом контакте либо идемпотентно обновить
	// профиль. Если значимые поля не изменились — записи в БД нет.
	Upsert(ctx context.Context, in *model.User) (*model.User, error)
	// WithTx возвращает репозиторий, работающий внутри транзакции tx.
	WithTx(tx *gorm.DB) UserRepository
}

// Реализация на GORM.
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) WithTx(tx *gorm.DB) UserRepository {
	return &GormUserRepository{db: tx}
}

func (r *GormUserRepository) FindByTelegramID(ctx context.Context, telegramUserID int64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("telegram_user_id = ?", telegramUserID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Upsert(ctx context.Context, in *model.User) (*model.User, error) {
	var u model.User
	tx := r.db.WithContext(ctx).Where("telegram_user_id = ?", in.TelegramUserID).First(&u)
	if tx.Error != nil {
		if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, tx.Error
		}
		created := *in
		if created.LanguageCode == "" {
			created.LanguageCode = "ru"
		}
		if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
			return nil, err
		}
		return &created, nil
	}

	updates := map[string]any{}
	if u.Username != in.Username {
		updates["username"] = in.Username
	}
	if u.FirstName != in.FirstName {
		updates["first_name"] = in.FirstName
	}
	if u.LastName != in.LastName {
		updates["last_name"] = in.LastName
	}
	// Язык и фото обновляем только при наличии нового значения,
	// пустое значение не затирает сохранённое.
	if in.LanguageCode != "" && u.LanguageCode != in.LanguageCode {
		updates["language_code"] = in.LanguageCode
	}
	if in.PhotoURL != "" && u.PhotoURL != in.PhotoURL {
		updates["photo_url"] = in.PhotoURL
	}
	if u.IsPremium != in.IsPremium {
		updates["is_premium"] = in.IsPremium
	}
	if u.AllowsWriteToPM != in.AllowsWriteToPM {
		updates["allows_write_to_pm"] = in.AllowsWriteToPM
	}

	if len(updates) == 0 {
		return &u, nil
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_user_id = ?", in.TelegramUserID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.FindByTelegramID(ctx, in.TelegramUserID)
}
