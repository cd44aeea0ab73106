package service

import (
	"context"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/repository"
)

// UserProfile — профиль, каким его передаёт уже аутентифицированный
// транспортный слой.
type UserProfile struct {
	TelegramUserID  int64
	Username        string
	FirstName       string
	LastName        string
	LanguageCode    string
	IsPremium       bool
	AllowsWriteToPM bool
	PhotoURL        string
}

// IdentityService сопоставляет внешний Telegram ID внутренней записи
// пользователя, создавая её при первом контакте.
type IdentityService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewIdentityService(users repository.UserRepository, logger *slog.Logger) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{users: users, logger: logger}
}

// ResolveUser создаёт пользователя или идемпотентно освежает профиль:
// повторный контакт с теми же данными не порождает записи в БД.
func (s *IdentityService) ResolveUser(ctx context.Context, p UserProfile) (*model.User, error) {
	if p.TelegramUserID <= 0 {
		return nil, invalidInput(CodeInvalidArgument, "telegram user id is required")
	}

	u, err := s.users.Upsert(ctx, &model.User{
		TelegramUserID:  p.TelegramUserID,
		Username:        p.Username,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		LanguageCode:    normalizeLanguage(p.LanguageCode),
		IsPremium:       p.IsPremium,
		AllowsWriteToPM: p.AllowsWriteToPM,
		PhotoURL:        p.PhotoURL,
	})
	if err != nil {
		return nil, storageFailure(err)
	}
	return u, nil
}

// normalizeLanguage приводит языковой код к каноничному BCP 47 тегу.
// Нераспознанный код отбрасывается — останется сохранённый или дефолтный.
func normalizeLanguage(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	return tag.String()
}
