package model

import "time"

// users — пользователи Telegram, создаются при первом контакте.
type User struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	TelegramUserID int64 `gorm:"not null;uniqueIndex"`

	Username  string `gorm:"type:varchar(255)"`
	FirstName string `gorm:"type:varchar(255)"`
	LastName  string `gorm:"type:varchar(255)"`

	// Нормализованный языковой тег (BCP 47), по умолчанию 'ru'.
	LanguageCode string `gorm:"type:varchar(16);not null;default:'ru'"`

	IsPremium bool `gorm:"not null;default:false"`

	// Без default на колонке: false из профиля должен записываться как есть.
	AllowsWriteToPM bool `gorm:"not null"`

	PhotoURL string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// DisplayName собирает отображаемое имя из имеющихся частей профиля.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
