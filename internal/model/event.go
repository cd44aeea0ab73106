package model

import (
	"time"

	"github.com/google/uuid"
)

// Тип события: опрос по слотам или запись на один слот.
type EventType string

const (
	EventTypePoll    EventType = "poll"
	EventTypeBooking EventType = "booking"
)

// events
type Event struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	// Публичный идентификатор для шаринга; назначается при создании
	// и больше не меняется.
	PublicID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	// Создатель события.
	UserID int64 `gorm:"not null;index"`

	Title       string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`

	// Адрес, ссылка на Zoom/Meet или другая локация.
	Location string `gorm:"type:text"`

	// IANA-таймзона, в которой создатель задаёт слоты.
	Timezone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	EventType EventType `gorm:"type:varchar(16);not null;default:'poll';index"`

	// Имеет смысл только для poll: можно ли голосовать за несколько слотов.
	MultipleChoice bool `gorm:"not null;default:false"`

	// Зафиксированный слот. NULL — событие открыто.
	// Инвариант: слот принадлежит этому событию и не удалён.
	FinalSlotID *int64 `gorm:"index"`

	// Метки времени пишет сам движок; default на колонке нет, иначе
	// вставка её опустит.
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt *time.Time `gorm:"type:timestamp with time zone"`
	DeletedAt *time.Time `gorm:"type:timestamp with time zone;index"`

	// Навигационные поля.
	Creator   *User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	FinalSlot *EventSlot  `gorm:"foreignKey:FinalSlotID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Slots     []EventSlot `gorm:"foreignKey:EventID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// IsDeleted — мягко ли удалено событие.
func (e *Event) IsDeleted() bool { return e.DeletedAt != nil }

// IsFinalized — зафиксирован ли финальный слот.
func (e *Event) IsFinalized() bool { return e.FinalSlotID != nil }
