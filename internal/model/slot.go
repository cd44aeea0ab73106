package model

import "time"

// event_slots — кандидатные начала события.
// Принадлежность слота событию не меняется; слот либо живёт,
// либо мягко удалён, обратно не восстанавливается.
type EventSlot struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	EventID int64 `gorm:"not null;index"`

	// Абсолютный момент начала, хранится в UTC.
	SlotStart time.Time `gorm:"type:timestamp with time zone;not null;index"`

	CreatedAt time.Time  `gorm:"not null"`
	DeletedAt *time.Time `gorm:"type:timestamp with time zone;index"`

	Event *Event `gorm:"foreignKey:EventID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
