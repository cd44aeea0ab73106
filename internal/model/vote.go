package model

import "time"

// event_votes — активный выбор слота участником.
// Не более одного активного голоса на пару (slot, user): инвариант
// закреплён частичным уникальным индексом, конкурентная вставка дубля
// падает на нём. При повторном выборе после отмены создаётся новая
// запись, старая остаётся tombstone-ом.
type EventVote struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	EventID int64 `gorm:"not null;index"`
	SlotID  int64 `gorm:"not null;index;uniqueIndex:uniq_event_votes_active,where:deleted_at IS NULL"`
	UserID  int64 `gorm:"not null;index;uniqueIndex:uniq_event_votes_active,where:deleted_at IS NULL"`

	CreatedAt time.Time  `gorm:"not null"`
	DeletedAt *time.Time `gorm:"type:timestamp with time zone;index"`

	Event *Event     `gorm:"foreignKey:EventID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Slot  *EventSlot `gorm:"foreignKey:SlotID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	User  *User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
