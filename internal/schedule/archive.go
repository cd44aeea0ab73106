package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/comunna/meety-core/internal/model"
)

// EventRow — одна строка списка событий глазами конкретного пользователя.
// Статус активно/в архиве не хранится: он выводится из (now, deleted_at,
// final_slot_start) в момент запроса.
type EventRow struct {
	EventID          int64
	PublicID         uuid.UUID
	Title            string
	EventType        model.EventType
	FinalSlotID      *int64
	FinalSlotStart   *time.Time
	IsCreator        bool
	CreatedAt        time.Time
	DeletedAt        *time.Time
	ParticipantCount int64
}

// Deleted — событие мягко удалено создателем.
func (r EventRow) Deleted() bool { return r.DeletedAt != nil }

// Expired — событие зафиксировано, и момент финального слота уже наступил.
func (r EventRow) Expired(now time.Time) bool {
	return r.FinalSlotStart != nil && !r.FinalSlotStart.After(now)
}

// Archived — событие удалено либо истекло; всё остальное активно.
func (r EventRow) Archived(now time.Time) bool {
	return r.Deleted() || r.Expired(now)
}

// Partition раскладывает события пользователя на активные и архивные
// относительно момента now и сортирует обе части.
//
// В обеих частях свои события идут раньше чужих. Среди активных
// незафиксированные идут раньше зафиксированных; среди архивных удалённые
// раньше истёкших. Ничьи разрешаются по времени создания, новые первыми.
func Partition(now time.Time, rows []EventRow) (active, archived []EventRow) {
	for _, r := range rows {
		if r.Archived(now) {
			archived = append(archived, r)
		} else {
			active = append(active, r)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.IsCreator != b.IsCreator {
			return a.IsCreator
		}
		aOpen, bOpen := a.FinalSlotID == nil, b.FinalSlotID == nil
		if aOpen != bOpen {
			return aOpen
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	sort.SliceStable(archived, func(i, j int) bool {
		a, b := archived[i], archived[j]
		if a.IsCreator != b.IsCreator {
			return a.IsCreator
		}
		if a.Deleted() != b.Deleted() {
			return a.Deleted()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return active, archived
}
