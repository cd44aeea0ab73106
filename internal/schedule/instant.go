package schedule

import (
	"errors"
	"regexp"
	"time"

	"github.com/comunna/meety-core/internal/model"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
	ErrInvalidTimezone   = errors.New("invalid timezone")
)

// Время слота задаётся строкой "HH:MM" (24 часа).
var clockRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseClock разбирает строку "HH:MM" в часы и минуты.
func ParseClock(s string) (hour, minute int, err error) {
	if !clockRe.MatchString(s) {
		return 0, 0, ErrInvalidTimeFormat
	}
	parsed, err := time.Parse("15:04", normalizeClock(s))
	if err != nil {
		return 0, 0, ErrInvalidTimeFormat
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func normalizeClock(s string) string {
	// "9:30" -> "09:30", чтобы парсился layout-ом 15:04.
	if len(s) == 4 {
		return "0" + s
	}
	return s
}

// LoadLocation загружает IANA-таймзону события.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, ErrInvalidTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	return loc, nil
}

// SlotInstant собирает абсолютный момент начала слота: календарный день day
// и время "HH:MM" интерпретируются в таймзоне события loc, результат — UTC.
func SlotInstant(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	local := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	return local.UTC(), nil
}

// SlotTime — один слот внутри дневной группы.
type SlotTime struct {
	ID   int64
	Time string // "HH:MM" в таймзоне события
}

// DateGroup — слоты одного календарного дня.
type DateGroup struct {
	Date  string // "YYYY-MM-DD" в таймзоне события
	Slots []SlotTime
}

// GroupSlots группирует слоты по календарным дням таймзоны события.
// Вход должен быть отсортирован по началу слота; порядок групп и слотов
// внутри группы сохраняется.
func GroupSlots(slots []model.EventSlot, loc *time.Location) []DateGroup {
	var groups []DateGroup
	for _, s := range slots {
		local := s.SlotStart.In(loc)
		date := local.Format("2006-01-02")
		item := SlotTime{ID: s.ID, Time: local.Format("15:04")}

		if n := len(groups); n > 0 && groups[n-1].Date == date {
			groups[n-1].Slots = append(groups[n-1].Slots, item)
			continue
		}
		groups = append(groups, DateGroup{Date: date, Slots: []SlotTime{item}})
	}
	return groups
}
