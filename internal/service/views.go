package service

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/schedule"
)

// Структурированные результаты операций ядра. Транспортный и
// нотификационный слои работают только с этими типами — текст они
// рендерят сами.

type UserView struct {
	TelegramUserID  int64
	Username        string
	FirstName       string
	LastName        string
	LanguageCode    string
	PhotoURL        string
	AllowsWriteToPM bool
}

func userView(u *model.User) UserView {
	if u == nil {
		return UserView{}
	}
	return UserView{
		TelegramUserID:  u.TelegramUserID,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		LanguageCode:    u.LanguageCode,
		PhotoURL:        u.PhotoURL,
		AllowsWriteToPM: u.AllowsWriteToPM,
	}
}

// Слоты созданного события, сгруппированные по дням таймзоны события.
type SlotTimeView struct {
	ID   int64
	Time string // "HH:MM"
}

type DateGroupView struct {
	Date      string // "YYYY-MM-DD"
	TimeSlots []SlotTimeView
}

// EventView — результат создания события.
type EventView struct {
	ID             int64
	PublicID       uuid.UUID
	UserID         int64
	Title          string
	Description    string
	Location       string
	Timezone       string
	EventType      model.EventType
	MultipleChoice bool
	FinalSlotID    *int64
	CreatedAt      time.Time
	Dates          []DateGroupView
}

// EventSummary — строка списка активных событий.
type EventSummary struct {
	ID               int64
	PublicID         uuid.UUID
	Title            string
	EventType        model.EventType
	ParticipantCount int64
	FinalSlotID      *int64
	IsCreator        bool
}

// ArchivedEventSummary — строка архива с причиной попадания в него.
type ArchivedEventSummary struct {
	EventSummary
	IsDeleted bool
	IsExpired bool
}

// EventDetails — карточка события.
type EventDetails struct {
	ID             int64
	PublicID       uuid.UUID
	Title          string
	Description    string
	Location       string
	Timezone       string
	EventType      model.EventType
	MultipleChoice bool
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	UserID         int64
	FinalSlotID    *int64
	IsCreator      bool
	Creator        UserView
}

type SlotVoterView struct {
	UserView
	VotedAt time.Time
}

// SlotView — слот с агрегатами по голосам для конкретного зрителя.
type SlotView struct {
	ID               int64
	SlotStart        time.Time
	CreatedAt        time.Time
	VoteCount        int64
	CurrentUserVoted bool
	Voters           []SlotVoterView
}

type UserVoteView struct {
	SlotID    int64
	CreatedAt time.Time
}

// EventFullView — событие целиком: карточка, слоты, участники и
// голоса зрителя.
type EventFullView struct {
	Event            EventDetails
	Slots            []SlotView
	Participants     []UserView
	CurrentUserVotes []UserVoteView
}

// VoteChangeset — итог сверки голосов: сколько добавлено и снято,
// сколько всего активных голосов осталось, плюс контекст для
// нотификационного слоя.
type VoteChangeset struct {
	EventID        int64
	PublicID       uuid.UUID
	Title          string
	Added          int
	Removed        int
	Total          int64
	AddedSlotIDs   []int64
	RemovedSlotIDs []int64
	Voter          UserView
	Creator        UserView
}

// FinalizeResult — подтверждение фиксации слота.
type FinalizeResult struct {
	EventID      int64
	PublicID     uuid.UUID
	Title        string
	Timezone     string
	Location     string
	FinalSlotID  int64
	SlotStart    time.Time
	Creator      UserView
	Participants []UserView
}

// UnfinalizeResult — подтверждение возврата события в открытое состояние.
type UnfinalizeResult struct {
	Event        EventDetails
	Participants []UserView
}

// DeleteResult — подтверждение удаления со снимком события до удаления.
type DeleteResult struct {
	EventID int64
	Event   EventDetails
}

func eventDetails(e *model.Event, viewer *model.User) EventDetails {
	return EventDetails{
		ID:             e.ID,
		PublicID:       e.PublicID,
		Title:          e.Title,
		Description:    e.Description,
		Location:       e.Location,
		Timezone:       e.Timezone,
		EventType:      e.EventType,
		MultipleChoice: e.MultipleChoice,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		UserID:         e.UserID,
		FinalSlotID:    e.FinalSlotID,
		IsCreator:      viewer != nil && viewer.ID == e.UserID,
		Creator:        userView(e.Creator),
	}
}

func dateGroupViews(groups []schedule.DateGroup) []DateGroupView {
	out := make([]DateGroupView, 0, len(groups))
	for _, g := range groups {
		slots := make([]SlotTimeView, 0, len(g.Slots))
		for _, s := range g.Slots {
			slots = append(slots, SlotTimeView{ID: s.ID, Time: s.Time})
		}
		out = append(out, DateGroupView{Date: g.Date, TimeSlots: slots})
	}
	return out
}

// buildSlotViews агрегирует активные голоса по слотам.
// votes должны идти новыми вперёд — порядок voters сохраняется.
func buildSlotViews(slots []model.EventSlot, votes []model.EventVote, viewer *model.User) []SlotView {
	bySlot := make(map[int64][]model.EventVote, len(slots))
	for _, v := range votes {
		bySlot[v.SlotID] = append(bySlot[v.SlotID], v)
	}

	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		sv := SlotView{
			ID:        s.ID,
			SlotStart: s.SlotStart,
			CreatedAt: s.CreatedAt,
		}
		for _, v := range bySlot[s.ID] {
			sv.VoteCount++
			if viewer != nil && v.UserID == viewer.ID {
				sv.CurrentUserVoted = true
			}
			sv.Voters = append(sv.Voters, SlotVoterView{
				UserView: userView(v.User),
				VotedAt:  v.CreatedAt,
			})
		}
		views = append(views, sv)
	}
	return views
}

// participantViews — уникальные проголосовавшие, отсортированные по имени.
func participantViews(votes []model.EventVote) []UserView {
	seen := make(map[int64]struct{}, len(votes))
	var out []UserView
	for _, v := range votes {
		if _, ok := seen[v.UserID]; ok {
			continue
		}
		seen[v.UserID] = struct{}{}
		out = append(out, userView(v.User))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].Username < out[j].Username
	})
	return out
}

func userVoteViews(votes []model.EventVote, viewer *model.User) []UserVoteView {
	if viewer == nil {
		return nil
	}
	var out []UserVoteView
	for _, v := range votes {
		if v.UserID == viewer.ID {
			out = append(out, UserVoteView{SlotID: v.SlotID, CreatedAt: v.CreatedAt})
		}
	}
	return out
}
