package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/comunna/meety-core/internal/model"
)

func createPoll(t *testing.T, env *testEnv, tgID int64, multiple bool, times ...string) (*EventView, []int64) {
	t.Helper()

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	view, err := env.events.Create(context.Background(), tgID, CreateEventInput{
		Title:          "Poll",
		Timezone:       "UTC",
		EventType:      model.EventTypePoll,
		MultipleChoice: multiple,
		Dates:          singleDay(day, times...),
	})
	if err != nil {
		t.Fatalf("create poll: %v", err)
	}
	var ids []int64
	for _, g := range view.Dates {
		for _, s := range g.TimeSlots {
			ids = append(ids, s.ID)
		}
	}
	return view, ids
}

func TestVoteService_Submit_ReconcilesSelection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")

	event, slots := createPoll(t, env, 100, true, "10:00", "11:00", "12:00")
	s1, s2, s3 := slots[0], slots[1], slots[2]

	// First submission: everything is an addition.
	cs, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1, s2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if cs.Added != 2 || cs.Removed != 0 || cs.Total != 2 {
		t.Fatalf("changeset = %+v, want added=2 removed=0 total=2", cs)
	}
	if cs.Voter.TelegramUserID != 200 || cs.Creator.TelegramUserID != 100 {
		t.Fatalf("changeset context wrong: %+v", cs)
	}

	// Shifted selection: one in, one out, shared slot untouched.
	cs, err = env.votes.Submit(ctx, 200, event.ID, []int64{s2, s3})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if cs.Added != 1 || cs.Removed != 1 || cs.Total != 2 {
		t.Fatalf("changeset = %+v, want added=1 removed=1 total=2", cs)
	}
	if !reflect.DeepEqual(cs.AddedSlotIDs, []int64{s3}) || !reflect.DeepEqual(cs.RemovedSlotIDs, []int64{s1}) {
		t.Fatalf("changeset ids: add=%v remove=%v", cs.AddedSlotIDs, cs.RemovedSlotIDs)
	}

	// Identical resubmission is a no-op and writes nothing.
	var rowsBefore int64
	if err := env.db.Model(&model.EventVote{}).Count(&rowsBefore).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	cs, err = env.votes.Submit(ctx, 200, event.ID, []int64{s3, s2, s2})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if cs.Added != 0 || cs.Removed != 0 || cs.Total != 2 {
		t.Fatalf("changeset = %+v, want empty changeset with total=2", cs)
	}
	var rowsAfter int64
	if err := env.db.Model(&model.EventVote{}).Count(&rowsAfter).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if rowsAfter != rowsBefore {
		t.Fatalf("no-op submit wrote rows: %d -> %d", rowsBefore, rowsAfter)
	}
}

func TestVoteService_Submit_SingleChoiceSwitch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")

	event, slots := createPoll(t, env, 100, false, "10:00", "14:00")
	s1, s2 := slots[0], slots[1]

	cs, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if cs.Added != 1 || cs.Removed != 0 || cs.Total != 1 {
		t.Fatalf("changeset = %+v, want added=1 removed=0 total=1", cs)
	}

	// Switching the single choice swaps the vote, never stacks it.
	cs, err = env.votes.Submit(ctx, 200, event.ID, []int64{s2})
	if err != nil {
		t.Fatalf("Submit switch: %v", err)
	}
	if cs.Added != 1 || cs.Removed != 1 || cs.Total != 1 {
		t.Fatalf("changeset = %+v, want added=1 removed=1 total=1", cs)
	}

	full, err := env.events.Get(ctx, 200, event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for _, sv := range full.Slots {
		switch sv.ID {
		case s1:
			if sv.VoteCount != 0 || sv.CurrentUserVoted {
				t.Fatalf("old slot still counted: %+v", sv)
			}
		case s2:
			if sv.VoteCount != 1 || !sv.CurrentUserVoted {
				t.Fatalf("new slot not counted: %+v", sv)
			}
		}
	}
	// The single-choice invariant: at most one active vote per user.
	if len(full.CurrentUserVotes) != 1 {
		t.Fatalf("viewer votes = %d, want 1", len(full.CurrentUserVotes))
	}
}

func TestVoteService_Submit_TombstonesAndRevote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")

	event, slots := createPoll(t, env, 100, true, "10:00", "11:00")
	s1, s2 := slots[0], slots[1]

	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s2}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Re-voting a slot creates a fresh row; the cancelled one stays
	// as a tombstone.
	var all []model.EventVote
	if err := env.db.Where("event_id = ? AND slot_id = ?", event.ID, s1).Order("id ASC").Find(&all).Error; err != nil {
		t.Fatalf("load votes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rows for slot %d, got %d", s1, len(all))
	}
	if all[0].DeletedAt == nil || all[1].DeletedAt != nil {
		t.Fatalf("expected tombstone then active row: %+v", all)
	}
	if all[0].CreatedAt.IsZero() || all[1].CreatedAt.IsZero() {
		t.Fatalf("vote created_at not written: %+v", all)
	}
}

func TestVoteStore_ActiveVoteUniquePerSlotUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	bob := seedUser(t, env.db, 200, "Bob", "bob")

	event, slots := createPoll(t, env, 100, true, "10:00")
	s1 := slots[0]

	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Two racing first-time submits cannot both insert: the second
	// duplicate active row dies on the unique index.
	dup := model.EventVote{EventID: event.ID, SlotID: s1, UserID: bob.ID}
	if err := env.db.Create(&dup).Error; err == nil {
		t.Fatalf("duplicate active vote must be rejected by the store")
	}

	// A tombstone frees the pair for a fresh vote.
	now := time.Now().UTC()
	if err := env.db.Model(&model.EventVote{}).
		Where("event_id = ? AND slot_id = ? AND user_id = ? AND deleted_at IS NULL", event.ID, s1, bob.ID).
		Update("deleted_at", now).Error; err != nil {
		t.Fatalf("retire vote: %v", err)
	}
	fresh := model.EventVote{EventID: event.ID, SlotID: s1, UserID: bob.ID}
	if err := env.db.Create(&fresh).Error; err != nil {
		t.Fatalf("re-vote after tombstone must pass: %v", err)
	}
}

func TestVoteService_Submit_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")

	single, singleSlots := createPoll(t, env, 100, false, "10:00", "11:00")
	_, otherSlots := createPoll(t, env, 100, true, "10:00")

	if _, err := env.votes.Submit(ctx, 200, single.ID, nil); !errors.Is(err, ErrNoSlotsSelected) {
		t.Fatalf("expected ErrNoSlotsSelected, got %v", err)
	}
	if _, err := env.votes.Submit(ctx, 200, single.ID, []int64{9999}); !errors.Is(err, ErrInvalidSlotSelection) {
		t.Fatalf("expected ErrInvalidSlotSelection for unknown slot, got %v", err)
	}
	// Slots of another event are rejected the same way.
	if _, err := env.votes.Submit(ctx, 200, single.ID, []int64{otherSlots[0]}); !errors.Is(err, ErrInvalidSlotSelection) {
		t.Fatalf("expected ErrInvalidSlotSelection for foreign slot, got %v", err)
	}
	if _, err := env.votes.Submit(ctx, 200, single.ID, singleSlots); !errors.Is(err, ErrMultipleChoiceNotAllowed) {
		t.Fatalf("expected ErrMultipleChoiceNotAllowed, got %v", err)
	}
	// Duplicates collapse before the single-choice check.
	if _, err := env.votes.Submit(ctx, 200, single.ID, []int64{singleSlots[0], singleSlots[0]}); err != nil {
		t.Fatalf("duplicated single slot must pass: %v", err)
	}
	if _, err := env.votes.Submit(ctx, 999, single.ID, []int64{singleSlots[0]}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := env.votes.Submit(ctx, 200, 9999, []int64{singleSlots[0]}); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestVoteService_Submit_BookingAllowsMultiple(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	booking, err := env.events.Create(ctx, 100, CreateEventInput{
		Title:     "Consulting",
		Timezone:  "UTC",
		EventType: model.EventTypeBooking,
		Dates:     singleDay(day, "10:00", "11:00"),
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	ids := []int64{booking.Dates[0].TimeSlots[0].ID, booking.Dates[0].TimeSlots[1].ID}

	// The single-choice restriction applies to polls only.
	cs, err := env.votes.Submit(ctx, 200, booking.ID, ids)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if cs.Added != 2 {
		t.Fatalf("added = %d, want 2", cs.Added)
	}
}

func TestVoteService_Submit_DeletedSlotRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")
	seedUser(t, env.db, 300, "Carol", "carol")

	event, slots := createPoll(t, env, 100, true, "10:00", "11:00")
	s1, s2 := slots[0], slots[1]

	// Two users hold active votes on the slot about to be removed.
	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.votes.Submit(ctx, 300, event.ID, []int64{s1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := env.events.Update(ctx, 100, UpdateEventInput{
		EventID:        event.ID,
		Title:          "Poll",
		Slots:          []SlotEditInput{{ID: &s2}},
		DeletedSlotIDs: []int64{s1},
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Both votes are retired together with the slot.
	var active int64
	if err := env.db.Model(&model.EventVote{}).
		Where("event_id = ? AND slot_id = ? AND deleted_at IS NULL", event.ID, s1).
		Count(&active).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if active != 0 {
		t.Fatalf("votes on deleted slot still active: %d", active)
	}
	full, err := env.events.Get(ctx, 100, event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(full.Slots) != 1 || full.Slots[0].ID != s2 {
		t.Fatalf("deleted slot still listed: %+v", full.Slots)
	}

	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1}); !errors.Is(err, ErrInvalidSlotSelection) {
		t.Fatalf("expected ErrInvalidSlotSelection for deleted slot, got %v", err)
	}
}
