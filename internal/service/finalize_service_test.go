package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/repository"
)

func TestFinalizeService_FinalizeAndUnfinalize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")
	seedUser(t, env.db, 300, "Carol", "carol")

	event, slots := createPoll(t, env, 100, true, "10:00", "11:00")
	s1, s2 := slots[0], slots[1]

	if _, err := env.votes.Submit(ctx, 200, event.ID, []int64{s1}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := env.votes.Submit(ctx, 300, event.ID, []int64{s1, s2}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	result, err := env.finalize.Finalize(ctx, 100, event.ID, s1, "  Cafe Central  ")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.FinalSlotID != s1 {
		t.Fatalf("final slot = %d, want %d", result.FinalSlotID, s1)
	}
	if result.Location != "Cafe Central" {
		t.Fatalf("location = %q, want trimmed %q", result.Location, "Cafe Central")
	}
	wantStart := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	if !result.SlotStart.Equal(wantStart) {
		t.Fatalf("slot start = %v, want %v", result.SlotStart, wantStart)
	}
	// Participants are the distinct voters, sorted by name.
	if len(result.Participants) != 2 ||
		result.Participants[0].FirstName != "Bob" ||
		result.Participants[1].FirstName != "Carol" {
		t.Fatalf("unexpected participants: %+v", result.Participants)
	}

	// The location travels to the event in the same transaction; other
	// slots and votes are untouched.
	var e model.Event
	if err := env.db.First(&e, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if e.FinalSlotID == nil || *e.FinalSlotID != s1 {
		t.Fatalf("final_slot_id not written: %+v", e.FinalSlotID)
	}
	if e.Location != "Cafe Central" {
		t.Fatalf("event location = %q, want %q", e.Location, "Cafe Central")
	}
	var activeVotes int64
	if err := env.db.Model(&model.EventVote{}).
		Where("event_id = ? AND deleted_at IS NULL", event.ID).
		Count(&activeVotes).Error; err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if activeVotes != 3 {
		t.Fatalf("finalize must not touch votes, active = %d", activeVotes)
	}

	// Back to the open state: slots and votes are exactly as they were.
	restored, err := env.finalize.Unfinalize(ctx, 100, event.ID)
	if err != nil {
		t.Fatalf("Unfinalize: %v", err)
	}
	if restored.Event.FinalSlotID != nil {
		t.Fatalf("unfinalized event still has final slot")
	}
	if len(restored.Participants) != 2 {
		t.Fatalf("participants lost on unfinalize: %+v", restored.Participants)
	}
	full, err := env.events.Get(ctx, 100, event.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(full.Slots) != 2 {
		t.Fatalf("slots lost on unfinalize: %d", len(full.Slots))
	}
}

func TestFinalizeService_Finalize_KeepsExistingLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	event, err := env.events.Create(ctx, 100, CreateEventInput{
		Title: "Dinner", Location: "Old Place", Timezone: "UTC",
		Dates: singleDay(day, "19:00"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := env.finalize.Finalize(ctx, 100, event.ID, event.Dates[0].TimeSlots[0].ID, "")
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.Location != "Old Place" {
		t.Fatalf("location = %q, want existing %q", result.Location, "Old Place")
	}
	var e model.Event
	if err := env.db.First(&e, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if e.Location != "Old Place" {
		t.Fatalf("empty location must not clobber stored one, got %q", e.Location)
	}
}

func TestFinalizeService_StateAndPermissionErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")
	seedUser(t, env.db, 200, "Bob", "bob")

	event, slots := createPoll(t, env, 100, true, "10:00", "11:00")
	_, otherSlots := createPoll(t, env, 100, true, "12:00")
	s1, s2 := slots[0], slots[1]

	if _, err := env.finalize.Finalize(ctx, 200, event.ID, s1, ""); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	if _, err := env.finalize.Finalize(ctx, 100, event.ID, 9999, ""); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}
	if _, err := env.finalize.Finalize(ctx, 100, event.ID, otherSlots[0], ""); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound for another event's slot, got %v", err)
	}
	if _, err := env.finalize.Unfinalize(ctx, 100, event.ID); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("expected ErrNotFinalized on open event, got %v", err)
	}

	if _, err := env.finalize.Finalize(ctx, 100, event.ID, s1, ""); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	// A second finalize loses, whatever slot it asks for.
	if _, err := env.finalize.Finalize(ctx, 100, event.ID, s2, ""); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if _, err := env.finalize.Unfinalize(ctx, 200, event.ID); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator on unfinalize, got %v", err)
	}
}

func TestFinalizeService_CompareAndSetGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	seedUser(t, env.db, 100, "Alice", "alice")

	event, slots := createPoll(t, env, 100, true, "10:00", "11:00")
	repo := repository.NewGormEventRepository(env.db)

	// The write itself is conditional: of two racers only the first one
	// touches a row, the second sees zero rows affected.
	ok, err := repo.Finalize(ctx, event.ID, slots[0], nil, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("first finalize: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Finalize(ctx, event.ID, slots[1], nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if ok {
		t.Fatalf("second conditional finalize must not win")
	}

	// The first writer's choice survives.
	var e model.Event
	if err := env.db.First(&e, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if e.FinalSlotID == nil || *e.FinalSlotID != slots[0] {
		t.Fatalf("final slot overwritten: %+v", e.FinalSlotID)
	}

	// Unfinalize is conditional the same way.
	ok, err = repo.Unfinalize(ctx, event.ID, time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("unfinalize: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Unfinalize(ctx, event.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("second unfinalize: %v", err)
	}
	if ok {
		t.Fatalf("unfinalize of an open event must affect no rows")
	}
}
