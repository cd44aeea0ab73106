package service

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/model"
	"github.com/comunna/meety-core/internal/repository"
)

// newTestDB opens an in-memory sqlite database with a minimal schema
// for the query/update logic (sqlite-friendly).
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// In-memory sqlite lives inside a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			telegram_user_id INTEGER NOT NULL UNIQUE,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			language_code TEXT NOT NULL DEFAULT 'ru',
			is_premium INTEGER NOT NULL DEFAULT 0,
			allows_write_to_pm INTEGER NOT NULL DEFAULT 1,
			photo_url TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			public_id TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			location TEXT,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			event_type TEXT NOT NULL DEFAULT 'poll',
			multiple_choice INTEGER NOT NULL DEFAULT 0,
			final_slot_id INTEGER,
			created_at DATETIME,
			updated_at DATETIME,
			deleted_at DATETIME
		);`,
		`CREATE TABLE event_slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			slot_start DATETIME NOT NULL,
			created_at DATETIME,
			deleted_at DATETIME
		);`,
		`CREATE TABLE event_votes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			slot_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			created_at DATETIME,
			deleted_at DATETIME
		);`,
		`CREATE UNIQUE INDEX uniq_event_votes_active
			ON event_votes (slot_id, user_id)
			WHERE deleted_at IS NULL;`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type testEnv struct {
	db       *gorm.DB
	events   *EventService
	votes    *VoteService
	finalize *FinalizeService
	identity *IdentityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	users := repository.NewGormUserRepository(db)
	events := repository.NewGormEventRepository(db)
	slots := repository.NewGormSlotRepository(db)
	votes := repository.NewGormVoteRepository(db)

	return &testEnv{
		db:       db,
		events:   NewEventService(db, users, events, slots, votes, nil, nil),
		votes:    NewVoteService(db, users, events, slots, votes, nil, nil),
		finalize: NewFinalizeService(db, users, events, slots, votes, nil, nil),
		identity: NewIdentityService(users, nil),
	}
}

func seedUser(t *testing.T, db *gorm.DB, telegramID int64, firstName, username string) *model.User {
	t.Helper()

	u := &model.User{
		TelegramUserID: telegramID,
		FirstName:      firstName,
		Username:       username,
		LanguageCode:   "ru",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %d: %v", telegramID, err)
	}
	return u
}

// singleDay builds slot input for one calendar day.
func singleDay(day time.Time, times ...string) []SlotDateInput {
	return []SlotDateInput{{Date: day, Times: times}}
}
