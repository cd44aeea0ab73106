package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/comunna/meety-core/internal/config"
	"github.com/comunna/meety-core/internal/db"
	"github.com/comunna/meety-core/internal/model"
)

func main() {
	app := &cli.App{
		Name:  "meety-core",
		Usage: "Administrative commands for the scheduling core.",
		Commands: []*cli.Command{
			migrateCommand(),
			seedCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	cfg, err := config.LoadDBConfig()
	if err != nil {
		return nil, err
	}
	return db.NewGormDB(cfg, slog.Default())
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the schema for users, events, slots and votes.",
		Action: func(c *cli.Context) error {
			gormDB, err := openDB()
			if err != nil {
				return err
			}
			if err := model.AutoMigrate(gormDB); err != nil {
				return err
			}
			slog.Info("schema migrated")
			return nil
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Insert demo users and events for local development.",
		Action: func(c *cli.Context) error {
			gormDB, err := openDB()
			if err != nil {
				return err
			}
			if err := model.AutoMigrate(gormDB); err != nil {
				return err
			}
			if err := seedDemoData(gormDB); err != nil {
				return err
			}
			slog.Info("demo data seeded")
			return nil
		},
	}
}

// seedDemoData наполняет базу демо-данными: пара пользователей, опрос
// с голосами и запись с одним бронированием.
func seedDemoData(gormDB *gorm.DB) error {
	return gormDB.Transaction(func(tx *gorm.DB) error {
		alice := model.User{TelegramUserID: 111111111, Username: "alice", FirstName: "Алиса", LanguageCode: "ru"}
		bob := model.User{TelegramUserID: 222222222, Username: "bob", FirstName: "Боб", LanguageCode: "ru", IsPremium: true}
		carol := model.User{TelegramUserID: 333333333, Username: "carol", FirstName: "Carol", LanguageCode: "en"}
		for _, u := range []*model.User{&alice, &bob, &carol} {
			if err := tx.Create(u).Error; err != nil {
				return err
			}
		}

		loc, err := time.LoadLocation("Europe/Moscow")
		if err != nil {
			return err
		}
		base := time.Now().In(loc).AddDate(0, 0, 7).Truncate(time.Hour)

		pollID, err := uuid.NewV7()
		if err != nil {
			return err
		}
		poll := model.Event{
			PublicID:    pollID,
			UserID:      alice.ID,
			Title:       "Встреча команды",
			Description: "Планирование нового проекта",
			Timezone:    "Europe/Moscow",
			EventType:   model.EventTypePoll,
		}
		if err := tx.Create(&poll).Error; err != nil {
			return err
		}
		pollSlots := []model.EventSlot{
			{EventID: poll.ID, SlotStart: base.UTC()},
			{EventID: poll.ID, SlotStart: base.Add(4 * time.Hour).UTC()},
			{EventID: poll.ID, SlotStart: base.AddDate(0, 0, 1).UTC()},
		}
		if err := tx.Create(&pollSlots).Error; err != nil {
			return err
		}
		pollVotes := []model.EventVote{
			{EventID: poll.ID, SlotID: pollSlots[0].ID, UserID: bob.ID},
			{EventID: poll.ID, SlotID: pollSlots[1].ID, UserID: carol.ID},
		}
		if err := tx.Create(&pollVotes).Error; err != nil {
			return err
		}

		bookingID, err := uuid.NewV7()
		if err != nil {
			return err
		}
		booking := model.Event{
			PublicID:  bookingID,
			UserID:    bob.ID,
			Title:     "Индивидуальные консультации",
			Timezone:  "Europe/Moscow",
			EventType: model.EventTypeBooking,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		var bookingSlots []model.EventSlot
		for hour := 10; hour < 16; hour++ {
			day := base.AddDate(0, 0, 2)
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc)
			bookingSlots = append(bookingSlots, model.EventSlot{EventID: booking.ID, SlotStart: start.UTC()})
		}
		if err := tx.Create(&bookingSlots).Error; err != nil {
			return err
		}
		return tx.Create(&model.EventVote{
			EventID: booking.ID,
			SlotID:  bookingSlots[0].ID,
			UserID:  alice.ID,
		}).Error
	})
}
