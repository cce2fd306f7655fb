/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/skald_radio/internal/models"
)

func newTestRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&models.HistoryEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRecorder(database, zerolog.Nop()), database
}

func TestRecordAndQueryByProfile(t *testing.T) {
	rec, _ := newTestRecorder(t)
	ctx := context.Background()

	profileA := uuid.NewString()
	profileB := uuid.NewString()

	if err := rec.Record(ctx, nil, profileA, models.HistoryCreated, "Profile created"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.Record(ctx, nil, profileA, models.HistoryBlocked, "Profile blocked"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.Record(ctx, nil, profileB, models.HistoryCreated, "Profile created"); err != nil {
		t.Fatalf("record: %v", err)
	}

	events, total, err := rec.Query(ctx, QueryFilters{ProfileID: &profileA})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 2 || len(events) != 2 {
		t.Fatalf("expected 2 events for profile A, got total=%d len=%d", total, len(events))
	}
	for _, e := range events {
		if e.ProfileID != profileA {
			t.Fatalf("event for wrong profile: %s", e.ProfileID)
		}
	}
}

func TestQueryActionAndTimeFilters(t *testing.T) {
	rec, database := newTestRecorder(t)
	ctx := context.Background()
	profileID := uuid.NewString()

	if err := rec.Record(ctx, nil, profileID, models.HistoryCreated, "Profile created"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rec.Record(ctx, nil, profileID, models.HistoryRenewed, "Renewed"); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Age the created event so a time window can separate the two.
	old := time.Now().Add(-48 * time.Hour)
	if err := database.Model(&models.HistoryEvent{}).
		Where("profile_id = ? AND action = ?", profileID, models.HistoryCreated).
		Update("timestamp", old).Error; err != nil {
		t.Fatalf("age event: %v", err)
	}

	action := models.HistoryRenewed
	events, total, err := rec.Query(ctx, QueryFilters{ProfileID: &profileID, Action: &action})
	if err != nil {
		t.Fatalf("query by action: %v", err)
	}
	if total != 1 || events[0].Action != models.HistoryRenewed {
		t.Fatalf("action filter failed: total=%d", total)
	}

	since := time.Now().Add(-time.Hour)
	events, total, err = rec.Query(ctx, QueryFilters{ProfileID: &profileID, StartTime: &since})
	if err != nil {
		t.Fatalf("query by time: %v", err)
	}
	if total != 1 || events[0].Action != models.HistoryRenewed {
		t.Fatalf("time filter failed: total=%d", total)
	}
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	rec, database := newTestRecorder(t)
	ctx := context.Background()
	profileID := uuid.NewString()

	err := database.Transaction(func(tx *gorm.DB) error {
		if err := rec.Record(ctx, tx, profileID, models.HistoryCreated, "Profile created"); err != nil {
			t.Fatalf("record in tx: %v", err)
		}
		return gorm.ErrInvalidData
	})
	if err == nil {
		t.Fatal("expected transaction to fail")
	}

	_, total, err := rec.Query(ctx, QueryFilters{ProfileID: &profileID})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 0 {
		t.Fatalf("rolled back mutation left %d history events", total)
	}
}

func TestQueryPagination(t *testing.T) {
	rec, _ := newTestRecorder(t)
	ctx := context.Background()
	profileID := uuid.NewString()

	for i := 0; i < 5; i++ {
		if err := rec.Record(ctx, nil, profileID, models.HistoryNameUpdated, "Name changed"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	events, total, err := rec.Query(ctx, QueryFilters{ProfileID: &profileID, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}
	if len(events) != 2 {
		t.Fatalf("page size = %d, want 2", len(events))
	}
}
