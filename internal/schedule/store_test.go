package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/models"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB, string) {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&models.Profile{}, &models.ScheduleEntry{}, &models.HistoryEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	profile := models.Profile{
		ID: uuid.NewString(), Name: "t", Plan: models.PlanOneMonth,
		CreatedAt: time.Now(), ExpiresAt: time.Now().AddDate(0, 0, 30),
		Username: "t",
	}
	if err := database.Create(&profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	store := NewStore(database, history.NewRecorder(database, zerolog.Nop()), events.NewBus(), zerolog.Nop())
	return store, database, profile.ID
}

func TestReplaceSwapsWholeTimetable(t *testing.T) {
	store, database, profileID := newTestStore(t)
	ctx := context.Background()

	first, err := store.Replace(ctx, profileID, []EntryInput{
		{Time: "08:00:00", TrackRef: profileID + "-morning.mp3"},
		{Time: "12:30:00", TrackRef: profileID + "-noon.mp3"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(first) != 2 || first[0].Position != 0 || first[1].Position != 1 {
		t.Fatalf("unexpected entries: %+v", first)
	}

	second, err := store.Replace(ctx, profileID, []EntryInput{
		{Time: "18:15:05", TrackRef: profileID + "-evening.mp3"},
	})
	if err != nil {
		t.Fatalf("replace again: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("entries = %d, want 1", len(second))
	}

	listed, err := store.List(ctx, profileID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Time != "18:15:05" {
		t.Fatalf("old entries survived the replace: %+v", listed)
	}

	var n int64
	database.Model(&models.HistoryEvent{}).
		Where("profile_id = ? AND action = ?", profileID, models.HistoryScheduleUpdated).
		Count(&n)
	if n != 2 {
		t.Errorf("schedule_updated events = %d, want 2", n)
	}
}

func TestReplaceAllowsDuplicateTimes(t *testing.T) {
	store, _, profileID := newTestStore(t)

	entries, err := store.Replace(context.Background(), profileID, []EntryInput{
		{Time: "09:00:00", TrackRef: profileID + "-a.mp3"},
		{Time: "09:00:00", TrackRef: profileID + "-b.mp3"},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want duplicates preserved", len(entries))
	}
}

func TestReplaceRejectsInvalidTimeAtomically(t *testing.T) {
	store, _, profileID := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Replace(ctx, profileID, []EntryInput{
		{Time: "07:00:00", TrackRef: profileID + "-keep.mp3"},
	}); err != nil {
		t.Fatalf("seed replace: %v", err)
	}

	_, err := store.Replace(ctx, profileID, []EntryInput{
		{Time: "08:00:00", TrackRef: profileID + "-ok.mp3"},
		{Time: "25:61:00", TrackRef: profileID + "-bad.mp3"},
	})
	if err == nil {
		t.Fatal("expected invalid time error")
	}

	listed, err := store.List(ctx, profileID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].Time != "07:00:00" {
		t.Fatalf("failed replace must leave stored timetable untouched, got %+v", listed)
	}
}

func TestReplaceUnknownProfile(t *testing.T) {
	store, _, _ := newTestStore(t)

	_, err := store.Replace(context.Background(), uuid.NewString(), []EntryInput{
		{Time: "08:00:00", TrackRef: "x-a.mp3"},
	})
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestRemoveTrackPrunesMatchingRows(t *testing.T) {
	store, _, profileID := newTestStore(t)
	ctx := context.Background()

	ref := profileID + "-gone.mp3"
	if _, err := store.Replace(ctx, profileID, []EntryInput{
		{Time: "08:00:00", TrackRef: ref},
		{Time: "12:00:00", TrackRef: profileID + "-stays.mp3"},
		{Time: "20:00:00", TrackRef: ref},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	removed, err := store.RemoveTrack(ctx, profileID, ref)
	if err != nil {
		t.Fatalf("remove track: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	listed, _ := store.List(ctx, profileID)
	if len(listed) != 1 || listed[0].TrackRef != profileID+"-stays.mp3" {
		t.Fatalf("unexpected remaining entries: %+v", listed)
	}
}
