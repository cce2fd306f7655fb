/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule stores per-profile announcement timetables.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/telemetry"
)

// ErrProfileNotFound is returned when the timetable's owner does not exist.
var ErrProfileNotFound = errors.New("profile not found")

// timeLayout is the wall-clock format entries are matched against, second
// resolution, 24-hour.
const timeLayout = "15:04:05"

// EntryInput is one requested timetable row. Position is implied by slice
// order.
type EntryInput struct {
	Time     string `json:"time"`
	TrackRef string `json:"trackRef"`
}

// Store persists announcement timetables. The timetable is replaced as a
// whole; there is no per-row edit operation, which keeps ordering and
// duplicate-time semantics trivially consistent.
type Store struct {
	db       *gorm.DB
	recorder *history.Recorder
	bus      *events.Bus
	logger   zerolog.Logger
}

func NewStore(database *gorm.DB, recorder *history.Recorder, bus *events.Bus, logger zerolog.Logger) *Store {
	return &Store{
		db:       database,
		recorder: recorder,
		bus:      bus,
		logger:   logger.With().Str("component", "schedule").Logger(),
	}
}

// Replace swaps the profile's entire timetable for the given rows. Duplicate
// times are accepted as-is; the player picks the first match. An invalid time
// string rejects the whole request and leaves the stored timetable untouched.
func (s *Store) Replace(ctx context.Context, profileID string, inputs []EntryInput) ([]models.ScheduleEntry, error) {
	for i, in := range inputs {
		if _, err := time.Parse(timeLayout, in.Time); err != nil {
			return nil, fmt.Errorf("entry %d: invalid time %q, want HH:MM:SS", i, in.Time)
		}
		if in.TrackRef == "" {
			return nil, fmt.Errorf("entry %d: missing track reference", i)
		}
	}

	now := time.Now()
	entries := make([]models.ScheduleEntry, len(inputs))
	for i, in := range inputs {
		entries[i] = models.ScheduleEntry{
			ID:        uuid.NewString(),
			ProfileID: profileID,
			Position:  i,
			Time:      in.Time,
			TrackRef:  in.TrackRef,
			CreatedAt: now,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Profile{}).Where("id = ?", profileID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrProfileNotFound
		}

		if err := tx.Where("profile_id = ?", profileID).Delete(&models.ScheduleEntry{}).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return s.recorder.Record(ctx, tx, profileID, models.HistoryScheduleUpdated,
			fmt.Sprintf("schedule replaced with %d entr%s", len(entries), plural(len(entries))))
	})
	if err != nil {
		return nil, err
	}

	telemetry.LedgerTransitions.WithLabelValues(string(models.HistoryScheduleUpdated)).Inc()
	if s.bus != nil {
		s.bus.Publish(events.EventScheduleUpdated, events.Payload{"profile_id": profileID, "entries": len(entries)})
	}
	s.logger.Info().Str("profile_id", profileID).Int("entries", len(entries)).Msg("schedule replaced")
	return entries, nil
}

// List returns the timetable in stored order.
func (s *Store) List(ctx context.Context, profileID string) ([]models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	if err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("position ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// RemoveTrack drops every timetable row referencing the given track. Used when
// a track is deleted so the player never schedules a ref it cannot load.
func (s *Store) RemoveTrack(ctx context.Context, profileID, trackRef string) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("profile_id = ? AND track_ref = ?", profileID, trackRef).
		Delete(&models.ScheduleEntry{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 && s.bus != nil {
		s.bus.Publish(events.EventScheduleUpdated, events.Payload{"profile_id": profileID})
	}
	return result.RowsAffected, nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
