/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/models"
)

// Recorder appends profile transition events. The ledger consumes it
// write-only; the history API reads through Query.
type Recorder struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRecorder creates a history recorder.
func NewRecorder(database *gorm.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{
		db:     database,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record appends one event. The caller passes its own transaction handle so
// the event commits or rolls back together with the mutation that caused it;
// a failed mutation must leave no history trace.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, profileID string, action models.HistoryAction, details string) error {
	if tx == nil {
		tx = r.db
	}

	event := &models.HistoryEvent{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Action:    action,
		Timestamp: time.Now(),
		Details:   details,
	}

	if err := tx.WithContext(ctx).Create(event).Error; err != nil {
		return err
	}

	r.logger.Debug().
		Str("profile_id", profileID).
		Str("action", string(action)).
		Msg("history event recorded")

	return nil
}

// QueryFilters defines filters for listing history events.
type QueryFilters struct {
	ProfileID *string
	Action    *models.HistoryAction
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves history events, most recent first.
func (r *Recorder) Query(ctx context.Context, filters QueryFilters) ([]models.HistoryEvent, int64, error) {
	var events []models.HistoryEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&models.HistoryEvent{})

	if filters.ProfileID != nil {
		query = query.Where("profile_id = ?", *filters.ProfileID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.StartTime != nil {
		query = query.Where("timestamp >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("timestamp <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
