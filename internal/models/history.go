/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// HistoryAction defines the type of recorded profile transition.
type HistoryAction string

// History action constants, one per ledger mutation.
const (
	HistoryCreated         HistoryAction = "created"
	HistoryNameUpdated     HistoryAction = "name_updated"
	HistoryURLUpdated      HistoryAction = "url_updated"
	HistoryPlanUpdated     HistoryAction = "plan_updated"
	HistoryCompanyUpdated  HistoryAction = "company_updated"
	HistoryEmailUpdated    HistoryAction = "email_updated"
	HistoryLogoUpdated     HistoryAction = "logo_updated"
	HistoryBlocked         HistoryAction = "blocked"
	HistoryUnblocked       HistoryAction = "unblocked"
	HistoryAlarmBlocked    HistoryAction = "alarm_blocked"
	HistoryAlarmUnblocked  HistoryAction = "alarm_unblocked"
	HistoryRenewed         HistoryAction = "renewed"
	HistoryTrackUploaded   HistoryAction = "track_uploaded"
	HistoryTrackDeleted    HistoryAction = "track_deleted"
	HistoryScheduleUpdated HistoryAction = "schedule_updated"
	HistoryDeleted         HistoryAction = "deleted"
)

// HistoryEvent is an append-only record of a profile state transition.
// Events are never updated or deleted.
type HistoryEvent struct {
	ID        string        `gorm:"type:uuid;primaryKey"`
	ProfileID string        `gorm:"type:uuid;index:idx_history_profile"`
	Action    HistoryAction `gorm:"type:varchar(32);index:idx_history_action;not null"`
	Timestamp time.Time     `gorm:"index:idx_history_timestamp;not null"`
	Details   string        `gorm:"type:text"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM.
func (HistoryEvent) TableName() string {
	return "history_events"
}
