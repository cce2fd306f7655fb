/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Plan enumerates the subscription billing tiers.
type Plan string

const (
	PlanOneDay      Plan = "1 Day"
	PlanOneMonth    Plan = "1 Month"
	PlanThreeMonths Plan = "3 Months"
	PlanSixMonths   Plan = "6 Months"
	PlanOneYear     Plan = "1 Year"
)

// Days returns the fixed day-count entitlement for the plan.
// Calendar month and year variability is deliberately ignored.
func (p Plan) Days() int {
	switch p {
	case PlanOneDay:
		return 1
	case PlanOneMonth:
		return 30
	case PlanThreeMonths:
		return 90
	case PlanSixMonths:
		return 180
	case PlanOneYear:
		return 365
	default:
		return 0
	}
}

// Valid reports whether the plan is one of the known tiers.
func (p Plan) Valid() bool {
	return p.Days() > 0
}

// Profile is a tenant's radio-stream configuration plus subscription state.
type Profile struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"index"`
	URL         string
	CompanyName string
	Email       string
	Logo        string // media store reference, empty when no logo uploaded
	Plan        Plan   `gorm:"type:varchar(16)"`

	// CreatedAt anchors the current billing period and is reset on plan
	// change and renewal. ExpiresAt is always CreatedAt + Plan.Days() and is
	// recomputed whenever either changes.
	CreatedAt time.Time
	ExpiresAt time.Time

	// Blocked is the hard gate: no audio of any kind while set.
	Blocked bool
	// AlarmBlocked is the soft gate: scheduled announcements suppressed, live
	// feed unaffected. Starts true; activation is an explicit opt-in step.
	AlarmBlocked bool

	Username     string `gorm:"uniqueIndex"`
	PasswordHash string

	UpdatedAt time.Time
}

// ScheduleEntry pairs a time of day with an announcement track for one profile.
// Duplicate times are permitted; the player treats the first match per tick as
// authoritative.
type ScheduleEntry struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ProfileID string `gorm:"type:uuid;index"`
	Position  int
	Time      string `gorm:"type:varchar(8)"` // "HH:MM:SS", 24-hour wall clock
	TrackRef  string
	CreatedAt time.Time
}

// User is a platform administrator account.
type User struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
