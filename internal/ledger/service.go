/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ledger is the single source of truth for whether a profile may
// broadcast and for all subscription day-count arithmetic.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/telemetry"
)

// ErrNotFound is returned for operations on an unknown profile id. The
// failed operation leaves no state change and no history write.
var ErrNotFound = errors.New("profile not found")

// graceDays is how many days past expiry a profile may run before the
// announcement subsystem is forced off.
const graceDays = 5

// MediaCleaner removes stored assets during profile deletion.
type MediaCleaner interface {
	DeleteProfileAssets(ctx context.Context, profileID string) error
}

// Service implements the subscription ledger.
type Service struct {
	db       *gorm.DB
	recorder *history.Recorder
	media    MediaCleaner
	bus      *events.Bus
	logger   zerolog.Logger

	now func() time.Time
}

// NewService creates a ledger service.
func NewService(database *gorm.DB, recorder *history.Recorder, media MediaCleaner, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:       database,
		recorder: recorder,
		media:    media,
		bus:      bus,
		logger:   logger.With().Str("component", "ledger").Logger(),
		now:      time.Now,
	}
}

// CreateParams carries the initial profile fields.
type CreateParams struct {
	Name         string
	URL          string
	CompanyName  string
	Email        string
	Logo         string
	Plan         models.Plan
	Username     string
	PasswordHash string
}

// Create provisions a new profile. The billing period is anchored at the
// moment of creation and the announcement subsystem starts disabled until an
// explicit activation step.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Profile, error) {
	now := s.now()
	profile := &models.Profile{
		ID:           uuid.NewString(),
		Name:         params.Name,
		URL:          params.URL,
		CompanyName:  params.CompanyName,
		Email:        params.Email,
		Logo:         params.Logo,
		Plan:         params.Plan,
		CreatedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, params.Plan.Days()),
		Blocked:      false,
		AlarmBlocked: true,
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		return s.recorder.Record(ctx, tx, profile.ID, models.HistoryCreated,
			fmt.Sprintf("profile %q created on plan %q", profile.Name, profile.Plan))
	})
	if err != nil {
		return nil, err
	}

	telemetry.LedgerTransitions.WithLabelValues(string(models.HistoryCreated)).Inc()
	s.publish(events.EventProfileCreated, profile.ID)
	s.logger.Info().Str("profile_id", profile.ID).Str("plan", string(profile.Plan)).Msg("profile created")
	return profile, nil
}

// Get returns the current profile snapshot.
func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// GetByUsername looks a profile up by its account name.
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).First(&profile, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// List returns all profiles ordered by name.
func (s *Service) List(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// Patch describes a partial profile update. Nil fields are untouched.
type Patch struct {
	Name        *string
	URL         *string
	CompanyName *string
	Email       *string
	Logo        *string
	Plan        *models.Plan
}

// UpdateFields applies a partial patch, emitting one history event per
// changed scalar field. A plan change resets the billing anchor.
func (s *Service) UpdateFields(ctx context.Context, id string, patch Patch) (*models.Profile, error) {
	var updated *models.Profile
	err := s.withProfile(ctx, id, func(tx *gorm.DB, p *models.Profile) error {
		type change struct {
			action  models.HistoryAction
			details string
		}
		var changes []change

		apply := func(field *string, value *string, action models.HistoryAction, label string) {
			if value == nil || *value == *field {
				return
			}
			changes = append(changes, change{action, fmt.Sprintf("%s changed from %q to %q", label, *field, *value)})
			*field = *value
		}

		apply(&p.Name, patch.Name, models.HistoryNameUpdated, "name")
		apply(&p.URL, patch.URL, models.HistoryURLUpdated, "url")
		apply(&p.CompanyName, patch.CompanyName, models.HistoryCompanyUpdated, "company")
		apply(&p.Email, patch.Email, models.HistoryEmailUpdated, "email")
		apply(&p.Logo, patch.Logo, models.HistoryLogoUpdated, "logo")

		if patch.Plan != nil && *patch.Plan != p.Plan {
			oldPlan := p.Plan
			p.Plan = *patch.Plan
			// A plan change starts a fresh billing period; expiry is always
			// recomputed from the anchor, never adjusted independently.
			p.CreatedAt = s.now()
			p.ExpiresAt = p.CreatedAt.AddDate(0, 0, p.Plan.Days())
			changes = append(changes, change{models.HistoryPlanUpdated,
				fmt.Sprintf("plan changed from %q to %q", oldPlan, p.Plan)})
		}

		if err := tx.Save(p).Error; err != nil {
			return err
		}
		for _, c := range changes {
			if err := s.recorder.Record(ctx, tx, p.ID, c.action, c.details); err != nil {
				return err
			}
			telemetry.LedgerTransitions.WithLabelValues(string(c.action)).Inc()
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(events.EventProfileUpdated, id)
	return updated, nil
}

// Block stops all audio for the profile. Setting the flag to its current
// value still succeeds and still logs.
func (s *Service) Block(ctx context.Context, id string) (*models.Profile, error) {
	return s.setBlocked(ctx, id, true)
}

// Unblock lifts the hard gate.
func (s *Service) Unblock(ctx context.Context, id string) (*models.Profile, error) {
	return s.setBlocked(ctx, id, false)
}

func (s *Service) setBlocked(ctx context.Context, id string, blocked bool) (*models.Profile, error) {
	action := models.HistoryBlocked
	event := events.EventProfileBlocked
	details := "profile blocked"
	if !blocked {
		action = models.HistoryUnblocked
		event = events.EventProfileUnblocked
		details = "profile unblocked"
	}

	var updated *models.Profile
	err := s.withProfile(ctx, id, func(tx *gorm.DB, p *models.Profile) error {
		p.Blocked = blocked
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		updated = p
		return s.recorder.Record(ctx, tx, p.ID, action, details)
	})
	if err != nil {
		return nil, err
	}

	telemetry.LedgerTransitions.WithLabelValues(string(action)).Inc()
	s.publish(event, id)
	return updated, nil
}

// SetAlarmBlocked toggles the announcement soft gate.
func (s *Service) SetAlarmBlocked(ctx context.Context, id string, blocked bool) (*models.Profile, error) {
	return s.setAlarmBlocked(ctx, id, blocked, "")
}

func (s *Service) setAlarmBlocked(ctx context.Context, id string, blocked bool, reason string) (*models.Profile, error) {
	action := models.HistoryAlarmBlocked
	event := events.EventAlarmBlocked
	details := "announcement schedule disabled"
	if !blocked {
		action = models.HistoryAlarmUnblocked
		event = events.EventAlarmUnblocked
		details = "announcement schedule enabled"
	}
	if reason != "" {
		details = reason
	}

	var updated *models.Profile
	err := s.withProfile(ctx, id, func(tx *gorm.DB, p *models.Profile) error {
		p.AlarmBlocked = blocked
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		updated = p
		return s.recorder.Record(ctx, tx, p.ID, action, details)
	})
	if err != nil {
		return nil, err
	}

	telemetry.LedgerTransitions.WithLabelValues(string(action)).Inc()
	s.publish(event, id)
	return updated, nil
}

// DaysLeft computes the remaining entitlement. Any elapsed time beyond a day
// boundary counts as a full day consumed, and a raw negative result is
// penalized by one extra day so the value never reads 0 once past expiry; it
// jumps straight to -1.
func DaysLeft(p *models.Profile, now time.Time) int {
	hoursPassed := now.Sub(p.CreatedAt).Hours()
	daysPassed := int(math.Ceil(hoursPassed / 24))
	left := p.Plan.Days() - daysPassed
	if left < 0 {
		left--
	}
	return left
}

// GraceExpired reports whether the profile has consumed its post-expiry
// grace and the announcement gate must be forced shut.
func GraceExpired(p *models.Profile, now time.Time) bool {
	return DaysLeft(p, now) <= -graceDays
}

// DaysLeft looks the profile up and applies the package-level arithmetic.
func (s *Service) DaysLeft(ctx context.Context, id string, now time.Time) (int, error) {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return DaysLeft(profile, now), nil
}

// Renew starts the next billing period. The old expiry becomes the new
// anchor, not the renewal moment, and any whole-day offset between the two is
// doubled into the new period.
func (s *Service) Renew(ctx context.Context, id string, now time.Time) (*models.Profile, error) {
	var updated *models.Profile
	err := s.withProfile(ctx, id, func(tx *gorm.DB, p *models.Profile) error {
		diff := wholeDays(now.Sub(p.ExpiresAt)) // positive when renewing late
		p.CreatedAt = p.ExpiresAt
		p.ExpiresAt = p.CreatedAt.AddDate(0, 0, p.Plan.Days()+diff*2)
		p.AlarmBlocked = false
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		updated = p
		return s.recorder.Record(ctx, tx, p.ID, models.HistoryRenewed,
			fmt.Sprintf("renewed on plan %q, %d day(s) offset, expires %s", p.Plan, diff, p.ExpiresAt.Format(time.RFC3339)))
	})
	if err != nil {
		return nil, err
	}

	telemetry.LedgerTransitions.WithLabelValues(string(models.HistoryRenewed)).Inc()
	s.publish(events.EventProfileRenewed, id)
	return updated, nil
}

// EnforceGrace forces the announcement gate shut once the profile is more
// than graceDays past expiry. It is a monitored invariant, invoked from the
// player's polling path on every tick rather than by a dedicated timer, so a
// transient failure just delays the block by one tick.
func (s *Service) EnforceGrace(ctx context.Context, id string, now time.Time) (*models.Profile, error) {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.AlarmBlocked || !GraceExpired(profile, now) {
		return profile, nil
	}

	return s.setAlarmBlocked(ctx, id, true,
		fmt.Sprintf("announcement schedule disabled, subscription %d day(s) past grace", -DaysLeft(profile, now)))
}

// Delete removes the profile and everything it owns. Media and schedule
// entries go first, the profile row last; a crash mid-sequence can leave
// orphaned media, there is no cross-store transaction to promise otherwise.
func (s *Service) Delete(ctx context.Context, id string) error {
	profile, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if s.media != nil {
		if err := s.media.DeleteProfileAssets(ctx, profile.ID); err != nil {
			s.logger.Warn().Err(err).Str("profile_id", profile.ID).Msg("media cleanup failed, continuing delete")
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", profile.ID).Delete(&models.ScheduleEntry{}).Error; err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, tx, profile.ID, models.HistoryDeleted,
			fmt.Sprintf("profile %q deleted", profile.Name)); err != nil {
			return err
		}
		return tx.Delete(&models.Profile{}, "id = ?", profile.ID).Error
	})
	if err != nil {
		return err
	}

	telemetry.LedgerTransitions.WithLabelValues(string(models.HistoryDeleted)).Inc()
	s.publish(events.EventProfileDeleted, id)
	s.logger.Info().Str("profile_id", id).Msg("profile deleted")
	return nil
}

// withProfile runs fn inside a transaction holding a row lock on the
// profile, so concurrent mutations of one record serialize. SQLite
// serializes writers on its own and rejects FOR UPDATE.
func (s *Service) withProfile(ctx context.Context, id string, fn func(tx *gorm.DB, p *models.Profile) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var profile models.Profile
		if err := query.First(&profile, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return fn(tx, &profile)
	})
}

func (s *Service) publish(event events.EventType, profileID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event, events.Payload{"profile_id": profileID})
}

// wholeDays truncates toward zero, matching day-difference arithmetic on
// timestamps rather than calendar dates.
func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}
