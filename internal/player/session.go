/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/playback"
)

// SessionConfig configures one player session.
type SessionConfig struct {
	BaseURL  string
	Username string
	Password string

	// AnnouncementLength bounds simulated announcement playback in headless
	// mode. Zero keeps the package default.
	AnnouncementLength time.Duration

	LoadTimeout   time.Duration
	PreloadWindow time.Duration

	Logger zerolog.Logger
}

const defaultAnnouncementLength = 30 * time.Second

// Session owns the API client, the outputs, and the engine for one profile.
type Session struct {
	cfg    SessionConfig
	client *Client
	logger zerolog.Logger
}

// NewSession prepares a session. Credentials are verified on Run.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("profile credentials required")
	}
	if cfg.AnnouncementLength <= 0 {
		cfg.AnnouncementLength = defaultAnnouncementLength
	}

	return &Session{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Logger),
		logger: cfg.Logger.With().Str("component", "player").Logger(),
	}, nil
}

// Run logs in and drives the playback engine until ctx is cancelled. Login
// is retried with backoff so the player survives server restarts at boot.
func (s *Session) Run(ctx context.Context) error {
	if err := s.loginWithRetry(ctx); err != nil {
		return err
	}

	live := NewLogOutput("live", s.cfg.Logger)
	announcer := NewLogOutput("announcer", s.cfg.Logger)
	announcer.PlayDuration = s.cfg.AnnouncementLength

	engine := playback.NewEngine(playback.Config{
		ProfileID:     s.client.ProfileID(),
		Snapshot:      s.client.Snapshot,
		Schedule:      s.client.Schedule,
		TrackURL:      s.client.TrackURL,
		Live:          live,
		Announcer:     announcer,
		Logger:        s.cfg.Logger,
		LoadTimeout:   s.cfg.LoadTimeout,
		PreloadWindow: s.cfg.PreloadWindow,
	})

	s.logger.Info().Str("profile_id", s.client.ProfileID()).Msg("player session started")
	return engine.Run(ctx)
}

func (s *Session) loginWithRetry(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := s.client.Login(ctx, s.cfg.Username, s.cfg.Password)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("login failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff = backoff * 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Describe returns a short human readable target description for logs.
func (s *Session) Describe() string {
	return fmt.Sprintf("%s as %s", s.cfg.BaseURL, s.cfg.Username)
}
