/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package media stores announcement tracks and profile logos. Objects are
// addressed by a flat reference of the form "{profileID}-{filename}", which
// makes per-profile cleanup a prefix scan.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/config"
)

// ErrNotFound is returned when a reference has no stored object.
var ErrNotFound = errors.New("media object not found")

// Storage abstracts the object backend.
type Storage interface {
	Store(ctx context.Context, ref string, r io.Reader) error
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	List(ctx context.Context, prefix string) ([]string, error)
	URL(ref string) string
	CheckAccess(ctx context.Context) error
}

// Service manages media object storage.
type Service struct {
	storage Storage
	logger  zerolog.Logger
}

// NewService creates a media service using filesystem or S3 storage based on
// config. An S3 bucket in the config selects the object backend.
func NewService(cfg *config.Config, logger zerolog.Logger) (*Service, error) {
	var storage Storage

	if cfg.S3Bucket != "" {
		s3cfg := S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			UsePathStyle:    cfg.S3UsePathStyle,
		}
		if s3cfg.AccessKeyID == "" || s3cfg.SecretAccessKey == "" {
			logger.Warn().Msg("S3 credentials not configured, some operations may fail")
		}

		s3Storage, err := NewS3Storage(context.Background(), s3cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize S3 storage: %w", err)
		}
		storage = s3Storage
	} else {
		storage = NewFilesystemStorage(cfg.MediaRoot, logger)
	}

	return &Service{storage: storage, logger: logger.With().Str("component", "media").Logger()}, nil
}

// NewServiceWithStorage wires an explicit backend, mainly for tests.
func NewServiceWithStorage(storage Storage, logger zerolog.Logger) *Service {
	return &Service{storage: storage, logger: logger.With().Str("component", "media").Logger()}
}

// Ref builds the storage reference for a profile's file. The original
// filename survives in the reference so the player's timetable stays readable.
func Ref(profileID, filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	name = strings.ReplaceAll(name, " ", "_")
	return profileID + "-" + name, nil
}

// ProfileID extracts the owning profile from a reference. Profile ids are
// UUIDs and contain no further dashes past position 36, so the split is fixed.
func ProfileID(ref string) string {
	if len(ref) < 37 {
		return ""
	}
	return ref[:36]
}

// Store saves an uploaded file under the profile's namespace and returns the
// reference.
func (s *Service) Store(ctx context.Context, profileID, filename string, r io.Reader) (string, error) {
	ref, err := Ref(profileID, filename)
	if err != nil {
		return "", err
	}
	if err := s.storage.Store(ctx, ref, r); err != nil {
		s.logger.Error().Err(err).Str("ref", ref).Msg("media store failed")
		return "", fmt.Errorf("store media: %w", err)
	}

	s.logger.Info().Str("profile_id", profileID).Str("ref", ref).Msg("media stored")
	return ref, nil
}

// Open returns the object's content for streaming. The caller owns the closer.
func (s *Service) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, ref)
}

// Delete removes one stored object.
func (s *Service) Delete(ctx context.Context, ref string) error {
	if err := s.storage.Delete(ctx, ref); err != nil {
		s.logger.Error().Err(err).Str("ref", ref).Msg("media delete failed")
		return fmt.Errorf("delete media: %w", err)
	}
	s.logger.Info().Str("ref", ref).Msg("media deleted")
	return nil
}

// List returns all references owned by the profile.
func (s *Service) List(ctx context.Context, profileID string) ([]string, error) {
	return s.storage.List(ctx, profileID+"-")
}

// DeleteProfileAssets removes everything the profile owns. Best effort:
// individual failures are collected, remaining objects are still attempted.
func (s *Service) DeleteProfileAssets(ctx context.Context, profileID string) error {
	refs, err := s.storage.List(ctx, profileID+"-")
	if err != nil {
		return fmt.Errorf("list profile media: %w", err)
	}

	var failed []string
	for _, ref := range refs {
		if err := s.storage.Delete(ctx, ref); err != nil {
			s.logger.Warn().Err(err).Str("ref", ref).Msg("asset cleanup failed")
			failed = append(failed, ref)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d of %d objects", len(failed), len(refs))
	}

	s.logger.Info().Str("profile_id", profileID).Int("objects", len(refs)).Msg("profile assets deleted")
	return nil
}

// URL returns the accessible URL for a stored object.
func (s *Service) URL(ref string) string {
	return s.storage.URL(ref)
}

// CheckStorageAccess verifies that the storage backend is reachable.
func (s *Service) CheckStorageAccess() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.storage.CheckAccess(ctx)
}
