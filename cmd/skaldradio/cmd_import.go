/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/db"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/ledger"
	"github.com/friendsincode/skald_radio/internal/media"
	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/schedule"
)

var (
	importFile   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import profiles from a seed file",
	Long: `Import radio stream profiles, announcement tracks, and timetables
from a YAML seed file. Intended for initial provisioning and migrations.

Seed file format:

  profiles:
    - name: Studio One
      url: https://stream.example/studio1
      companyName: Studio One Ltd
      email: ops@studio1.example
      plan: "1 Month"
      username: studio1
      password: changeme1
      tracks:
        - ./seed/morning.mp3
      schedule:
        - time: "10:00:00"
          track: morning.mp3

Schedule entries reference uploaded tracks by file name.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to YAML seed file (required)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate the seed file without importing")
	importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

type seedSchedule struct {
	Time  string `yaml:"time"`
	Track string `yaml:"track"`
}

type seedProfile struct {
	Name        string         `yaml:"name"`
	URL         string         `yaml:"url"`
	CompanyName string         `yaml:"companyName"`
	Email       string         `yaml:"email"`
	Plan        string         `yaml:"plan"`
	Username    string         `yaml:"username"`
	Password    string         `yaml:"password"`
	Tracks      []string       `yaml:"tracks"`
	Schedule    []seedSchedule `yaml:"schedule"`
}

type seedFile struct {
	Profiles []seedProfile `yaml:"profiles"`
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	raw, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(seed.Profiles) == 0 {
		return fmt.Errorf("seed file contains no profiles")
	}

	if err := validateSeed(&seed); err != nil {
		return err
	}

	if importDryRun {
		logger.Info().Int("profiles", len(seed.Profiles)).Msg("seed file valid, dry run requested")
		fmt.Printf("Seed file valid: %d profile(s).\n", len(seed.Profiles))
		return nil
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	mediaService, err := media.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize media service: %w", err)
	}

	bus := events.NewBus()
	recorder := history.NewRecorder(database, logger)
	ledgerService := ledger.NewService(database, recorder, mediaService, bus, logger)
	scheduleStore := schedule.NewStore(database, recorder, bus, logger)

	ctx := context.Background()
	for _, sp := range seed.Profiles {
		if err := importProfile(ctx, sp, ledgerService, scheduleStore, mediaService); err != nil {
			return fmt.Errorf("profile %q: %w", sp.Name, err)
		}
	}

	logger.Info().Int("profiles", len(seed.Profiles)).Msg("import complete")
	fmt.Printf("Imported %d profile(s).\n", len(seed.Profiles))
	return nil
}

func validateSeed(seed *seedFile) error {
	for i, sp := range seed.Profiles {
		if sp.Name == "" || sp.Username == "" || sp.Password == "" {
			return fmt.Errorf("profile %d: name, username, and password are required", i)
		}
		if !models.Plan(sp.Plan).Valid() {
			return fmt.Errorf("profile %d: unknown plan %q", i, sp.Plan)
		}
		known := make(map[string]bool, len(sp.Tracks))
		for _, path := range sp.Tracks {
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("profile %d: track file %s: %w", i, path, err)
			}
			known[filepath.Base(path)] = true
		}
		for j, entry := range sp.Schedule {
			if !known[entry.Track] {
				return fmt.Errorf("profile %d: schedule entry %d references unknown track %q", i, j, entry.Track)
			}
		}
	}
	return nil
}

func importProfile(ctx context.Context, sp seedProfile, ledgerService *ledger.Service, scheduleStore *schedule.Store, mediaService *media.Service) error {
	hash, err := auth.HashPassword(sp.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	profile, err := ledgerService.Create(ctx, ledger.CreateParams{
		Name:         sp.Name,
		URL:          sp.URL,
		CompanyName:  sp.CompanyName,
		Email:        sp.Email,
		Plan:         models.Plan(sp.Plan),
		Username:     sp.Username,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("profile_id", profile.ID).Str("name", profile.Name).Msg("profile created")

	refs := make(map[string]string, len(sp.Tracks))
	for _, path := range sp.Tracks {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open track %s: %w", path, err)
		}
		ref, err := mediaService.Store(ctx, profile.ID, filepath.Base(path), f)
		f.Close()
		if err != nil {
			return fmt.Errorf("store track %s: %w", path, err)
		}
		refs[filepath.Base(path)] = ref
		logger.Info().Str("profile_id", profile.ID).Str("track_ref", ref).Msg("track uploaded")
	}

	if len(sp.Schedule) == 0 {
		return nil
	}
	inputs := make([]schedule.EntryInput, len(sp.Schedule))
	for i, entry := range sp.Schedule {
		inputs[i] = schedule.EntryInput{Time: entry.Time, TrackRef: refs[entry.Track]}
	}
	if _, err := scheduleStore.Replace(ctx, profile.ID, inputs); err != nil {
		return fmt.Errorf("write timetable: %w", err)
	}
	return nil
}
