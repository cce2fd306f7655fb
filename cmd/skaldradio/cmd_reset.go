/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/skald_radio/internal/db"
	"github.com/friendsincode/skald_radio/internal/models"
)

var (
	resetForce       bool
	resetDeleteMedia bool
	resetKeepAdmins  int
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the database and optionally delete all media",
	Long: `Reset Skald Radio to a fresh state.

This command will:
- Drop all tables from the database (except optionally preserved admins)
- Re-create empty tables
- Optionally delete all uploaded media files

WARNING: This action is irreversible! All data will be lost.

Examples:
  # Interactive reset (will prompt for confirmation)
  skaldradio reset

  # Force reset without confirmation
  skaldradio reset --force

  # Reset and delete all media files
  skaldradio reset --force --delete-media

  # Reset but keep up to 3 admin accounts
  skaldradio reset --force --keep-admins=3
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetForce, "force", "f", false, "Skip confirmation prompt")
	resetCmd.Flags().BoolVar(&resetDeleteMedia, "delete-media", false, "Also delete all uploaded media files")
	resetCmd.Flags().IntVar(&resetKeepAdmins, "keep-admins", 0, "Number of admin accounts to preserve (0 = delete all)")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !resetForce {
		fmt.Println()
		fmt.Println("WARNING: this will DELETE ALL DATA from Skald Radio:")
		if resetKeepAdmins > 0 {
			fmt.Printf("  - All admin accounts EXCEPT the first %d\n", resetKeepAdmins)
		} else {
			fmt.Println("  - All admin accounts")
		}
		fmt.Println("  - All radio stream profiles and subscriptions")
		fmt.Println("  - All timetables and history")
		if resetDeleteMedia {
			fmt.Println("  - ALL UPLOADED MEDIA FILES")
		}
		fmt.Println()
		fmt.Println("This action CANNOT be undone!")
		fmt.Println()

		fmt.Print("Type 'yes' to confirm reset: ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	logger.Info().
		Bool("delete_media", resetDeleteMedia).
		Int("keep_admins", resetKeepAdmins).
		Msg("Starting database reset")

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close(database)

	// If keeping admins, preserve them first
	var preserved []models.User
	if resetKeepAdmins > 0 {
		logger.Info().Int("count", resetKeepAdmins).Msg("Preserving admin accounts")
		database.Order("created_at ASC").Limit(resetKeepAdmins).Find(&preserved)
		for _, u := range preserved {
			logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("Preserving admin")
		}
	}

	// Drop tables in reverse order of dependencies
	tables := []interface{}{
		&models.HistoryEvent{},
		&models.ScheduleEntry{},
		&models.Profile{},
		&models.User{},
	}

	logger.Info().Msg("Dropping all tables")
	for _, table := range tables {
		if err := database.Migrator().DropTable(table); err != nil {
			// Log but continue - table might not exist
			logger.Debug().Err(err).Msg("drop table (may not exist)")
		}
	}

	if resetDeleteMedia && cfg.MediaRoot != "" && cfg.S3Bucket == "" {
		logger.Info().Str("path", cfg.MediaRoot).Msg("Deleting media files...")

		err := filepath.Walk(cfg.MediaRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if path == cfg.MediaRoot {
				return nil
			}
			if !info.IsDir() {
				if err := os.Remove(path); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("failed to delete file")
				}
			}
			return nil
		})
		if err != nil {
			logger.Warn().Err(err).Msg("error walking media directory")
		}
		logger.Info().Msg("Media files deleted")
	}

	logger.Info().Msg("Creating fresh database schema")
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(preserved) > 0 {
		logger.Info().Int("count", len(preserved)).Msg("Restoring preserved admins")
		for _, u := range preserved {
			u.UpdatedAt = u.CreatedAt
			if err := database.Create(&u).Error; err != nil {
				logger.Error().Err(err).Str("username", u.Username).Msg("failed to restore admin")
			} else {
				logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("Admin restored")
			}
		}
	}

	logger.Info().Msg("Reset complete")
	fmt.Println()
	fmt.Println("Skald Radio has been reset to a fresh state.")
	fmt.Println("Next steps:")
	fmt.Println("  1. Create an admin account: skaldradio admin create --username admin")
	fmt.Println("  2. Start the server: skaldradio serve")
	fmt.Println()

	return nil
}
