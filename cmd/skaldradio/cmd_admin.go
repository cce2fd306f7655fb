/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/db"
	"github.com/friendsincode/skald_radio/internal/models"
)

var (
	adminUsername string
	adminPassword string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage platform administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a platform administrator account",
	Long: `Create an administrator account that can manage all radio stream profiles.

Examples:
  # Create an admin, prompting for the password
  skaldradio admin create --username admin

  # Non-interactive (password on the command line is visible in shell history)
  skaldradio admin create --username admin --password s3cret
`,
	RunE: runAdminCreate,
}

func init() {
	adminCreateCmd.Flags().StringVar(&adminUsername, "username", "", "Administrator username (required)")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password (prompted when omitted)")
	adminCreateCmd.MarkFlagRequired("username")

	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if adminPassword == "" {
		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		adminPassword = strings.TrimSpace(line)
	}
	if len(adminPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var existing models.User
	err = database.First(&existing, "username = ?", adminUsername).Error
	if err == nil {
		return fmt.Errorf("user %q already exists", adminUsername)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:           uuid.NewString(),
		Username:     adminUsername,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := database.Create(&user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("administrator created")
	fmt.Printf("Administrator %q created.\n", user.Username)
	return nil
}
