/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/skald_radio/internal/logging"
	"github.com/friendsincode/skald_radio/internal/player"
)

var (
	playerServerURL string
	playerUsername  string
	playerPassword  string
	playerTrackSecs int
	playerLogFormat string
)

var playerRootCmd = &cobra.Command{
	Use:   "skaldplayer",
	Short: "Skald Radio headless player",
	Long: `Run the announcement playback cycle for one radio stream profile.

The player polls the server for the profile's gates and timetable, ducks the
live stream out around scheduled announcements, and fades it back in after.
Audio output is logged; wire a real pipeline behind the output interface for
actual sound.`,
	RunE: runPlayer,
}

func init() {
	playerRootCmd.Flags().StringVar(&playerServerURL, "server", "", "Skald Radio server base URL (required)")
	playerRootCmd.Flags().StringVar(&playerUsername, "username", "", "Profile username (required)")
	playerRootCmd.Flags().StringVar(&playerPassword, "password", "", "Profile password (or SKALD_PLAYER_PASSWORD)")
	playerRootCmd.Flags().IntVar(&playerTrackSecs, "announcement-seconds", 30, "Simulated announcement length in headless mode")
	playerRootCmd.Flags().StringVar(&playerLogFormat, "env", "development", "Log environment (development or production)")
	playerRootCmd.MarkFlagRequired("server")
	playerRootCmd.MarkFlagRequired("username")
}

func main() {
	if err := playerRootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runPlayer(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(playerLogFormat)

	password := playerPassword
	if password == "" {
		password = os.Getenv("SKALD_PLAYER_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("password required (flag or SKALD_PLAYER_PASSWORD)")
	}

	session, err := player.NewSession(player.SessionConfig{
		BaseURL:            playerServerURL,
		Username:           playerUsername,
		Password:           password,
		AnnouncementLength: time.Duration(playerTrackSecs) * time.Second,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Info().Msg("shutting down")
		cancel()
	}()

	logger.Info().Str("target", session.Describe()).Msg("Skald Player starting")
	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
