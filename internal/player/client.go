/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player is the headless playback client. It polls the API for the
// profile snapshot and timetable and drives a playback engine against them.
package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/playback"
)

// Client talks to the radio API with a profile token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	token     string
	profileID string
}

// NewClient creates an unauthenticated client for baseURL.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "player_client").Logger(),
	}
}

// ProfileID returns the profile this client is bound to after Login.
func (c *Client) ProfileID() string {
	return c.profileID
}

// Login exchanges profile credentials for a token. Admin tokens are refused:
// the player must run as exactly one profile.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: %s", resp.Status)
	}

	var result struct {
		Token     string `json:"token"`
		Role      string `json:"role"`
		ProfileID string `json:"profileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode login response: %w", err)
	}
	if result.ProfileID == "" {
		return fmt.Errorf("credentials belong to a %s account, not a profile", result.Role)
	}

	c.token = result.Token
	c.profileID = result.ProfileID
	c.logger = c.logger.With().Str("profile_id", result.ProfileID).Logger()
	return nil
}

// Snapshot fetches the current gates and stream source for the profile.
func (c *Client) Snapshot(ctx context.Context) (playback.Snapshot, error) {
	var result struct {
		Blocked      bool   `json:"blocked"`
		AlarmBlocked bool   `json:"alarmBlocked"`
		StreamURL    string `json:"streamUrl"`
	}
	if err := c.getJSON(ctx, "/api/radio/"+c.profileID+"/player", &result); err != nil {
		return playback.Snapshot{}, err
	}
	return playback.Snapshot{
		Blocked:      result.Blocked,
		AlarmBlocked: result.AlarmBlocked,
		StreamURL:    result.StreamURL,
	}, nil
}

// Schedule fetches the profile's timetable in stored order.
func (c *Client) Schedule(ctx context.Context) ([]models.ScheduleEntry, error) {
	var result []struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
		Time     string `json:"time"`
		TrackRef string `json:"trackRef"`
	}
	if err := c.getJSON(ctx, "/api/radiostreams/"+c.profileID+"/schedule", &result); err != nil {
		return nil, err
	}

	entries := make([]models.ScheduleEntry, len(result))
	for i, e := range result {
		entries[i] = models.ScheduleEntry{
			ID:        e.ID,
			ProfileID: c.profileID,
			Position:  e.Position,
			Time:      e.Time,
			TrackRef:  e.TrackRef,
		}
	}
	return entries, nil
}

// TrackURL resolves a track reference to its streaming URL.
func (c *Client) TrackURL(ref string) string {
	return c.baseURL + "/api/tracks/" + ref
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
