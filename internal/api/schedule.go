/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skald_radio/internal/models"
	"github.com/friendsincode/skald_radio/internal/schedule"
)

type scheduleEntryResponse struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Time     string `json:"time"`
	TrackRef string `json:"trackRef"`
}

func toScheduleResponse(entries []models.ScheduleEntry) []scheduleEntryResponse {
	out := make([]scheduleEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = scheduleEntryResponse{ID: e.ID, Position: e.Position, Time: e.Time, TrackRef: e.TrackRef}
	}
	return out
}

func (a *API) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	if entries, ok := a.cache.GetSchedule(r.Context(), profileID); ok {
		writeJSON(w, http.StatusOK, toScheduleResponse(entries))
		return
	}

	entries, err := a.schedule.List(r.Context(), profileID)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.SetSchedule(r.Context(), profileID, entries)
	writeJSON(w, http.StatusOK, toScheduleResponse(entries))
}

// handleScheduleReplace swaps the whole timetable. The request body is the
// full ordered list; there is no row-level edit.
func (a *API) handleScheduleReplace(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	var inputs []schedule.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	entries, err := a.schedule.Replace(r.Context(), profileID, inputs)
	if err != nil {
		if errors.Is(err, schedule.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_schedule")
		return
	}

	a.cache.InvalidateProfile(r.Context(), profileID)
	writeJSON(w, http.StatusOK, toScheduleResponse(entries))
}
