/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/models"
)

type historyEventResponse struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

type historyListResponse struct {
	Events []historyEventResponse `json:"events"`
	Total  int64                  `json:"total"`
}

// handleHistoryList returns the profile's transition log, most recent first.
// Optional query params: action, start, end (RFC 3339), limit, offset.
func (a *API) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	filters := history.QueryFilters{ProfileID: &profileID}

	if actionStr := r.URL.Query().Get("action"); actionStr != "" {
		action := models.HistoryAction(actionStr)
		filters.Action = &action
	}
	if startStr := r.URL.Query().Get("start"); startStr != "" {
		start, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start")
			return
		}
		filters.StartTime = &start
	}
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		end, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end")
			return
		}
		filters.EndTime = &end
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filters.Offset = offset
		}
	}

	found, total, err := a.history.Query(r.Context(), filters)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}

	out := historyListResponse{Events: make([]historyEventResponse, len(found)), Total: total}
	for i, event := range found {
		out.Events[i] = historyEventResponse{
			ID:        event.ID,
			Action:    string(event.Action),
			Timestamp: event.Timestamp,
			Details:   event.Details,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
