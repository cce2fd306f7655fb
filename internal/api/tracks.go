/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/media"
	"github.com/friendsincode/skald_radio/internal/models"
)

type trackResponse struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

func (a *API) handleTracksList(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	refs, err := a.media.List(r.Context(), profileID)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}

	out := make([]trackResponse, len(refs))
	for i, ref := range refs {
		out[i] = trackResponse{Ref: ref, URL: "/api/tracks/" + ref}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleTrackUpload(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	if _, err := a.ledger.Get(r.Context(), profileID); err != nil {
		a.writeLedgerError(w, err)
		return
	}

	if err := r.ParseMultipartForm(a.uploadLimit()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer file.Close()

	ref, err := a.media.Store(r.Context(), profileID, header.Filename, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "media_store_failed")
		return
	}

	if err := a.history.Record(r.Context(), nil, profileID, models.HistoryTrackUploaded,
		fmt.Sprintf("track %q uploaded", header.Filename)); err != nil {
		a.logger.Warn().Err(err).Str("ref", ref).Msg("history write failed for upload")
	}
	a.bus.Publish(events.EventTrackUploaded, events.Payload{"profile_id": profileID, "ref": ref})

	writeJSON(w, http.StatusCreated, trackResponse{Ref: ref, URL: "/api/tracks/" + ref})
}

// handleTrackDelete removes the object and prunes every timetable row that
// referenced it, so the player cannot be scheduled onto a missing track.
func (a *API) handleTrackDelete(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	ref := chi.URLParam(r, "trackRef")

	if media.ProfileID(ref) != profileID {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	if err := a.media.Delete(r.Context(), ref); err != nil {
		a.writeLedgerError(w, err)
		return
	}
	pruned, err := a.schedule.RemoveTrack(r.Context(), profileID, ref)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}

	if err := a.history.Record(r.Context(), nil, profileID, models.HistoryTrackDeleted,
		fmt.Sprintf("track %q deleted, %d schedule entr(ies) removed", ref, pruned)); err != nil {
		a.logger.Warn().Err(err).Str("ref", ref).Msg("history write failed for delete")
	}
	a.bus.Publish(events.EventTrackDeleted, events.Payload{"profile_id": profileID, "ref": ref})
	a.cache.InvalidateProfile(r.Context(), profileID)

	w.WriteHeader(http.StatusNoContent)
}

// handleTrackStream serves stored audio. Unauthenticated: audio elements
// fetch these URLs without headers, the refs are unguessable UUID prefixes.
func (a *API) handleTrackStream(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "trackRef")
	a.streamMedia(w, r, ref)
}

func (a *API) streamMedia(w http.ResponseWriter, r *http.Request, ref string) {
	rc, err := a.media.Open(r.Context(), ref)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		a.writeLedgerError(w, err)
		return
	}
	defer rc.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(ref)); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")

	if _, err := io.Copy(w, rc); err != nil {
		a.logger.Debug().Err(err).Str("ref", ref).Msg("media stream aborted")
	}
}
