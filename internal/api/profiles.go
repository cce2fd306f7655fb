/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/ledger"
	"github.com/friendsincode/skald_radio/internal/models"
)

// defaultUploadLimit bounds multipart bodies when no override is configured.
const defaultUploadLimit = 64 << 20

type profileResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	URL          string      `json:"url"`
	CompanyName  string      `json:"companyName"`
	Email        string      `json:"email"`
	Logo         string      `json:"logo,omitempty"`
	Plan         models.Plan `json:"plan"`
	CreatedAt    time.Time   `json:"createdAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Blocked      bool        `json:"blocked"`
	AlarmBlocked bool        `json:"alarmBlocked"`
	Username     string      `json:"username"`
	DaysLeft     int         `json:"daysLeft"`
}

func (a *API) toProfileResponse(p *models.Profile) profileResponse {
	resp := profileResponse{
		ID:           p.ID,
		Name:         p.Name,
		URL:          p.URL,
		CompanyName:  p.CompanyName,
		Email:        p.Email,
		Plan:         p.Plan,
		CreatedAt:    p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
		Blocked:      p.Blocked,
		AlarmBlocked: p.AlarmBlocked,
		Username:     p.Username,
		DaysLeft:     ledger.DaysLeft(p, time.Now()),
	}
	if p.Logo != "" {
		resp.Logo = "/api/radiostreams/" + p.ID + "/logo"
	}
	return resp
}

func (a *API) uploadLimit() int64 {
	if limit := a.cfg.MaxUploadSizeBytes(); limit > 0 {
		return limit
	}
	return defaultUploadLimit
}

func (a *API) handleProfilesList(w http.ResponseWriter, r *http.Request) {
	if profiles, ok := a.cache.GetProfileList(r.Context()); ok {
		a.writeProfileList(w, profiles)
		return
	}

	profiles, err := a.ledger.List(r.Context())
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.SetProfileList(r.Context(), profiles)
	a.writeProfileList(w, profiles)
}

func (a *API) writeProfileList(w http.ResponseWriter, profiles []models.Profile) {
	out := make([]profileResponse, len(profiles))
	for i := range profiles {
		out[i] = a.toProfileResponse(&profiles[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// handleProfileCreate accepts multipart form data so the logo can ride along
// with the scalar fields.
func (a *API) handleProfileCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.uploadLimit()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	plan := models.Plan(r.FormValue("plan"))
	if !plan.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_plan")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "credentials_required")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}

	profile, err := a.ledger.Create(r.Context(), ledger.CreateParams{
		Name:         name,
		URL:          r.FormValue("url"),
		CompanyName:  r.FormValue("companyName"),
		Email:        r.FormValue("email"),
		Plan:         plan,
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}

	if ref, ok := a.storeLogo(w, r, profile.ID); ok && ref != "" {
		if err := a.db.WithContext(r.Context()).Model(&models.Profile{}).
			Where("id = ?", profile.ID).Update("logo", ref).Error; err != nil {
			a.writeLedgerError(w, err)
			return
		}
		profile.Logo = ref
	} else if !ok {
		return
	}

	writeJSON(w, http.StatusCreated, a.toProfileResponse(profile))
}

// storeLogo saves an optional "logo" form file. The bool result is false
// only when a response has already been written.
func (a *API) storeLogo(w http.ResponseWriter, r *http.Request, profileID string) (string, bool) {
	file, header, err := r.FormFile("logo")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", true
		}
		writeError(w, http.StatusBadRequest, "invalid_logo")
		return "", false
	}
	defer file.Close()

	ref, err := a.media.Store(r.Context(), profileID, header.Filename, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "media_store_failed")
		return "", false
	}
	return ref, true
}

func (a *API) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	profile, err := a.ledger.Get(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.toProfileResponse(profile))
}

type profilePatchRequest struct {
	Name        *string `json:"name"`
	URL         *string `json:"url"`
	CompanyName *string `json:"companyName"`
	Email       *string `json:"email"`
	Plan        *string `json:"plan"`
}

// handleProfileUpdate accepts a JSON patch, or multipart form data when the
// logo changes too. Absent fields stay untouched.
func (a *API) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")

	var patch ledger.Patch
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if ok := a.parseMultipartPatch(w, r, profileID, &patch); !ok {
			return
		}
	} else {
		var req profilePatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		patch.Name = req.Name
		patch.URL = req.URL
		patch.CompanyName = req.CompanyName
		patch.Email = req.Email
		if req.Plan != nil {
			plan := models.Plan(*req.Plan)
			if !plan.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_plan")
				return
			}
			patch.Plan = &plan
		}
	}

	profile, err := a.ledger.UpdateFields(r.Context(), profileID, patch)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.InvalidateProfile(r.Context(), profileID)
	writeJSON(w, http.StatusOK, a.toProfileResponse(profile))
}

func (a *API) parseMultipartPatch(w http.ResponseWriter, r *http.Request, profileID string, patch *ledger.Patch) bool {
	if err := r.ParseMultipartForm(a.uploadLimit()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return false
	}

	form := r.MultipartForm
	field := func(name string) *string {
		if values, ok := form.Value[name]; ok && len(values) > 0 {
			v := values[0]
			return &v
		}
		return nil
	}

	patch.Name = field("name")
	patch.URL = field("url")
	patch.CompanyName = field("companyName")
	patch.Email = field("email")
	if planStr := field("plan"); planStr != nil {
		plan := models.Plan(*planStr)
		if !plan.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_plan")
			return false
		}
		patch.Plan = &plan
	}

	if hasFormFile(form, "logo") {
		ref, ok := a.storeLogo(w, r, profileID)
		if !ok {
			return false
		}
		if ref != "" {
			patch.Logo = &ref
		}
	}
	return true
}

func hasFormFile(form *multipart.Form, name string) bool {
	files, ok := form.File[name]
	return ok && len(files) > 0
}

func (a *API) handleProfileDelete(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	if err := a.ledger.Delete(r.Context(), profileID); err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.InvalidateProfile(r.Context(), profileID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleBlock(w http.ResponseWriter, r *http.Request) {
	a.gateChange(w, r, a.ledger.Block)
}

func (a *API) handleUnblock(w http.ResponseWriter, r *http.Request) {
	a.gateChange(w, r, a.ledger.Unblock)
}

func (a *API) handleBlockAlarm(w http.ResponseWriter, r *http.Request) {
	a.gateChange(w, r, func(ctx context.Context, id string) (*models.Profile, error) {
		return a.ledger.SetAlarmBlocked(ctx, id, true)
	})
}

func (a *API) handleUnblockAlarm(w http.ResponseWriter, r *http.Request) {
	a.gateChange(w, r, func(ctx context.Context, id string) (*models.Profile, error) {
		return a.ledger.SetAlarmBlocked(ctx, id, false)
	})
}

func (a *API) gateChange(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*models.Profile, error)) {
	profileID := chi.URLParam(r, "profileID")
	profile, err := op(r.Context(), profileID)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.InvalidateProfile(r.Context(), profileID)
	writeJSON(w, http.StatusOK, a.toProfileResponse(profile))
}

func (a *API) handleRenew(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	profile, err := a.ledger.Renew(r.Context(), profileID, time.Now())
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.InvalidateProfile(r.Context(), profileID)
	writeJSON(w, http.StatusOK, a.toProfileResponse(profile))
}

func (a *API) handleDaysLeft(w http.ResponseWriter, r *http.Request) {
	daysLeft, err := a.ledger.DaysLeft(r.Context(), chi.URLParam(r, "profileID"), time.Now())
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"daysLeft": daysLeft})
}

type playerSnapshotResponse struct {
	Blocked      bool   `json:"blocked"`
	AlarmBlocked bool   `json:"alarmBlocked"`
	StreamURL    string `json:"streamUrl"`
	DaysLeft     int    `json:"daysLeft"`
}

// handlePlayerSnapshot is the player's per-second poll. The grace monitor
// rides on this path: every poll re-checks whether the subscription ran out
// of its post-expiry allowance, so no separate timer is needed.
func (a *API) handlePlayerSnapshot(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	profileID := chi.URLParam(r, "profileID")
	if !ok || !claims.CanAccess(profileID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	now := time.Now()
	if cached, hit := a.cache.GetProfile(r.Context(), profileID); hit {
		// A cached snapshot is only trustworthy while the grace monitor
		// would not act on it.
		if cached.AlarmBlocked || !ledger.GraceExpired(cached, now) {
			a.writeSnapshot(w, cached, now)
			return
		}
	}

	profile, err := a.ledger.EnforceGrace(r.Context(), profileID, now)
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	a.cache.SetProfile(r.Context(), profile)
	a.writeSnapshot(w, profile, now)
}

func (a *API) writeSnapshot(w http.ResponseWriter, profile *models.Profile, now time.Time) {
	writeJSON(w, http.StatusOK, playerSnapshotResponse{
		Blocked:      profile.Blocked,
		AlarmBlocked: profile.AlarmBlocked,
		StreamURL:    profile.URL,
		DaysLeft:     ledger.DaysLeft(profile, now),
	})
}

func (a *API) handleProfileLogo(w http.ResponseWriter, r *http.Request) {
	profile, err := a.ledger.Get(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		a.writeLedgerError(w, err)
		return
	}
	if profile.Logo == "" {
		writeError(w, http.StatusNotFound, "no_logo")
		return
	}
	a.streamMedia(w, r, profile.Logo)
}
