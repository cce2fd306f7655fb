/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/ledger"
	"github.com/friendsincode/skald_radio/internal/models"
)

const tokenTTL = 24 * time.Hour

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	ProfileID string `json:"profileId,omitempty"`
}

// handleLogin authenticates either a platform admin or a profile account.
// Admin accounts are checked first; profile usernames are unique against
// them by convention.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "credentials_required")
		return
	}

	var user models.User
	err := a.db.WithContext(r.Context()).First(&user, "username = ?", req.Username).Error
	switch {
	case err == nil:
		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		a.issueToken(w, auth.Claims{UserID: user.ID, Role: auth.RoleAdmin})
		return
	case !errors.Is(err, gorm.ErrRecordNotFound):
		a.writeLedgerError(w, err)
		return
	}

	profile, err := a.ledger.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		a.writeLedgerError(w, err)
		return
	}
	if !auth.CheckPassword(profile.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	a.issueToken(w, auth.Claims{UserID: profile.ID, Role: auth.RoleProfile, ProfileID: profile.ID})
}

func (a *API) issueToken(w http.ResponseWriter, claims auth.Claims) {
	token, err := auth.Issue(a.jwtSecret, claims, tokenTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: claims.Role, ProfileID: claims.ProfileID})
}
