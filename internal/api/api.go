/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface: profile management, timetables,
// track storage, the player snapshot, history, and the events WebSocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/cache"
	"github.com/friendsincode/skald_radio/internal/config"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/history"
	"github.com/friendsincode/skald_radio/internal/ledger"
	"github.com/friendsincode/skald_radio/internal/media"
	"github.com/friendsincode/skald_radio/internal/schedule"
)

// API exposes HTTP handlers.
type API struct {
	db        *gorm.DB
	cfg       *config.Config
	jwtSecret []byte
	ledger    *ledger.Service
	schedule  *schedule.Store
	media     *media.Service
	history   *history.Recorder
	cache     *cache.Cache
	bus       *events.Bus
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(db *gorm.DB, cfg *config.Config, ledgerSvc *ledger.Service, scheduleStore *schedule.Store, mediaSvc *media.Service, historyRec *history.Recorder, cacheSvc *cache.Cache, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		db:        db,
		cfg:       cfg,
		jwtSecret: []byte(cfg.JWTSigningKey),
		ledger:    ledgerSvc,
		schedule:  scheduleStore,
		media:     mediaSvc,
		history:   historyRec,
		cache:     cacheSvc,
		bus:       bus,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all endpoints under /api.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Post("/auth/login", a.handleLogin)

		// Track streaming is unauthenticated: the player's audio elements
		// fetch these URLs directly and cannot attach headers.
		r.Get("/tracks/{trackRef}", a.handleTrackStream)
		r.Get("/radiostreams/{profileID}/logo", a.handleProfileLogo)

		r.Group(func(pr chi.Router) {
			pr.Use(auth.Middleware(a.jwtSecret))

			pr.Get("/events", a.handleEvents)
			pr.Get("/radio/{profileID}/player", a.handlePlayerSnapshot)

			pr.Route("/radiostreams", func(r chi.Router) {
				r.With(auth.RequireAdmin).Get("/", a.handleProfilesList)
				r.With(auth.RequireAdmin).Post("/", a.handleProfileCreate)

				r.Route("/{profileID}", func(r chi.Router) {
					r.Use(a.requireProfileAccess)

					r.Get("/", a.handleProfileGet)
					r.Get("/days-left", a.handleDaysLeft)
					r.Get("/history", a.handleHistoryList)

					r.Route("/schedule", func(sr chi.Router) {
						sr.Get("/", a.handleScheduleList)
						sr.Put("/", a.handleScheduleReplace)
					})
					r.Route("/tracks", func(tr chi.Router) {
						tr.Get("/", a.handleTracksList)
						tr.Post("/", a.handleTrackUpload)
						tr.Delete("/{trackRef}", a.handleTrackDelete)
					})

					// Mutations below are admin-only.
					r.Group(func(ar chi.Router) {
						ar.Use(auth.RequireAdmin)
						ar.Put("/", a.handleProfileUpdate)
						ar.Delete("/", a.handleProfileDelete)
						ar.Post("/block", a.handleBlock)
						ar.Post("/unblock", a.handleUnblock)
						ar.Post("/block-alarm", a.handleBlockAlarm)
						ar.Post("/unblock-alarm", a.handleUnblockAlarm)
						ar.Post("/renew", a.handleRenew)
					})
				})
			})
		})
	})
}

// requireProfileAccess lets admins through and pins profile tokens to their
// own record.
func (a *API) requireProfileAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !claims.CanAccess(chi.URLParam(r, "profileID")) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeLedgerError maps service errors to HTTP statuses.
func (a *API) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, schedule.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	default:
		a.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
