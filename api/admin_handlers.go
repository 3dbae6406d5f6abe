package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

type grantMetadata struct {
	Amount    int     `json:"amount,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Minutes   int     `json:"durationMinutes,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	GrantedBy string  `json:"grantedBy"`
}

// POST /v1/admin/users/{userID}/coins
func (app *Application) grantCoins(w http.ResponseWriter, r *http.Request) {
	var req models.CoinGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if req.Amount <= 0 {
		app.badRequest(w, r, errors.New("amount must be positive"))
		return
	}

	userID := chi.URLParam(r, "userID")
	entry, err := models.NewActivity(userID, models.ActivityCoinsGranted, nil, grantMetadata{
		Amount:    req.Amount,
		Reason:    req.Reason,
		GrantedBy: mustCaller(r).UserID,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	user, err := app.UserRepo.GrantCoins(r.Context(), userID, req.Amount, entry)
	if datastore.IsNoRows(err) {
		app.notFound(w, r, fmt.Errorf("user %s not found", userID))
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info().Str("target_user", userID).Int("amount", req.Amount).Msg("Coins granted")
	writeJSON(w, http.StatusOK, user)
}

// POST /v1/admin/users/{userID}/multipliers
func (app *Application) grantMultiplier(w http.ResponseWriter, r *http.Request) {
	var req models.MultiplierGrantRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if req.Type == "" {
		req.Type = models.MultiplierEvent
	}
	if err := req.Validate(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	userID := chi.URLParam(r, "userID")
	if _, err := app.UserRepo.Get(r.Context(), userID); err != nil {
		if datastore.IsNoRows(err) {
			app.notFound(w, r, fmt.Errorf("user %s not found", userID))
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	admin := mustCaller(r).UserID
	duration := time.Duration(req.DurationMinutes) * time.Minute
	entry, err := models.NewActivity(userID, models.ActivityMultiplierGranted, nil, grantMetadata{
		Value:     req.Value,
		Minutes:   req.DurationMinutes,
		Reason:    req.Reason,
		GrantedBy: admin,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	m, err := app.MultiplierRepo.Grant(r.Context(), models.ActiveMultiplier{
		UserID:    userID,
		Type:      req.Type,
		Value:     req.Value,
		Source:    "admin:" + admin,
		ExpiresAt: app.clock().Add(duration),
	}, entry)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info().
		Str("target_user", userID).
		Float64("value", m.Value).
		Time("expires_at", m.ExpiresAt).
		Msg("Multiplier granted")
	writeJSON(w, http.StatusCreated, m)
}

// GET /v1/admin/analytics
func (app *Application) getAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := app.AnalyticsRepo.Summary(r.Context(), app.clock())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
