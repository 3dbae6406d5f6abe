package api

import (
	"net/http"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

// GET /v1/users/me/activity?limit=
func (app *Application) getMyActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	entries, err := app.ActivityRepo.ListByUser(r.Context(), mustCaller(r).UserID, limit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /v1/users/me/progression
func (app *Application) getMyProgression(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := mustCaller(r).UserID
	now := app.clock()

	user, err := app.UserRepo.Get(ctx, userID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	ms, err := app.MultiplierRepo.ListActive(ctx, userID, now)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	rank, err := app.LeaderboardRepo.UserRank(ctx, userID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	view := app.progressionView(user, ms, app.Accumulator.Summary(models.Snapshot(user, ms), now))
	view.Rank = rank
	writeJSON(w, http.StatusOK, view)
}

// GET /v1/leaderboard?limit=
func (app *Application) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	entries, err := app.LeaderboardRepo.Top(r.Context(), limit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
