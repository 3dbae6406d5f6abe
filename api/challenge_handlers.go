package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

var ErrChallengeNotFound = errors.New("challenge not found")

// activeChallenge loads a challenge and hides inactive ones.
func (app *Application) activeChallenge(r *http.Request, challengeID string) (models.Challenge, error) {
	c, err := app.ChallengeRepo.Get(r.Context(), challengeID)
	if err != nil {
		if datastore.IsNoRows(err) {
			return models.Challenge{}, fmt.Errorf("%w: %s", ErrChallengeNotFound, challengeID)
		}
		return models.Challenge{}, err
	}
	if !c.IsActive {
		return models.Challenge{}, fmt.Errorf("%w: %s", ErrChallengeNotFound, challengeID)
	}
	return c, nil
}

// GET /v1/challenges
func (app *Application) listChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := app.ChallengeRepo.ListActive(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

// GET /v1/challenges/{challengeID}
func (app *Application) getChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := app.activeChallenge(r, chi.URLParam(r, "challengeID"))
	if errors.Is(err, ErrChallengeNotFound) {
		app.notFound(w, r, err)
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// POST /v1/admin/challenges
func (app *Application) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	created, err := app.ChallengeRepo.Create(r.Context(), models.NewChallenge(req))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info().Str("challenge_id", created.ChallengeID).Msg("Challenge created")
	writeJSON(w, http.StatusCreated, created)
}

// PUT /v1/admin/challenges/{challengeID}
func (app *Application) updateChallenge(w http.ResponseWriter, r *http.Request) {
	var req models.ChallengeRequest
	if err := decodeJSON(r, &req); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	challengeID := chi.URLParam(r, "challengeID")
	existing, err := app.ChallengeRepo.Get(r.Context(), challengeID)
	if datastore.IsNoRows(err) {
		app.notFound(w, r, fmt.Errorf("%w: %s", ErrChallengeNotFound, challengeID))
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	existing.Apply(req)
	updated, err := app.ChallengeRepo.Update(r.Context(), existing)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /v1/admin/challenges/{challengeID}
func (app *Application) deactivateChallenge(w http.ResponseWriter, r *http.Request) {
	challengeID := chi.URLParam(r, "challengeID")
	err := app.ChallengeRepo.Deactivate(r.Context(), challengeID)
	if datastore.IsNoRows(err) {
		app.notFound(w, r, fmt.Errorf("%w: %s", ErrChallengeNotFound, challengeID))
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info().Str("challenge_id", challengeID).Msg("Challenge deactivated")
	w.WriteHeader(http.StatusNoContent)
}
