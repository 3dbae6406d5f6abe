package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

func (app *Application) failSubmit(w http.ResponseWriter, r *http.Request, status int, err error) {
	l := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Msg("Submission failed")
	} else {
		l.Info().Err(err).Int("status", status).Msg("Submission rejected")
	}
	writeJSON(w, status, models.FailedSubmitResponse(err.Error()))
}

func rewardsChallenge(c models.Challenge) rewards.Challenge {
	return rewards.Challenge{
		ID:               c.ChallengeID,
		BasePoints:       c.BasePoints,
		Rank:             c.Rank,
		TimeLimitSeconds: c.TimeLimitSeconds,
	}
}

func attemptFrom(req models.SubmitRequest) rewards.Attempt {
	return rewards.Attempt{
		ChallengeID:        req.ChallengeID,
		Code:               req.Code,
		TestsPassed:        req.TestsPassed,
		TestsTotal:         req.TestsTotal,
		TimeElapsedSeconds: req.TimeElapsed,
		HintsUsed:          req.HintsUsed,
		IsPerfectSolve:     req.IsPerfectSolve,
	}
}

// buildSettlement turns a processed outcome into the writes committed with
// the submission.
func buildSettlement(userID, challengeID string, attempt rewards.Attempt, out rewards.Outcome, prog rewards.Progression) (models.Settlement, error) {
	s := models.Settlement{
		Submission: models.Submission{
			UserID:             userID,
			ChallengeID:        challengeID,
			Code:               attempt.Code,
			Status:             out.Status,
			TestsPassed:        attempt.TestsPassed,
			TestsTotal:         attempt.TestsTotal,
			TimeElapsedSeconds: attempt.TimeElapsedSeconds,
			HintsUsed:          attempt.HintsUsed,
			IsPerfectSolve:     attempt.IsPerfectSolve,
			XPEarned:           out.AppliedXP,
			CoinsEarned:        out.AppliedCoins,
		},
		PointsDelta:  out.AppliedXP,
		LevelXPDelta: prog.LevelXPDelta,
		CoinsDelta:   out.Obligations.CreditCoins,
		TouchStreak:  true,
	}
	if out.Obligations.IncrementSolved {
		s.SolvedDelta = 1
	}

	if a := out.Obligations.Activity; a != nil {
		entry, err := models.NewActivity(a.UserID, a.Type, &challengeID, models.CompletionMetadata{
			IsPerfectSolve: a.IsPerfectSolve,
			TimeElapsed:    a.TimeElapsedSeconds,
			HintsUsed:      a.HintsUsed,
			XPEarned:       a.XPEarned,
			CoinsEarned:    a.CoinsEarned,
		})
		if err != nil {
			return models.Settlement{}, err
		}
		s.Activities = append(s.Activities, entry)
	}

	if prog.MysteryBox.JustEarned {
		entry, err := models.NewActivity(userID, models.ActivityMysteryBoxEarned, &challengeID, prog.MysteryBox)
		if err != nil {
			return models.Settlement{}, err
		}
		s.Activities = append(s.Activities, entry)
	}
	return s, nil
}

func (app *Application) progressionView(user models.User, ms []models.ActiveMultiplier, prog rewards.Progression) models.ProgressionView {
	if ms == nil {
		ms = []models.ActiveMultiplier{}
	}
	return models.ProgressionView{
		Level:             user.Level,
		CurrentXP:         user.CurrentXP,
		TotalPoints:       user.TotalPoints,
		Coins:             user.Coins,
		TotalSolved:       user.TotalSolved,
		CurrentStreak:     user.CurrentStreak,
		LevelXPGained:     prog.LevelXPDelta,
		Multiplier:        prog.Multiplier,
		StackingPolicy:    app.Accumulator.Policy(),
		ActiveMultipliers: ms,
		MysteryBox:        prog.MysteryBox,
	}
}

// POST /v1/challenges/{challengeID}/submit
func (app *Application) submitSolution(w http.ResponseWriter, r *http.Request) {
	caller := mustCaller(r)

	var req models.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		app.failSubmit(w, r, http.StatusBadRequest, err)
		return
	}

	challenge, err := app.activeChallenge(r, chi.URLParam(r, "challengeID"))
	if errors.Is(err, ErrChallengeNotFound) {
		app.failSubmit(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		app.failSubmit(w, r, http.StatusInternalServerError, err)
		return
	}

	attempt := attemptFrom(req)
	now := app.clock()

	var (
		outcome     rewards.Outcome
		prog        rewards.Progression
		multipliers []models.ActiveMultiplier
	)
	settled, profile, err := app.SubmissionRepo.Settle(r.Context(), caller.UserID, challenge.ChallengeID,
		func(state models.SettleState) (models.Settlement, error) {
			var err error
			outcome, err = app.Processor.Process(caller, attempt, rewardsChallenge(challenge),
				rewards.PriorState{Status: state.Prior})
			if err != nil {
				return models.Settlement{}, err
			}
			multipliers = state.Multipliers
			prog = app.Accumulator.Accumulate(models.Snapshot(state.Profile, state.Multipliers), outcome, now)
			return buildSettlement(caller.UserID, challenge.ChallengeID, attempt, outcome, prog)
		})
	if err != nil {
		if errors.Is(err, rewards.ErrValidation) {
			var verr *rewards.ValidationError
			if errors.As(err, &verr) {
				err = verr
			}
			app.failSubmit(w, r, http.StatusBadRequest, err)
			return
		}
		app.failSubmit(w, r, http.StatusInternalServerError, err)
		return
	}

	if len(settled.Activities) > 0 {
		app.Feed.Publish(settled.Activities...)
	}

	logger.FromContext(r.Context()).Info().
		Str("challenge_id", challenge.ChallengeID).
		Str("status", string(outcome.Status)).
		Bool("first_completion", outcome.IsFirstCompletion).
		Int("xp", outcome.AppliedXP).
		Int("coins", outcome.AppliedCoins).
		Int("level_xp", prog.LevelXPDelta).
		Msg("Submission settled")

	view := app.progressionView(profile, multipliers, prog)
	writeJSON(w, http.StatusOK, models.SubmitResponse{
		Success:           true,
		PointsEarned:      outcome.AppliedXP,
		CoinsEarned:       outcome.AppliedCoins,
		RewardBreakdown:   outcome.Rewards,
		Status:            outcome.Status,
		IsFirstCompletion: outcome.IsFirstCompletion,
		Progression:       &view,
	})
}

// GET /v1/users/me/submissions
func (app *Application) getMySubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := app.SubmissionRepo.ListByUser(r.Context(), mustCaller(r).UserID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
