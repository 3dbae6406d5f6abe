package models

import (
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

// Submission is the single row kept per (user, challenge) pair. Every
// attempt overwrites the signals of the previous one; Status never moves
// back from completed.
type Submission struct {
	SubmissionID       string         `json:"submissionId" db:"submission_id"`
	UserID             string         `json:"userId" db:"user_id"`
	ChallengeID        string         `json:"challengeId" db:"challenge_id"`
	Code               string         `json:"code" db:"code"`
	Status             rewards.Status `json:"status" db:"status"`
	TestsPassed        int            `json:"testsPassed" db:"tests_passed"`
	TestsTotal         int            `json:"testsTotal" db:"tests_total"`
	TimeElapsedSeconds float64        `json:"timeElapsed" db:"time_elapsed_seconds"`
	HintsUsed          int            `json:"hintsUsed" db:"hints_used"`
	IsPerfectSolve     bool           `json:"isPerfectSolve" db:"is_perfect_solve"`
	Attempts           int            `json:"attempts" db:"attempts"`
	XPEarned           int            `json:"xpEarned" db:"xp_earned"`
	CoinsEarned        int            `json:"coinsEarned" db:"coins_earned"`
	CompletedAt        *time.Time     `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt          time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time      `json:"updatedAt" db:"updated_at"`
}

// SubmitRequest is the body of POST /v1/challenges/{id}/submit.
type SubmitRequest struct {
	ChallengeID    string  `json:"challengeId,omitempty"`
	Code           string  `json:"code"`
	TestsPassed    int     `json:"testsPassed"`
	TestsTotal     int     `json:"testsTotal"`
	TimeElapsed    float64 `json:"timeElapsed"`
	HintsUsed      int     `json:"hintsUsed"`
	IsPerfectSolve bool    `json:"isPerfectSolve"`
}

// SubmitResponse keeps the success/pointsEarned/coinsEarned/rewardBreakdown
// envelope clients already rely on, plus status and progression extras.
type SubmitResponse struct {
	Success           bool              `json:"success"`
	PointsEarned      int               `json:"pointsEarned"`
	CoinsEarned       int               `json:"coinsEarned"`
	RewardBreakdown   rewards.Breakdown `json:"rewardBreakdown"`
	Status            rewards.Status    `json:"status,omitempty"`
	IsFirstCompletion bool              `json:"isFirstCompletion"`
	Progression       *ProgressionView  `json:"progression,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// FailedSubmitResponse is the zeroed envelope returned on any error.
func FailedSubmitResponse(msg string) SubmitResponse {
	return SubmitResponse{
		Success:         false,
		RewardBreakdown: rewards.Breakdown{Bonuses: []rewards.Bonus{}},
		Error:           msg,
	}
}

// SettleState is what the store reads, under the pair lock, before the
// reward decision is made.
type SettleState struct {
	Prior       rewards.Status
	Profile     User
	Multipliers []ActiveMultiplier
}

// Settlement is the full set of writes that one submission commits
// atomically.
type Settlement struct {
	Submission Submission
	// PointsDelta is added to total_points.
	PointsDelta int
	// LevelXPDelta goes through add_user_xp and may level the user up.
	LevelXPDelta int
	CoinsDelta   int
	// SolvedDelta bumps both the profile's total_solved and the
	// challenge's solved_count.
	SolvedDelta int
	Activities  []Activity
	TouchStreak bool
}

// SettleFunc turns the locked state into a Settlement. Returning an error
// rolls the transaction back.
type SettleFunc func(state SettleState) (Settlement, error)
