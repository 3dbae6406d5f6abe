package rewards

import (
	"fmt"
	"math"
	"strings"
)

// Status is the lifecycle state of a (user, challenge) submission record.
type Status string

const (
	StatusNone       Status = "none"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNone, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ActivityChallengeCompleted is the activity type appended on a first completion.
const ActivityChallengeCompleted = "challenge_completed"

// MaxTestCount bounds the test and hint counters of an attempt. They are
// stored in 32-bit columns.
const MaxTestCount = math.MaxInt32

// Caller is the resolved identity of whoever triggered the submission.
// It is supplied by the host; this package never looks up sessions.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// Challenge is the read-only challenge metadata a submission is scored against.
type Challenge struct {
	ID               string
	BasePoints       int
	Rank             int
	TimeLimitSeconds *float64
}

// Attempt is one submission event. Code is stored by the host but never
// interpreted here.
type Attempt struct {
	ChallengeID        string
	Code               string
	TestsPassed        int
	TestsTotal         int
	TimeElapsedSeconds float64
	HintsUsed          int
	IsPerfectSolve     bool
}

// PriorState is the submission state read before processing.
type PriorState struct {
	Status Status
}

// ActivityEntry is the log line the host appends on a first completion.
type ActivityEntry struct {
	UserID             string
	Type               string
	ChallengeID        string
	IsPerfectSolve     bool
	TimeElapsedSeconds float64
	HintsUsed          int
	XPEarned           int
	CoinsEarned        int
}

// Obligations lists the mutations the host must apply, atomically and
// keyed on (user_id, challenge_id), after a successful Process call.
type Obligations struct {
	// UpsertSubmission is always true: every attempt updates the record.
	UpsertSubmission bool
	// CreditCoins is the coin amount to add to the profile balance.
	CreditCoins int
	// IncrementSolved asks for the challenge's global solved counter and
	// the profile's total_solved to grow by exactly one.
	IncrementSolved bool
	// Activity is non-nil when an activity-log entry must be appended.
	Activity *ActivityEntry
}

// Outcome is the decision for one submission.
type Outcome struct {
	Status            Status
	Rewards           Breakdown
	IsFirstCompletion bool
	AppliedXP         int
	AppliedCoins      int
	Obligations       Obligations
}

// Processor decides the rewards for single submissions.
//
// Precondition: prior must have been read under a storage-level guarantee
// (row lock, advisory lock or unique-key compare-and-swap on
// user_id+challenge_id) so that at most one concurrent caller sees a
// non-completed prior state for the same pair. Without it two
// simultaneous first completions would both be credited.
type Processor struct {
	calc *Calculator
}

func NewProcessor(calc *Calculator) *Processor {
	return &Processor{calc: calc}
}

// Process validates the attempt, computes the reward breakdown and decides
// which portion of it is applied. Only the attempt that moves the pair into
// completed is credited: partial attempts and re-solves apply nothing, but
// the returned Rewards still show what the attempt would have earned.
func (p *Processor) Process(caller Caller, attempt Attempt, challenge Challenge, prior PriorState) (Outcome, error) {
	if err := validate(caller, attempt, challenge, prior); err != nil {
		return Outcome{}, err
	}

	isCompleted := attempt.TestsPassed == attempt.TestsTotal
	status := StatusInProgress
	if isCompleted {
		status = StatusCompleted
	}
	isFirstCompletion := prior.Status != StatusCompleted
	awarding := isCompleted && isFirstCompletion

	breakdown := p.calc.Calculate(Input{
		BasePoints:         challenge.BasePoints,
		TestsPassed:        attempt.TestsPassed,
		TestsTotal:         attempt.TestsTotal,
		IsPerfectSolve:     attempt.IsPerfectSolve,
		HintsUsed:          attempt.HintsUsed,
		TimeElapsedSeconds: attempt.TimeElapsedSeconds,
		TimeLimitSeconds:   challenge.TimeLimitSeconds,
	})

	out := Outcome{
		Status:            status,
		Rewards:           breakdown,
		IsFirstCompletion: isFirstCompletion,
		Obligations:       Obligations{UpsertSubmission: true},
	}
	if !awarding {
		return out, nil
	}
	out.AppliedXP = breakdown.TotalXP
	out.AppliedCoins = breakdown.Coins
	if out.AppliedCoins > 0 {
		out.Obligations.CreditCoins = out.AppliedCoins
	}
	out.Obligations.IncrementSolved = true
	out.Obligations.Activity = &ActivityEntry{
		UserID:             caller.UserID,
		Type:               ActivityChallengeCompleted,
		ChallengeID:        challenge.ID,
		IsPerfectSolve:     attempt.IsPerfectSolve,
		TimeElapsedSeconds: attempt.TimeElapsedSeconds,
		HintsUsed:          attempt.HintsUsed,
		XPEarned:           out.AppliedXP,
		CoinsEarned:        out.AppliedCoins,
	}
	return out, nil
}

func validate(caller Caller, a Attempt, c Challenge, prior PriorState) error {
	switch {
	case strings.TrimSpace(caller.UserID) == "":
		return invalid("callerId", "is required")
	case a.TestsPassed < 0:
		return invalid("testsPassed", "must be >= 0")
	case a.TestsTotal < 0:
		return invalid("testsTotal", "must be >= 0")
	case a.TestsTotal > MaxTestCount:
		return invalid("testsTotal", fmt.Sprintf("must be <= %d", MaxTestCount))
	case a.TestsPassed > a.TestsTotal:
		return invalid("testsPassed", "must not exceed testsTotal")
	case math.IsNaN(a.TimeElapsedSeconds) || math.IsInf(a.TimeElapsedSeconds, 0):
		return invalid("timeElapsed", "must be a finite number")
	case a.TimeElapsedSeconds < 0:
		return invalid("timeElapsed", "must be >= 0")
	case a.HintsUsed < 0:
		return invalid("hintsUsed", "must be >= 0")
	case a.HintsUsed > MaxTestCount:
		return invalid("hintsUsed", fmt.Sprintf("must be <= %d", MaxTestCount))
	case c.BasePoints < 0:
		return invalid("basePoints", "must be >= 0")
	case a.ChallengeID != "" && a.ChallengeID != c.ID:
		return invalid("challengeId", "does not match the scored challenge")
	case prior.Status != "" && !prior.Status.Valid():
		return invalid("priorStatus", "is not a known status")
	}
	return nil
}
