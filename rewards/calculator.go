// Package rewards computes challenge rewards and progression deltas.
//
// Everything in this package is pure: no I/O, no clock reads, no shared
// mutable state. Callers load the snapshots (challenge, prior submission
// state, active multipliers) and persist the returned obligations.
package rewards

import "math/bits"

// BonusType identifies one independently triggered bonus.
type BonusType string

const (
	BonusPerfect BonusType = "perfect"
	BonusNoHints BonusType = "no_hints"
	BonusSpeed   BonusType = "speed"
)

// Bonus is a single bonus line item. XP and Coins are always set, zero
// when a rule awards nothing in that currency.
type Bonus struct {
	Type  BonusType `json:"type"`
	Name  string    `json:"name"`
	XP    int       `json:"xp"`
	Coins int       `json:"coins"`
}

// Breakdown is the structured result of a reward calculation.
type Breakdown struct {
	BaseXP  int     `json:"baseXP"`
	BonusXP int     `json:"bonusXP"`
	TotalXP int     `json:"totalXP"`
	Coins   int     `json:"coins"`
	Bonuses []Bonus `json:"bonuses"`
}

// Input carries the performance signals of one attempt.
type Input struct {
	BasePoints         int
	TestsPassed        int
	TestsTotal         int
	IsPerfectSolve     bool
	HintsUsed          int
	TimeElapsedSeconds float64
	// TimeLimitSeconds is nil when the challenge has no time limit.
	TimeLimitSeconds *float64
}

// Calculator applies a fixed set of Rules.
type Calculator struct {
	rules Rules
}

func NewCalculator(rules Rules) *Calculator {
	return &Calculator{rules: rules}
}

// Calculate returns the reward breakdown for in.
//
// Bonuses are evaluated independently in the order perfect, no_hints,
// speed. Partial credit scales the running XP and coin totals after all
// bonuses are added, so bonuses shrink with the completion ratio too.
// Scaling floors each value. TestsTotal == 0 counts as fully passed.
func (c *Calculator) Calculate(in Input) Breakdown {
	xp := in.BasePoints
	coins := in.BasePoints / 2
	bonuses := []Bonus{}

	add := func(t BonusType, rule BonusRule) {
		xp += rule.XP
		coins += rule.Coins
		bonuses = append(bonuses, Bonus{Type: t, Name: rule.Name, XP: rule.XP, Coins: rule.Coins})
	}

	if in.IsPerfectSolve {
		add(BonusPerfect, c.rules.Perfect)
	}
	if in.HintsUsed == 0 {
		add(BonusNoHints, c.rules.NoHints)
	}
	if in.TimeLimitSeconds != nil && in.TimeElapsedSeconds < *in.TimeLimitSeconds*c.rules.SpeedFraction {
		add(BonusSpeed, c.rules.Speed)
	}

	if in.TestsTotal > 0 && in.TestsPassed < in.TestsTotal {
		xp = scale(xp, in.TestsPassed, in.TestsTotal)
		coins = scale(coins, in.TestsPassed, in.TestsTotal)
	}

	return Breakdown{
		BaseXP:  in.BasePoints,
		BonusXP: xp - in.BasePoints,
		TotalXP: max(0, xp),
		Coins:   max(0, coins),
		Bonuses: bonuses,
	}
}

// scale returns floor(v * num / den) for 0 <= num <= den. The product is
// taken at 128 bits so large test counts cannot wrap.
func scale(v, num, den int) int {
	if v <= 0 || num <= 0 || den <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(v), uint64(num))
	q, _ := bits.Div64(hi, lo, uint64(den))
	return int(q)
}

// CompletionRatio reports testsPassed/testsTotal, or 1 when the attempt
// passed every test or the challenge has no tests.
func CompletionRatio(testsPassed, testsTotal int) float64 {
	if testsTotal <= 0 || testsPassed >= testsTotal {
		return 1
	}
	return float64(testsPassed) / float64(testsTotal)
}
