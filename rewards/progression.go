package rewards

import (
	"fmt"
	"math"
	"time"
)

// StackingPolicy decides how several active multipliers combine.
type StackingPolicy string

const (
	// StackMultiplicative multiplies every active value together.
	StackMultiplicative StackingPolicy = "multiplicative"
	// StackMax applies only the largest active value.
	StackMax StackingPolicy = "max"
)

// DefaultStackingPolicy is the policy used when nothing else is configured.
// Changing it is a product decision.
const DefaultStackingPolicy = StackMultiplicative

// ParseStackingPolicy maps a configuration string onto a policy. The empty
// string selects DefaultStackingPolicy.
func ParseStackingPolicy(s string) (StackingPolicy, error) {
	switch StackingPolicy(s) {
	case "":
		return DefaultStackingPolicy, nil
	case StackMultiplicative, StackMax:
		return StackingPolicy(s), nil
	}
	return "", fmt.Errorf("unknown multiplier stacking policy %q", s)
}

// Multiplier is one active XP multiplier record.
type Multiplier struct {
	Type      string
	Value     float64
	ExpiresAt time.Time
}

// Active reports whether m still applies at now.
func (m Multiplier) Active(now time.Time) bool {
	return m.ExpiresAt.After(now)
}

// EffectiveMultiplier folds the usable entries of active into a single
// factor. Expired, non-positive and non-finite values are skipped. With
// nothing usable the factor is 1.
func EffectiveMultiplier(active []Multiplier, now time.Time, policy StackingPolicy) float64 {
	eff := 1.0
	seen := false
	for _, m := range active {
		if !m.Active(now) || m.Value <= 0 || math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
			continue
		}
		switch policy {
		case StackMax:
			if !seen || m.Value > eff {
				eff = m.Value
			}
		default:
			eff *= m.Value
		}
		seen = true
	}
	return eff
}

// Snapshot is the profile state the host read for this user.
type Snapshot struct {
	Level         int
	CurrentXP     int
	TotalPoints   int
	Coins         int
	TotalSolved   int
	CurrentStreak int
	Multipliers   []Multiplier
}

// MysteryBoxProgress tracks progress towards the next mystery box.
type MysteryBoxProgress struct {
	Current     int  `json:"current"`
	Target      int  `json:"target"`
	BoxesEarned int  `json:"boxesEarned"`
	JustEarned  bool `json:"justEarned"`
}

// Progression is the derived, history-dependent state for one user.
type Progression struct {
	// XPDelta is the applied XP the store adds to total_points.
	XPDelta int
	// LevelXPDelta is XPDelta scaled by Multiplier; it feeds level progress.
	LevelXPDelta int
	Multiplier   float64
	MysteryBox   MysteryBoxProgress
	// CurrentStreak is passed through untouched.
	CurrentStreak int
}

// Accumulator derives progression deltas from snapshots and outcomes.
type Accumulator struct {
	rules  Rules
	policy StackingPolicy
}

func NewAccumulator(rules Rules, policy StackingPolicy) *Accumulator {
	if policy == "" {
		policy = DefaultStackingPolicy
	}
	return &Accumulator{rules: rules, policy: policy}
}

// Policy returns the stacking policy in use.
func (a *Accumulator) Policy() StackingPolicy {
	return a.policy
}

// Accumulate folds one processed submission into the snapshot. The level
// thresholds themselves are owned by the store; only deltas come out of
// here.
func (a *Accumulator) Accumulate(snap Snapshot, out Outcome, now time.Time) Progression {
	mult := EffectiveMultiplier(snap.Multipliers, now, a.policy)
	solved := 0
	if out.Obligations.IncrementSolved {
		solved = 1
	}
	return Progression{
		XPDelta:       out.AppliedXP,
		LevelXPDelta:  scaleXP(out.AppliedXP, mult),
		Multiplier:    mult,
		MysteryBox:    a.mysteryBox(snap.TotalSolved, solved),
		CurrentStreak: snap.CurrentStreak,
	}
}

// Summary reports the progression of a snapshot with no submission applied.
func (a *Accumulator) Summary(snap Snapshot, now time.Time) Progression {
	return a.Accumulate(snap, Outcome{}, now)
}

func (a *Accumulator) mysteryBox(totalSolved, solvedDelta int) MysteryBoxProgress {
	every := a.rules.MysteryBoxEvery
	if every <= 0 {
		every = MysteryBoxEvery
	}
	total := max(0, totalSolved) + solvedDelta
	return MysteryBoxProgress{
		Current:     total % every,
		Target:      every,
		BoxesEarned: total / every,
		JustEarned:  solvedDelta > 0 && total > 0 && total%every == 0,
	}
}

func scaleXP(xp int, mult float64) int {
	if xp <= 0 {
		return 0
	}
	return int(math.Floor(float64(xp) * mult))
}
