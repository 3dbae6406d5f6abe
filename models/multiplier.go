package models

import (
	"fmt"
	"math"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

const (
	MultiplierBoost = "boost"
	MultiplierEvent = "event"
)

// ActiveMultiplier is an XP multiplier record with a hard expiry.
type ActiveMultiplier struct {
	MultiplierID int64     `json:"multiplierId" db:"multiplier_id"`
	UserID       string    `json:"userId" db:"user_id"`
	Type         string    `json:"type" db:"multiplier_type"`
	Value        float64   `json:"value" db:"value"`
	Source       string    `json:"source" db:"source"`
	ExpiresAt    time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type MultiplierGrantRequest struct {
	Type            string  `json:"type"`
	Value           float64 `json:"value"`
	DurationMinutes int     `json:"durationMinutes"`
	Reason          string  `json:"reason"`
}

func (req MultiplierGrantRequest) Validate() error {
	if req.Type != MultiplierBoost && req.Type != MultiplierEvent {
		return fmt.Errorf("type must be %q or %q", MultiplierBoost, MultiplierEvent)
	}
	if req.Value <= 0 || math.IsNaN(req.Value) || math.IsInf(req.Value, 0) {
		return fmt.Errorf("value must be a positive number")
	}
	if req.DurationMinutes <= 0 {
		return fmt.Errorf("durationMinutes must be positive")
	}
	return nil
}

// ToRewards converts store rows into the values the accumulator folds.
func ToRewards(ms []ActiveMultiplier) []rewards.Multiplier {
	out := make([]rewards.Multiplier, 0, len(ms))
	for _, m := range ms {
		out = append(out, rewards.Multiplier{Type: m.Type, Value: m.Value, ExpiresAt: m.ExpiresAt})
	}
	return out
}
