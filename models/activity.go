package models

import (
	"encoding/json"
	"time"
)

const (
	ActivityChallengeCompleted = "challenge_completed"
	ActivityMysteryBoxEarned   = "mystery_box_earned"
	ActivityItemUsed           = "item_used"
	ActivityCoinsGranted       = "coins_granted"
	ActivityMultiplierGranted  = "multiplier_granted"
)

type Activity struct {
	ActivityID  int64           `json:"activityId" db:"activity_id"`
	UserID      string          `json:"userId" db:"user_id"`
	Type        string          `json:"type" db:"activity_type"`
	ChallengeID *string         `json:"challengeId,omitempty" db:"challenge_id"`
	Metadata    json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

// CompletionMetadata is stored on challenge_completed entries.
type CompletionMetadata struct {
	IsPerfectSolve bool    `json:"isPerfectSolve"`
	TimeElapsed    float64 `json:"timeElapsed"`
	HintsUsed      int     `json:"hintsUsed"`
	XPEarned       int     `json:"xpEarned"`
	CoinsEarned    int     `json:"coinsEarned"`
}

// NewActivity builds an entry, encoding meta as its JSON metadata.
func NewActivity(userID, activityType string, challengeID *string, meta any) (Activity, error) {
	raw := json.RawMessage(`{}`)
	if meta != nil {
		b, err := json.Marshal(meta)
		if err != nil {
			return Activity{}, err
		}
		raw = b
	}
	return Activity{
		UserID:      userID,
		Type:        activityType,
		ChallengeID: challengeID,
		Metadata:    raw,
		CreatedAt:   time.Now(),
	}, nil
}
