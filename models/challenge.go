package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinRank = 1
	MaxRank = 8
)

// Challenge is a coding exercise. Solutions are never executed here; the
// test counts arrive with the submission.
type Challenge struct {
	ChallengeID      string    `json:"challengeId" db:"challenge_id"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	Category         string    `json:"category" db:"category"`
	Rank             int       `json:"rank" db:"rank"`
	BasePoints       int       `json:"basePoints" db:"base_points"`
	TimeLimitSeconds *float64  `json:"timeLimitSeconds,omitempty" db:"time_limit_seconds"`
	StarterCode      string    `json:"starterCode" db:"starter_code"`
	SolvedCount      int       `json:"solvedCount" db:"solved_count"`
	IsActive         bool      `json:"isActive" db:"is_active"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

type ChallengeRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Category         string   `json:"category"`
	Rank             int      `json:"rank"`
	BasePoints       int      `json:"basePoints"`
	TimeLimitSeconds *float64 `json:"timeLimitSeconds,omitempty"`
	StarterCode      string   `json:"starterCode"`
}

func (req ChallengeRequest) Validate() error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return fmt.Errorf("title is required")
	case req.Rank < MinRank || req.Rank > MaxRank:
		return fmt.Errorf("rank must be between %d and %d", MinRank, MaxRank)
	case req.BasePoints < 0:
		return fmt.Errorf("basePoints must be >= 0")
	case req.TimeLimitSeconds != nil && *req.TimeLimitSeconds <= 0:
		return fmt.Errorf("timeLimitSeconds must be positive when set")
	}
	return nil
}

func NewChallenge(req ChallengeRequest) Challenge {
	now := time.Now()
	return Challenge{
		ChallengeID:      uuid.New().String(),
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		Rank:             req.Rank,
		BasePoints:       req.BasePoints,
		TimeLimitSeconds: req.TimeLimitSeconds,
		StarterCode:      req.StarterCode,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Apply copies the editable fields of req onto c.
func (c *Challenge) Apply(req ChallengeRequest) {
	c.Title = req.Title
	c.Description = req.Description
	c.Category = req.Category
	c.Rank = req.Rank
	c.BasePoints = req.BasePoints
	c.TimeLimitSeconds = req.TimeLimitSeconds
	c.StarterCode = req.StarterCode
	c.UpdatedAt = time.Now()
}
