package models

import "github.com/is-project-4th-year/CodeMaster-sub000/rewards"

// ProgressionView is the progression panel shown on the profile and
// returned after each submission.
type ProgressionView struct {
	Level             int                        `json:"level"`
	CurrentXP         int                        `json:"currentXp"`
	TotalPoints       int                        `json:"totalPoints"`
	Coins             int                        `json:"coins"`
	TotalSolved       int                        `json:"totalSolved"`
	CurrentStreak     int                        `json:"currentStreak"`
	LevelXPGained     int                        `json:"levelXpGained"`
	Multiplier        float64                    `json:"multiplier"`
	StackingPolicy    rewards.StackingPolicy     `json:"stackingPolicy"`
	ActiveMultipliers []ActiveMultiplier         `json:"activeMultipliers"`
	MysteryBox        rewards.MysteryBoxProgress `json:"mysteryBox"`
	// Rank is the leaderboard position; only set on the profile view.
	Rank int `json:"rank,omitempty"`
}

// Snapshot converts a profile and its multipliers into accumulator input.
func Snapshot(user User, ms []ActiveMultiplier) rewards.Snapshot {
	return rewards.Snapshot{
		Level:         user.Level,
		CurrentXP:     user.CurrentXP,
		TotalPoints:   user.TotalPoints,
		Coins:         user.Coins,
		TotalSolved:   user.TotalSolved,
		CurrentStreak: user.CurrentStreak,
		Multipliers:   ToRewards(ms),
	}
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	TotalPoints int    `json:"totalPoints"`
	TotalSolved int    `json:"totalSolved"`
	Level       int    `json:"level"`
}

type CoinGrantRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

type ChallengeStat struct {
	ChallengeID string `json:"challengeId"`
	Title       string `json:"title"`
	SolvedCount int    `json:"solvedCount"`
}

type AnalyticsSummary struct {
	TotalUsers        int             `json:"totalUsers"`
	ActiveChallenges  int             `json:"activeChallenges"`
	TotalSubmissions  int             `json:"totalSubmissions"`
	TotalCompletions  int             `json:"totalCompletions"`
	TotalXPIssued     int             `json:"totalXpIssued"`
	TotalCoinsIssued  int             `json:"totalCoinsIssued"`
	ActiveMultipliers int             `json:"activeMultipliers"`
	TopChallenges     []ChallengeStat `json:"topChallenges"`
}
