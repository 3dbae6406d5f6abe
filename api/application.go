package api

import (
	"fmt"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

type Config struct {
	HTTPPort          string
	DatabaseType      string
	DatabaseHost      string
	DatabaseUser      string
	DatabasePassword  string
	DatabaseName      string
	SSLMode           string
	JwtSecret         string
	JwtAccessDuration int // seconds
	JwtDomain         string
	AllowedOrigins    []string
	DevMode           bool
	LogLevel          string
	RewardRulesFile   string
	StackingPolicy    string
	SweepInterval     time.Duration
}

type Application struct {
	Config          Config
	UserRepo        datastore.UserRepository
	ChallengeRepo   datastore.ChallengeRepository
	SubmissionRepo  datastore.SubmissionRepository
	ActivityRepo    datastore.ActivityRepository
	MultiplierRepo  datastore.MultiplierRepository
	LeaderboardRepo datastore.LeaderboardRepository
	ShopRepo        datastore.ShopRepository
	AnalyticsRepo   datastore.AnalyticsRepository

	Processor   *rewards.Processor
	Accumulator *rewards.Accumulator
	Feed        *Feed

	now func() time.Time
}

// UseRules installs the reward engine built from rules and policy.
func (app *Application) UseRules(rules rewards.Rules, policy rewards.StackingPolicy) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("reward rules: %w", err)
	}
	app.Processor = rewards.NewProcessor(rewards.NewCalculator(rules))
	app.Accumulator = rewards.NewAccumulator(rules, policy)
	return nil
}

func (app *Application) clock() time.Time {
	if app.now != nil {
		return app.now()
	}
	return time.Now()
}
