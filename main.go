package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/is-project-4th-year/CodeMaster-sub000/api"
	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/migrations"
	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
	"github.com/is-project-4th-year/CodeMaster-sub000/scheduler"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := api.Config{
		HTTPPort:          getEnv("HTTP_PORT", ":8080"),
		DatabaseType:      getEnv("DB_TYPE", "postgres"),
		DatabaseHost:      getEnv("DB_HOST", "localhost"),
		DatabaseUser:      getEnv("DB_USER", "postgres"),
		DatabasePassword:  getEnv("DB_PASSWORD", ""),
		DatabaseName:      getEnv("DB_NAME", "codemaster"),
		SSLMode:           getEnv("SSL_MODE", "disable"),
		JwtSecret:         getEnv("JWT_SECRET", "your-secret-key-change-this"),
		JwtAccessDuration: getEnvInt("JWT_ACCESS_DURATION", 86400), // 24 hours
		JwtDomain:         getEnv("JWT_DOMAIN", ""),
		AllowedOrigins:    getEnvSlice("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		DevMode:           getEnvBool("DEV_MODE", true),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		RewardRulesFile:   getEnv("REWARD_RULES_FILE", ""),
		StackingPolicy:    getEnv("REWARD_STACKING_POLICY", string(rewards.DefaultStackingPolicy)),
		SweepInterval:     getEnvDuration("MULTIPLIER_SWEEP_INTERVAL", scheduler.DefaultInterval),
	}

	logger.Init(config.LogLevel, config.DevMode)

	rules, err := rewards.LoadRules(config.RewardRulesFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", config.RewardRulesFile).Msg("Failed to load reward rules")
	}
	policy, err := rewards.ParseStackingPolicy(config.StackingPolicy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid stacking policy")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	connStr := datastore.BuildDBConnStr(
		config.DatabaseHost,
		config.DatabasePassword,
		config.DatabaseUser,
		config.DatabaseName,
		config.SSLMode,
	)
	dbConn, err := datastore.NewDB(ctx, config.DatabaseType, connStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Running database migrations")
	if err := migrations.RunMigrations(ctx, dbConn); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	cancel()

	userRepo, _ := datastore.NewUserDatabase(dbConn)
	challengeRepo, _ := datastore.NewChallengeDatabase(dbConn)
	submissionRepo, _ := datastore.NewSubmissionDatabase(dbConn)
	activityRepo, _ := datastore.NewActivityDatabase(dbConn)
	multiplierRepo, _ := datastore.NewMultiplierDatabase(dbConn)
	leaderboardRepo, _ := datastore.NewLeaderboardDatabase(dbConn)
	shopRepo, _ := datastore.NewShopDatabase(dbConn)
	analyticsRepo, _ := datastore.NewAnalyticsDatabase(dbConn)

	app := &api.Application{
		Config:          config,
		UserRepo:        userRepo,
		ChallengeRepo:   challengeRepo,
		SubmissionRepo:  submissionRepo,
		ActivityRepo:    activityRepo,
		MultiplierRepo:  multiplierRepo,
		LeaderboardRepo: leaderboardRepo,
		ShopRepo:        shopRepo,
		AnalyticsRepo:   analyticsRepo,
		Feed:            api.NewFeed(),
	}
	if err := app.UseRules(rules, policy); err != nil {
		log.Fatal().Err(err).Msg("Invalid reward rules")
	}
	log.Info().
		Str("stacking_policy", string(policy)).
		Int("mystery_box_every", rules.MysteryBoxEvery).
		Msg("Reward engine ready")

	// Purge expired multipliers in the background
	sweeper := scheduler.NewScheduler(multiplierRepo, config.SweepInterval)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	if err := app.Serve(); err != nil {
		log.Error().Err(err).Msg("Server error")
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getEnvSlice(key, defaultValue string) []string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
