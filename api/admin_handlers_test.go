package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

func adminEnv(t *testing.T) (*testEnv, string) {
	t.Helper()
	env := newTestEnv(t)
	admin := env.addUser(t, "root", models.Admin)
	return env, tokenFor(t, admin)
}

func TestGrantCoins(t *testing.T) {
	env, token := adminEnv(t)
	user := env.addUser(t, "ada", models.Player)

	rec := env.do(t, http.MethodPost, "/v1/admin/users/"+user.UserID+"/coins", models.CoinGrantRequest{Amount: 75, Reason: "bug bounty"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 75, decode[models.User](t, rec).Coins)
	assert.Equal(t, 75, env.store.user(user.UserID).Coins)

	entries := env.store.activitiesOf(user.UserID, models.ActivityCoinsGranted)
	require.Len(t, entries, 1)
	var meta grantMetadata
	require.NoError(t, json.Unmarshal(entries[0].Metadata, &meta))
	assert.Equal(t, 75, meta.Amount)
	assert.Equal(t, "bug bounty", meta.Reason)
	assert.NotEmpty(t, meta.GrantedBy)

	rec = env.do(t, http.MethodPost, "/v1/admin/users/"+user.UserID+"/coins", models.CoinGrantRequest{Amount: 0}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/users/nobody/coins", models.CoinGrantRequest{Amount: 10}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGrantMultiplier(t *testing.T) {
	env, token := adminEnv(t)
	user := env.addUser(t, "ada", models.Player)

	rec := env.do(t, http.MethodPost, "/v1/admin/users/"+user.UserID+"/multipliers",
		models.MultiplierGrantRequest{Value: 1.5, DurationMinutes: 90, Reason: "weekend event"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	m := decode[models.ActiveMultiplier](t, rec)
	assert.Equal(t, models.MultiplierEvent, m.Type)
	assert.Equal(t, 1.5, m.Value)
	assert.Contains(t, m.Source, "admin:")
	assert.Equal(t, testNow.Add(90*time.Minute), m.ExpiresAt.UTC())
	assert.Len(t, env.store.activitiesOf(user.UserID, models.ActivityMultiplierGranted), 1)

	view := decode[models.ProgressionView](t, env.do(t, http.MethodGet, "/v1/users/me/progression", nil, tokenFor(t, user)))
	assert.Equal(t, 1.5, view.Multiplier)
}

func TestGrantMultiplierRejections(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		req    models.MultiplierGrantRequest
		status int
	}{
		{"zero value", "", models.MultiplierGrantRequest{Value: 0, DurationMinutes: 10}, http.StatusBadRequest},
		{"no duration", "", models.MultiplierGrantRequest{Value: 2}, http.StatusBadRequest},
		{"unknown type", "", models.MultiplierGrantRequest{Type: "mega", Value: 2, DurationMinutes: 10}, http.StatusBadRequest},
		{"unknown user", "nobody", models.MultiplierGrantRequest{Value: 2, DurationMinutes: 10}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, token := adminEnv(t)
			user := env.addUser(t, "ada", models.Player)
			target := tt.userID
			if target == "" {
				target = user.UserID
			}

			rec := env.do(t, http.MethodPost, "/v1/admin/users/"+target+"/multipliers", tt.req, token)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Empty(t, env.store.multipliers)
		})
	}
}

func TestChallengeAdministration(t *testing.T) {
	env, token := adminEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/admin/challenges", models.ChallengeRequest{Title: "FizzBuzz", Rank: 9, BasePoints: 50}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/challenges", models.ChallengeRequest{Title: "FizzBuzz", Rank: 8, BasePoints: 50}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Challenge](t, rec)
	assert.True(t, created.IsActive)

	rec = env.do(t, http.MethodPut, "/v1/admin/challenges/"+created.ChallengeID,
		models.ChallengeRequest{Title: "FizzBuzz II", Rank: 7, BasePoints: 80, TimeLimitSeconds: limit(60)}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Challenge](t, rec)
	assert.Equal(t, "FizzBuzz II", updated.Title)
	assert.Equal(t, 80, updated.BasePoints)
	require.NotNil(t, updated.TimeLimitSeconds)

	rec = env.do(t, http.MethodGet, "/v1/challenges/"+created.ChallengeID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/admin/challenges/"+created.ChallengeID, nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/challenges/"+created.ChallengeID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/challenges", nil, "")
	assert.Empty(t, decode[[]models.Challenge](t, rec))

	rec = env.do(t, http.MethodDelete, "/v1/admin/challenges/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPut, "/v1/admin/challenges/missing", models.ChallengeRequest{Title: "x", Rank: 1}, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShopItemAdministration(t *testing.T) {
	env, token := adminEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/admin/shop/items", models.CreateShopItemRequest{
		ItemType: models.ItemTypeBoost,
		Name:     "Broken boost",
		CoinCost: 10,
		Metadata: json.RawMessage(`{"effect_type":"xp_multiplier","value":0,"duration_minutes":10}`),
	}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/admin/shop/items", models.CreateShopItemRequest{
		ItemType: models.ItemTypeBoost,
		Name:     "Triple XP",
		CoinCost: 300,
		Rarity:   models.RarityEpic,
		Metadata: json.RawMessage(`{"effect_type":"xp_multiplier","value":3,"duration_minutes":15}`),
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decode[models.ShopItem](t, rec)
	effect, ok, err := item.Effect()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.0, effect.Value)

	rec = env.do(t, http.MethodDelete, "/v1/admin/shop/items/"+item.ItemID, nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/v1/shop/items/"+item.ItemID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/admin/shop/items/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAnalytics(t *testing.T) {
	env, token := adminEnv(t)
	user := env.addUser(t, "ada", models.Player)
	c := env.addChallenge(100, nil)
	env.addMultiplier(user.UserID, 2, testNow.Add(time.Hour))

	rec := env.do(t, http.MethodPost, submitPath(c), models.SubmitRequest{TestsPassed: 1, TestsTotal: 2, HintsUsed: 1}, tokenFor(t, user))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, submitPath(c), models.SubmitRequest{TestsPassed: 2, TestsTotal: 2, HintsUsed: 1}, tokenFor(t, user))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/admin/analytics", nil, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[models.AnalyticsSummary](t, rec)
	assert.Equal(t, 2, summary.TotalUsers)
	assert.Equal(t, 1, summary.ActiveChallenges)
	assert.Equal(t, 2, summary.TotalSubmissions)
	assert.Equal(t, 1, summary.TotalCompletions)
	assert.Equal(t, 100, summary.TotalXPIssued)
	assert.Equal(t, 1, summary.ActiveMultipliers)
}
