package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func noRows() error {
	return datastore.NoRowsError{NoRows: true, Err: sql.ErrNoRows}
}

// memStore backs every fake repository. A single mutex stands in for the
// transactional guarantees of the real store.
type memStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	challenges  map[string]models.Challenge
	submissions map[string]models.Submission
	activities  []models.Activity
	multipliers []models.ActiveMultiplier
	items       map[string]models.ShopItem
	inventory   map[int]models.UserInventoryItem
	purchases   []models.PurchaseRecord
	nextID      int64
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[string]models.User{},
		challenges:  map[string]models.Challenge{},
		submissions: map[string]models.Submission{},
		items:       map[string]models.ShopItem{},
		inventory:   map[int]models.UserInventoryItem{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) logActivity(a models.Activity) models.Activity {
	a.ActivityID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = testNow
	}
	s.activities = append(s.activities, a)
	return a
}

func (s *memStore) activeMultipliers(userID string, now time.Time) []models.ActiveMultiplier {
	out := []models.ActiveMultiplier{}
	for _, m := range s.multipliers {
		if m.UserID == userID && m.ExpiresAt.After(now) {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) activitiesOf(userID, activityType string) []models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Activity
	for _, a := range s.activities {
		if a.UserID == userID && a.Type == activityType {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) user(id string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// ============= users =============

type fakeUsers struct{ *memStore }

func (f fakeUsers) Create(_ context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return models.User{}, fmt.Errorf("inserting user: %w", datastore.ErrDuplicate)
		}
	}
	f.users[u.UserID] = u
	return u, nil
}

func (f fakeUsers) Get(_ context.Context, userID string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, noRows()
	}
	return u, nil
}

func (f fakeUsers) find(match func(models.User) bool) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, noRows()
}

func (f fakeUsers) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Email == email })
}

func (f fakeUsers) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	return f.find(func(u models.User) bool { return u.Username == username })
}

func (f fakeUsers) Update(_ context.Context, u models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.users {
		if id != u.UserID && (existing.Email == u.Email || existing.Username == u.Username) {
			return models.User{}, fmt.Errorf("updating user: %w", datastore.ErrDuplicate)
		}
	}
	u.UpdatedAt = testNow
	f.users[u.UserID] = u
	return u, nil
}

func (f fakeUsers) ValidateAndGetUser(ctx context.Context, creds models.Credentials) (models.User, error) {
	u, err := f.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		return models.User{}, err
	}
	if !u.CheckPassword(creds.Password) {
		return models.User{}, fmt.Errorf("error in compare of hash")
	}
	return u, nil
}

func (f fakeUsers) GetAllUsers(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.User{}
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f fakeUsers) GrantCoins(_ context.Context, userID string, amount int, entry models.Activity) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("granting coins: %w", noRows())
	}
	u.Coins += amount
	f.users[userID] = u
	f.logActivity(entry)
	return u, nil
}

// ============= challenges =============

type fakeChallenges struct{ *memStore }

func (f fakeChallenges) Create(_ context.Context, c models.Challenge) (models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges[c.ChallengeID] = c
	return c, nil
}

func (f fakeChallenges) Get(_ context.Context, id string) (models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return models.Challenge{}, noRows()
	}
	return c, nil
}

func (f fakeChallenges) ListActive(_ context.Context) ([]models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Challenge{}
	for _, c := range f.challenges {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].BasePoints < out[j].BasePoints
	})
	return out, nil
}

func (f fakeChallenges) Update(_ context.Context, c models.Challenge) (models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[c.ChallengeID]; !ok {
		return models.Challenge{}, noRows()
	}
	f.challenges[c.ChallengeID] = c
	return c, nil
}

func (f fakeChallenges) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return noRows()
	}
	c.IsActive = false
	f.challenges[id] = c
	return nil
}

// ============= submissions =============

type fakeSubmissions struct{ *memStore }

func pairKey(userID, challengeID string) string {
	return userID + "|" + challengeID
}

func (f fakeSubmissions) Settle(_ context.Context, userID, challengeID string, fn models.SettleFunc) (models.Settlement, models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.users[userID]
	if !ok {
		return models.Settlement{}, models.User{}, fmt.Errorf("settling submission: %w", noRows())
	}
	prior := rewards.StatusNone
	existing, exists := f.submissions[pairKey(userID, challengeID)]
	if exists {
		prior = existing.Status
	}

	s, err := fn(models.SettleState{
		Prior:       prior,
		Profile:     profile,
		Multipliers: f.activeMultipliers(userID, testNow),
	})
	if err != nil {
		return models.Settlement{}, models.User{}, fmt.Errorf("settling submission: %w", err)
	}

	sub := s.Submission
	if exists {
		sub.SubmissionID = existing.SubmissionID
		sub.Attempts = existing.Attempts + 1
		sub.XPEarned += existing.XPEarned
		sub.CoinsEarned += existing.CoinsEarned
		if existing.Status == rewards.StatusCompleted {
			sub.Status = rewards.StatusCompleted
			sub.CompletedAt = existing.CompletedAt
		}
	} else {
		sub.SubmissionID = fmt.Sprintf("sub-%d", f.id())
		sub.Attempts = 1
	}
	if sub.Status == rewards.StatusCompleted && sub.CompletedAt == nil {
		at := testNow
		sub.CompletedAt = &at
	}
	f.submissions[pairKey(userID, challengeID)] = sub
	s.Submission = sub

	profile.TotalPoints += s.PointsDelta
	profile.Coins += s.CoinsDelta
	profile.TotalSolved += s.SolvedDelta
	profile.CurrentXP += s.LevelXPDelta
	for profile.CurrentXP >= profile.Level*100 {
		profile.CurrentXP -= profile.Level * 100
		profile.Level++
	}
	if s.TouchStreak && profile.CurrentStreak == 0 {
		profile.CurrentStreak = 1
	}
	f.users[userID] = profile

	if s.SolvedDelta > 0 {
		c := f.challenges[challengeID]
		c.SolvedCount += s.SolvedDelta
		f.challenges[challengeID] = c
	}
	for i, a := range s.Activities {
		s.Activities[i] = f.logActivity(a)
	}
	return s, profile, nil
}

func (f fakeSubmissions) ListByUser(_ context.Context, userID string) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Submission{}
	for _, s := range f.submissions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSubmissions) get(userID, challengeID string) (models.Submission, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[pairKey(userID, challengeID)]
	return s, ok
}

// ============= activity =============

type fakeActivities struct{ *memStore }

func (f fakeActivities) ListByUser(_ context.Context, userID string, limit int) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = datastore.DefaultActivityLimit
	}
	out := []models.Activity{}
	for i := len(f.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if f.activities[i].UserID == userID {
			out = append(out, f.activities[i])
		}
	}
	return out, nil
}

// ============= multipliers =============

type fakeMultipliers struct{ *memStore }

func (f fakeMultipliers) ListActive(_ context.Context, userID string, now time.Time) ([]models.ActiveMultiplier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeMultipliers(userID, now), nil
}

func (f fakeMultipliers) Grant(_ context.Context, m models.ActiveMultiplier, entry models.Activity) (models.ActiveMultiplier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.MultiplierID = f.id()
	m.CreatedAt = testNow
	f.multipliers = append(f.multipliers, m)
	f.logActivity(entry)
	return m, nil
}

func (f fakeMultipliers) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.multipliers[:0]
	for _, m := range f.multipliers {
		if m.ExpiresAt.After(now) {
			kept = append(kept, m)
		}
	}
	n := int64(len(f.multipliers) - len(kept))
	f.multipliers = kept
	return n, nil
}

// ============= leaderboard =============

type fakeLeaderboard struct{ *memStore }

func (f fakeLeaderboard) ranked() []models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if a.TotalPoints != b.TotalPoints {
			return a.TotalPoints > b.TotalPoints
		}
		if a.TotalSolved != b.TotalSolved {
			return a.TotalSolved > b.TotalSolved
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return users
}

func (f fakeLeaderboard) Top(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = datastore.DefaultLeaderboardLimit
	}
	out := []models.LeaderboardEntry{}
	for i, u := range f.ranked() {
		if i == limit {
			break
		}
		out = append(out, models.LeaderboardEntry{
			Rank: i + 1, UserID: u.UserID, Username: u.Username,
			TotalPoints: u.TotalPoints, TotalSolved: u.TotalSolved, Level: u.Level,
		})
	}
	return out, nil
}

func (f fakeLeaderboard) UserRank(_ context.Context, userID string) (int, error) {
	for i, u := range f.ranked() {
		if u.UserID == userID {
			return i + 1, nil
		}
	}
	return 0, noRows()
}

// ============= shop =============

type fakeShop struct{ *memStore }

func (f fakeShop) CreateItem(_ context.Context, item models.ShopItem) (models.ShopItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ItemID] = item
	return item, nil
}

func (f fakeShop) GetItem(_ context.Context, itemID string) (models.ShopItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return models.ShopItem{}, noRows()
	}
	return item, nil
}

func (f fakeShop) GetActiveItems(_ context.Context, itemType string) ([]models.ShopItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.ShopItem{}
	for _, item := range f.items {
		if item.IsActive && (itemType == "" || item.ItemType == itemType) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoinCost < out[j].CoinCost })
	return out, nil
}

func (f fakeShop) DeactivateItem(_ context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return noRows()
	}
	item.IsActive = false
	f.items[itemID] = item
	return nil
}

func (f fakeShop) GetUserInventory(_ context.Context, userID string) ([]models.UserInventoryWithItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.UserInventoryWithItem{}
	for _, inv := range f.inventory {
		if inv.UserID == userID {
			out = append(out, models.UserInventoryWithItem{UserInventoryItem: inv, ShopItem: f.items[inv.ItemID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InventoryID < out[j].InventoryID })
	return out, nil
}

func (f fakeShop) Purchase(_ context.Context, userID, itemID string, quantity int) (models.PurchaseRecord, models.User, models.ShopItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return models.PurchaseRecord{}, models.User{}, models.ShopItem{}, noRows()
	}
	if !item.IsActive {
		return models.PurchaseRecord{}, models.User{}, models.ShopItem{}, datastore.ErrItemUnavailable
	}
	if item.StockQuantity != nil && *item.StockQuantity < quantity {
		return models.PurchaseRecord{}, models.User{}, models.ShopItem{}, datastore.ErrOutOfStock
	}
	user := f.users[userID]
	cost := item.CoinCost * quantity
	if user.Coins < cost {
		return models.PurchaseRecord{}, models.User{}, models.ShopItem{}, datastore.ErrInsufficientCoins
	}
	user.Coins -= cost
	f.users[userID] = user

	found := false
	for id, inv := range f.inventory {
		if inv.UserID == userID && inv.ItemID == itemID {
			inv.Quantity += quantity
			f.inventory[id] = inv
			found = true
		}
	}
	if !found {
		id := int(f.id())
		f.inventory[id] = models.UserInventoryItem{InventoryID: id, UserID: userID, ItemID: itemID, Quantity: quantity, AcquiredAt: testNow}
	}
	if item.StockQuantity != nil {
		left := *item.StockQuantity - quantity
		item.StockQuantity = &left
		f.items[itemID] = item
	}

	record := models.PurchaseRecord{
		PurchaseID: models.GeneratePurchaseID(), UserID: userID, ItemID: itemID,
		Quantity: quantity, CoinsSpent: cost, PurchasedAt: testNow,
	}
	f.purchases = append(f.purchases, record)
	return record, user, item, nil
}

func (f fakeShop) UseItem(_ context.Context, userID string, inventoryID int, now time.Time) (models.UserInventoryItem, *models.ActiveMultiplier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.inventory[inventoryID]
	if !ok {
		return models.UserInventoryItem{}, nil, noRows()
	}
	if inv.UserID != userID {
		return models.UserInventoryItem{}, nil, datastore.ErrNotOwner
	}
	if inv.Quantity <= 0 {
		return models.UserInventoryItem{}, nil, datastore.ErrOutOfStock
	}
	inv.Quantity--
	inv.UsedCount++
	f.inventory[inventoryID] = inv

	item := f.items[inv.ItemID]
	effect, hasEffect, err := item.Effect()
	if err != nil {
		return models.UserInventoryItem{}, nil, err
	}
	var applied *models.ActiveMultiplier
	if hasEffect && effect.EffectType == models.EffectXPMultiplier {
		m := models.ActiveMultiplier{
			MultiplierID: f.id(), UserID: userID, Type: models.MultiplierBoost, Value: effect.Value,
			Source: "item:" + item.ItemID, ExpiresAt: now.Add(time.Duration(effect.DurationMinutes) * time.Minute),
		}
		f.multipliers = append(f.multipliers, m)
		applied = &m
	}
	entry, _ := models.NewActivity(userID, models.ActivityItemUsed, nil, map[string]string{"itemId": item.ItemID})
	f.logActivity(entry)
	return inv, applied, nil
}

func (f fakeShop) GetUserPurchaseHistory(_ context.Context, userID string) ([]models.PurchaseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.PurchaseRecord{}
	for _, p := range f.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ============= analytics =============

type fakeAnalytics struct{ *memStore }

func (f fakeAnalytics) Summary(_ context.Context, now time.Time) (models.AnalyticsSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := models.AnalyticsSummary{TotalUsers: len(f.users), TopChallenges: []models.ChallengeStat{}}
	for _, c := range f.challenges {
		if c.IsActive {
			s.ActiveChallenges++
		}
	}
	for _, sub := range f.submissions {
		s.TotalSubmissions += sub.Attempts
		if sub.Status == rewards.StatusCompleted {
			s.TotalCompletions++
		}
		s.TotalXPIssued += sub.XPEarned
		s.TotalCoinsIssued += sub.CoinsEarned
	}
	for _, m := range f.multipliers {
		if m.ExpiresAt.After(now) {
			s.ActiveMultipliers++
		}
	}
	return s, nil
}

// ============= harness =============

type testEnv struct {
	app   *Application
	store *memStore
	h     http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	app := &Application{
		Config: Config{
			JwtSecret:         testSecret,
			JwtAccessDuration: 3600,
			AllowedOrigins:    []string{"https://codemaster.example"},
		},
		UserRepo:        fakeUsers{store},
		ChallengeRepo:   fakeChallenges{store},
		SubmissionRepo:  fakeSubmissions{store},
		ActivityRepo:    fakeActivities{store},
		MultiplierRepo:  fakeMultipliers{store},
		LeaderboardRepo: fakeLeaderboard{store},
		ShopRepo:        fakeShop{store},
		AnalyticsRepo:   fakeAnalytics{store},
		Feed:            NewFeed(),
		now:             func() time.Time { return testNow },
	}
	require.NoError(t, app.UseRules(rewards.DefaultRules(), rewards.DefaultStackingPolicy))
	t.Cleanup(app.Feed.Close)
	return &testEnv{app: app, store: store, h: app.BuildRoutes()}
}

func (e *testEnv) addUser(t *testing.T, username, kind string) models.User {
	t.Helper()
	u, err := models.NewUser(models.UserSignupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	u.Kind = kind
	e.store.mu.Lock()
	e.store.users[u.UserID] = u
	e.store.mu.Unlock()
	return u
}

func (e *testEnv) updateUser(u models.User) {
	e.store.mu.Lock()
	e.store.users[u.UserID] = u
	e.store.mu.Unlock()
}

func (e *testEnv) addChallenge(basePoints int, limit *float64) models.Challenge {
	c := models.NewChallenge(models.ChallengeRequest{
		Title: fmt.Sprintf("challenge %d", basePoints), Rank: 3, BasePoints: basePoints, TimeLimitSeconds: limit,
	})
	e.store.mu.Lock()
	e.store.challenges[c.ChallengeID] = c
	e.store.mu.Unlock()
	return c
}

func (e *testEnv) addMultiplier(userID string, value float64, expiresAt time.Time) {
	e.store.mu.Lock()
	e.store.multipliers = append(e.store.multipliers, models.ActiveMultiplier{
		MultiplierID: e.store.id(), UserID: userID, Type: models.MultiplierEvent, Value: value, ExpiresAt: expiresAt,
	})
	e.store.mu.Unlock()
}

func tokenFor(t *testing.T, u models.User) string {
	t.Helper()
	token, _, err := models.NewAccessToken(u, testSecret, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func limit(s float64) *float64 {
	return &s
}
