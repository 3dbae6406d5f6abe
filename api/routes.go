package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

var localhostPattern = regexp.MustCompile(`^localhost:\d+$`)

func cleanOrigin(origin string) string {
	cleanedOrigin := origin
	for _, scheme := range []string{"https://", "http://", "wss://", "ws://"} {
		cleanedOrigin = strings.TrimPrefix(cleanedOrigin, scheme)
	}
	if idx := strings.Index(cleanedOrigin, "/"); idx != -1 {
		cleanedOrigin = cleanedOrigin[:idx]
	}
	return cleanedOrigin
}

func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	cleanedRequest := cleanOrigin(origin)

	// Allow localhost for development
	if localhostPattern.MatchString(cleanedRequest) {
		return true
	}

	for _, allowed := range allowedOrigins {
		if cleanOrigin(allowed) == cleanedRequest {
			return true
		}
	}

	return false
}

// originGuard rejects browser requests from origins outside the allow list.
// Requests carrying neither Origin nor Referer pass through.
func (app *Application) originGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = r.Header.Get("Referer")
		}
		if origin == "" || isAllowedOrigin(origin, app.Config.AllowedOrigins) {
			next.ServeHTTP(w, r)
			return
		}

		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("origin not allowed: " + cleanOrigin(origin)))
	})
}

func (app *Application) BuildRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(app.requestLogging)
	r.Use(middleware.Recoverer)
	r.Use(app.originGuard)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return isAllowedOrigin(origin, app.Config.AllowedOrigins)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(app.routeNotFound)
	r.MethodNotAllowed(app.methodNotAllowed)

	r.Get("/", app.home)

	r.Route("/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/signup", app.signup)
		r.Post("/auth/login", app.login)
		r.Get("/challenges", app.listChallenges)
		r.Get("/challenges/{challengeID}", app.getChallenge)
		r.Get("/leaderboard", app.getLeaderboard)
		r.Get("/shop/items", app.getShopItems)
		r.Get("/shop/items/{itemID}", app.getShopItem)
		r.Get("/feed", app.serveFeed)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(app.authenticate)

			r.Post("/challenges/{challengeID}/submit", app.submitSolution)

			r.Get("/users/me", app.getCurrentUser)
			r.Put("/users/me", app.updateCurrentUser)
			r.Get("/users/me/submissions", app.getMySubmissions)
			r.Get("/users/me/activity", app.getMyActivity)
			r.Get("/users/me/progression", app.getMyProgression)

			r.Post("/shop/purchase", app.purchaseItem)
			r.Get("/shop/purchases", app.getPurchaseHistory)
			r.Get("/inventory", app.getUserInventory)
			r.Post("/inventory/use", app.useItem)

			// Admin endpoints
			r.Route("/admin", func(r chi.Router) {
				r.Use(app.requireAdmin)

				r.Post("/challenges", app.createChallenge)
				r.Put("/challenges/{challengeID}", app.updateChallenge)
				r.Delete("/challenges/{challengeID}", app.deactivateChallenge)

				r.Post("/shop/items", app.createShopItem)
				r.Delete("/shop/items/{itemID}", app.deactivateShopItem)

				r.Get("/users", app.getAllUsers)
				r.Post("/users/{userID}/coins", app.grantCoins)
				r.Post("/users/{userID}/multipliers", app.grantMultiplier)
				r.Get("/analytics", app.getAnalytics)
			})
		})
	})

	return r
}
