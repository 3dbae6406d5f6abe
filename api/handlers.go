package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
)

// GET /
func (app *Application) home(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "CodeMaster API")
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryLimit parses ?limit=. A missing value returns 0 so the store applies
// its default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return limit, nil
}

// POST /v1/auth/signup
func (app *Application) signup(w http.ResponseWriter, r *http.Request) {
	userSignup := models.UserSignupRequest{}
	if err := decodeJSON(r, &userSignup); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if err := userSignup.Validate(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	newUser, err := models.NewUser(userSignup)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if _, err := app.UserRepo.GetUserByEmail(r.Context(), newUser.Email); err == nil {
		app.userAlreadyExists(w, r)
		return
	} else if !datastore.IsNoRows(err) {
		app.internalServerError(w, r, err)
		return
	}

	if _, err := app.UserRepo.GetUserByUsername(r.Context(), newUser.Username); err == nil {
		app.conflict(w, r, ErrUsernameTaken)
		return
	} else if !datastore.IsNoRows(err) {
		app.internalServerError(w, r, err)
		return
	}

	storedUser, err := app.UserRepo.Create(r.Context(), newUser)
	if errors.Is(err, datastore.ErrDuplicate) {
		app.userAlreadyExists(w, r)
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info().Str("user_id", storedUser.UserID).Msg("User signed up")
	writeJSON(w, http.StatusCreated, storedUser)
}

// POST /v1/auth/login
func (app *Application) login(w http.ResponseWriter, r *http.Request) {
	creds := models.Credentials{}
	if err := decodeJSON(r, &creds); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))

	user, err := app.UserRepo.ValidateAndGetUser(r.Context(), creds)
	if err != nil {
		app.invalidCredentials(w, r, err)
		return
	}

	ttl := time.Duration(app.Config.JwtAccessDuration) * time.Second
	token, expiry, err := models.NewAccessToken(user, app.Config.JwtSecret, ttl, app.clock())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	sameSite := http.SameSiteStrictMode
	if app.Config.JwtDomain == "" {
		sameSite = http.SameSiteNoneMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     models.JWT.ACCESS_COOKIE_NAME,
		Value:    token,
		HttpOnly: true,
		Secure:   true,
		SameSite: sameSite,
		Path:     "/",
		Domain:   app.Config.JwtDomain,
		Expires:  expiry,
	})

	writeJSON(w, http.StatusOK, models.LoginResponse{
		AccessToken: token,
		Expiry:      expiry,
		User:        user,
	})
}

// GET /v1/users/me
func (app *Application) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := app.UserRepo.Get(r.Context(), mustCaller(r).UserID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// PUT /v1/users/me
func (app *Application) updateCurrentUser(w http.ResponseWriter, r *http.Request) {
	updateReq := models.UserUpdateRequest{}
	if err := decodeJSON(r, &updateReq); err != nil {
		app.badJSONRequest(w, r, err)
		return
	}
	if err := updateReq.Validate(); err != nil {
		app.badRequest(w, r, err)
		return
	}

	currentUser, err := app.UserRepo.Get(r.Context(), mustCaller(r).UserID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if updateReq.Username != "" {
		currentUser.Username = updateReq.Username
	}
	if updateReq.Email != "" {
		currentUser.Email = strings.ToLower(updateReq.Email)
	}

	updatedUser, err := app.UserRepo.Update(r.Context(), currentUser)
	if errors.Is(err, datastore.ErrDuplicate) {
		app.conflict(w, r, errors.New("username or email already in use"))
		return
	}
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updatedUser)
}

// GET /v1/admin/users
func (app *Application) getAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := app.UserRepo.GetAllUsers(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
