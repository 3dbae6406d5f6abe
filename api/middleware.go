package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5/request"
	"github.com/google/uuid"

	"github.com/is-project-4th-year/CodeMaster-sub000/datastore"
	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
	"github.com/is-project-4th-year/CodeMaster-sub000/models"
	"github.com/is-project-4th-year/CodeMaster-sub000/rewards"
)

type ctxKey int

const callerCtxKey ctxKey = iota

const requestIDHeader = "X-Request-ID"

var errNoToken = errors.New("no access token in request")

// requestLogging tags the request with an id and logs one line per request.
func (app *Application) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.FromContext(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// accessToken reads the JWT from the access cookie, falling back to an
// Authorization: Bearer header.
func accessToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(models.JWT.ACCESS_COOKIE_NAME); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	token, err := request.BearerExtractor{}.ExtractToken(r)
	if errors.Is(err, request.ErrNoTokenInRequest) {
		return "", errNoToken
	}
	return token, err
}

// getUserFromJWT resolves the access token to a stored user.
func (app *Application) getUserFromJWT(r *http.Request) (models.User, error) {
	token, err := accessToken(r)
	if err != nil {
		return models.User{}, err
	}
	claims, err := models.ValidateJWTToken(token, app.Config.JwtSecret)
	if err != nil {
		return models.User{}, err
	}
	return app.UserRepo.Get(r.Context(), claims.UserID)
}

// authenticate requires a valid token and stores the resolved caller in
// the request context.
func (app *Application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := app.getUserFromJWT(r)
		if err != nil {
			if !errors.Is(err, errNoToken) && !datastore.IsNoRows(err) && !isTokenError(err) {
				app.internalServerError(w, r, err)
				return
			}
			app.invalidAuthorization(w, r, err)
			return
		}

		caller := rewards.Caller{UserID: user.UserID, IsAdmin: user.IsAdmin()}
		ctx := context.WithValue(r.Context(), callerCtxKey, caller)
		ctx = logger.WithUserID(ctx, user.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify caller has Admin permissions
func (app *Application) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(r.Context())
		if !ok {
			app.invalidAuthorization(w, r, errNoToken)
			return
		}
		if !caller.IsAdmin {
			app.forbidden(w, r, ErrInvalidPrivilege)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerFrom(ctx context.Context) (rewards.Caller, bool) {
	caller, ok := ctx.Value(callerCtxKey).(rewards.Caller)
	return caller, ok
}

// mustCaller is for handlers mounted behind authenticate.
func mustCaller(r *http.Request) rewards.Caller {
	caller, _ := callerFrom(r.Context())
	return caller
}

func isTokenError(err error) bool {
	return errors.Is(err, models.ErrInvalidToken)
}
