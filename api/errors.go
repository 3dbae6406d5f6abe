package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"

	"github.com/is-project-4th-year/CodeMaster-sub000/logger"
)

// Helper function to get caller information
func getCallerInfo() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "[unknown]"
	}
	return fmt.Sprintf("[%s:%d]", filepath.Base(file), line)
}

type HandlerError struct {
	ErrorName        string `json:"errorName"`
	Description      string `json:"description"`
	PossibleSolution string `json:"possibleSolution"`
	CallerInfo       string `json:"callerInfo"`
}

var (
	ErrInvalidPrivilege = errors.New("invalid authentication privileges")
	ErrUsernameTaken    = errors.New("username already taken")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (app *Application) invalidCredentials(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Debug().Err(err).Msg("Login rejected")
	writeJSON(w, http.StatusUnauthorized, HandlerError{
		ErrorName:        "Error Authorizing User",
		Description:      "invalid email or password",
		PossibleSolution: "Retry with proper credentials",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) invalidAuthorization(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Debug().Err(err).Msg("Authentication failed")
	writeJSON(w, http.StatusUnauthorized, HandlerError{
		ErrorName:        "Error Authenticating for Endpoint",
		Description:      "Invalid Authentication",
		PossibleSolution: "Check your headers and ensure you're submitting a valid token",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) forbidden(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusForbidden, HandlerError{
		ErrorName:        "Forbidden",
		Description:      err.Error(),
		PossibleSolution: "Use an account with the required privileges",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, HandlerError{
		ErrorName:        "Method Not Allowed",
		Description:      r.Method + " is not supported for " + r.URL.Path,
		PossibleSolution: "Check the API documentation for the correct method",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) routeNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, HandlerError{
		ErrorName:        "Not Found",
		Description:      "no route for " + r.URL.Path,
		PossibleSolution: "Check the request path",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) notFound(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusNotFound, HandlerError{
		ErrorName:        "Not Found",
		Description:      err.Error(),
		PossibleSolution: "Check the identifier in the request path",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) badJSONRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, HandlerError{
		ErrorName:        "Error Parsing JSON",
		Description:      err.Error(),
		PossibleSolution: "Double check your JSON formatting",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	caller := getCallerInfo()
	logger.FromContext(r.Context()).Error().Err(err).Str("caller", caller).Msg("Internal server error")
	writeJSON(w, http.StatusInternalServerError, HandlerError{
		ErrorName:        "Internal Server Error",
		Description:      err.Error(),
		PossibleSolution: "Internal Server Error requiring support",
		CallerInfo:       caller,
	})
}

func (app *Application) userAlreadyExists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusConflict, HandlerError{
		ErrorName:        "User Exists",
		Description:      "There is already a user with this email address",
		PossibleSolution: "Advise user to login with their credentials",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) conflict(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusConflict, HandlerError{
		ErrorName:        "Conflict",
		Description:      err.Error(),
		PossibleSolution: "Reload the resource and retry",
		CallerInfo:       getCallerInfo(),
	})
}

func (app *Application) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeJSON(w, http.StatusBadRequest, HandlerError{
		ErrorName:        "Bad Request",
		Description:      err.Error(),
		PossibleSolution: "Check your request parameters",
		CallerInfo:       getCallerInfo(),
	})
}
