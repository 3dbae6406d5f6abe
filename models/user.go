package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	Player = "Player"
	Admin  = "Admin"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserSignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserUpdateRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// User is a profile row. The reward totals are only ever changed by
// applying a Settlement or an admin grant.
type User struct {
	UserID         string     `json:"userId" db:"user_id"`
	Username       string     `json:"username" db:"username"`
	Email          string     `json:"email" db:"email"`
	HashedPassword string     `json:"-" db:"password_hash"`
	Kind           string     `json:"kind" db:"kind"`
	TotalPoints    int        `json:"totalPoints" db:"total_points"`
	Coins          int        `json:"coins" db:"coins"`
	TotalSolved    int        `json:"totalSolved" db:"total_solved"`
	CurrentStreak  int        `json:"currentStreak" db:"current_streak"`
	LastActiveDate *time.Time `json:"lastActiveDate,omitempty" db:"last_active_date"`
	CurrentXP      int        `json:"currentXp" db:"current_xp"`
	Level          int        `json:"level" db:"level"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// UserSummary is the public view of another user.
type UserSummary struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	TotalPoints int    `json:"totalPoints"`
	TotalSolved int    `json:"totalSolved"`
	Level       int    `json:"level"`
}

func (user User) IsAdmin() bool {
	return user.Kind == Admin
}

func (user User) Summary() UserSummary {
	return UserSummary{
		UserID:      user.UserID,
		Username:    user.Username,
		TotalPoints: user.TotalPoints,
		TotalSolved: user.TotalSolved,
		Level:       user.Level,
	}
}

func (user User) Serialize() ([]byte, error) {
	jsonUser, err := json.Marshal(user)
	if err != nil {
		return []byte{}, fmt.Errorf("error parsing json for User %w", err)
	}
	return jsonUser, nil
}

func (user User) GenerateKey() string {
	return uuid.New().String()
}

// Validate checks the signup fields before any hashing is done.
func (req UserSignupRequest) Validate() error {
	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		return fmt.Errorf("username, email and password are required")
	case strings.ContainsAny(req.Username, " \t\n"):
		return fmt.Errorf("username must not contain spaces")
	case !strings.Contains(req.Email, "@"):
		return fmt.Errorf("email is not valid")
	case len(req.Password) < 8:
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

func NewUser(userSignup UserSignupRequest) (User, error) {
	var user User
	userkey := user.GenerateKey()
	hashedPassword, hashErr := user.GenerateHash(userSignup.Password)
	if hashErr != nil {
		return User{}, fmt.Errorf("error hashing password %w", hashErr)
	}
	now := time.Now()
	user = User{
		UserID:         userkey,
		Username:       userSignup.Username,
		Email:          strings.ToLower(userSignup.Email),
		HashedPassword: hashedPassword,
		Kind:           Player,
		Level:          1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return user, nil
}

func (user User) GenerateHash(password string) (string, error) {
	hashedPassword, hashErr := bcrypt.GenerateFromPassword([]byte(password), 8)
	if hashErr != nil {
		return "", fmt.Errorf("error hashing password %w", hashErr)
	}

	return string(hashedPassword), nil
}

// CheckPassword reports whether password matches the stored hash.
func (user User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) == nil
}

// Validate allows partial updates; empty fields are left unchanged.
func (req UserUpdateRequest) Validate() error {
	switch {
	case req.Username == "" && req.Email == "":
		return fmt.Errorf("nothing to update")
	case strings.ContainsAny(req.Username, " \t\n"):
		return fmt.Errorf("username must not contain spaces")
	case req.Email != "" && !strings.Contains(req.Email, "@"):
		return fmt.Errorf("email is not valid")
	}
	return nil
}
