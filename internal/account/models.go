// Package account holds user accounts: credentials, profile and the
// prediction defaults each user picks.
package account

import (
	"time"

	id "churnboard/pkg/domain"
)

// User is a registered account.
type User struct {
	ID                   id.UserID
	Email                string
	Name                 string
	Company              string
	PasswordHash         string
	DefaultModel         string
	DefaultThresholdType string
	LastLoginAt          *time.Time
	LastLoginDevice      string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Profile is the part of a user the account owner may read.
type Profile struct {
	ID              id.UserID  `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Company         string     `json:"company"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	LastLoginDevice string     `json:"lastLoginDevice,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Settings are the prediction defaults applied when a form leaves them out.
type Settings struct {
	DefaultModel         string `json:"defaultModel"`
	DefaultThresholdType string `json:"defaultThresholdType"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Company:         u.Company,
		LastLoginAt:     u.LastLoginAt,
		LastLoginDevice: u.LastLoginDevice,
		CreatedAt:       u.CreatedAt,
	}
}

func (u *User) Settings() Settings {
	return Settings{
		DefaultModel:         u.DefaultModel,
		DefaultThresholdType: u.DefaultThresholdType,
	}
}

// Session is the result of a successful login.
type Session struct {
	UserID      id.UserID `json:"user_id"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
}
