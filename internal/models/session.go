package models

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned by the stores when no session matches
var ErrSessionNotFound = errors.New("session not found")

// Session is a browser session bound to GSN OAuth2 tokens
type Session struct {
	ID           string    `json:"id" bson:"_id"`
	AccessToken  string    `json:"-" bson:"access_token"`
	RefreshToken string    `json:"-" bson:"refresh_token"`
	TokenType    string    `json:"token_type" bson:"token_type"`
	Scope        string    `json:"scope,omitempty" bson:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Expired reports whether the access token is no longer usable at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
