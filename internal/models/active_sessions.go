package models

import "time"

// ActiveSession is the server side record of an issued token.
type ActiveSession struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
