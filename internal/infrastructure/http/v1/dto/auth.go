package dto

import "time"

// LoginRequest is the credentials payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the signed access token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"isAdmin"`
}

// MeResponse describes the authenticated actor.
type MeResponse struct {
	UserID     string   `json:"userId"`
	Username   string   `json:"username"`
	Privileges []string `json:"privileges,omitempty"`
	IsAdmin    bool     `json:"isAdmin"`
}
