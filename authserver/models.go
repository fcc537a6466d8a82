package authserver

import (
	"encoding/json"
	"time"

	"github.com/jmcleod/fitx/identity"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	AdminCode string `json:"adminCode,omitempty"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of an account.
type User struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	Username  string        `json:"username,omitempty"`
	FirstName string        `json:"firstName,omitempty"`
	LastName  string        `json:"lastName,omitempty"`
	Role      identity.Role `json:"role"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AuthResponse is the data of register and login responses.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// MeResponse is the data of GET /auth/me.
type MeResponse struct {
	User User `json:"user"`
}

// ListUsersResponse is the data of GET /admin/users.
type ListUsersResponse struct {
	Users []User `json:"users"`
}

// HealthResponse is the data of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
