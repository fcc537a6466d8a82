package authclient

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jmcleod/fitx/identity"
)

// envelope is the response shape of every Remote Auth Service endpoint.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (e *envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// authData is the payload of login and register responses.
type authData struct {
	User  *wireUser `json:"user"`
	Token string    `json:"token"`
}

// wireID accepts both string and numeric identifiers.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = wireID(n.String())
	return nil
}

// wireUser covers every identity shape the service has been seen to emit.
type wireUser struct {
	ID        wireID `json:"id"`
	MongoID   wireID `json:"_id"`
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

// toIdentity adapts a wire user into the canonical identity record.
func (w *wireUser) toIdentity() (identity.Identity, error) {
	id := string(w.ID)
	if id == "" {
		id = string(w.MongoID)
	}
	if id == "" && w.UserID != 0 {
		id = strconv.FormatInt(w.UserID, 10)
	}
	if id == "" {
		return identity.Identity{}, newError(ReasonServerError, 0, "identity is missing an id")
	}
	if strings.TrimSpace(w.Email) == "" {
		return identity.Identity{}, newError(ReasonServerError, 0, "identity is missing an email")
	}

	role := identity.RoleUser
	if w.Role != "" {
		r, err := identity.ParseRole(w.Role)
		if err != nil {
			return identity.Identity{}, &Error{Reason: ReasonServerError, Message: "identity has an unrecognized role", Err: err}
		}
		role = r
	}

	first, last := w.FirstName, w.LastName
	if first == "" && last == "" {
		first, last = identity.SplitName(w.Name)
	}
	username := w.Username
	if username == "" {
		username = identity.UsernameFromEmail(w.Email)
	}

	return identity.Identity{
		ID:        id,
		Email:     identity.NormalizeEmail(w.Email),
		Username:  username,
		FirstName: first,
		LastName:  last,
		Role:      role,
	}, nil
}

// loginRequest is the JSON body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// registerRequest is the JSON body for POST /auth/register.
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role"`
	AdminCode string `json:"adminCode,omitempty"`
}
