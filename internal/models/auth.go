// Package models defines the wire types exchanged with the dispenser backend.
// Field names follow the backend's camelCase JSON contract. Response types
// tolerate unknown fields, so newer backends can add data without breaking
// older clients.
package models

import (
	"encoding/json"
	"strings"
)

// TokenAliases lists the response fields that may carry the bearer token,
// in resolution priority order.
var TokenAliases = []string{"token", "accessToken", "access_token"}

// SignUpRequest is the body of POST /api/accounts/signup.
type SignUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// LoginRequest is the body of POST /api/accounts/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the body returned by signup and login. The backend has
// shipped the token under several names; UnmarshalJSON resolves them.
type AuthResponse struct {
	Token string `json:"token"`
}

// UnmarshalJSON picks the first non-blank value among TokenAliases.
//
// JSON examples that all yield Token "abc":
//
//	{"token": "abc"}
//	{"accessToken": "abc", "expiresIn": 3600}
//	{"access_token": "abc"}
//	{"token": "", "access_token": "abc"}
func (a *AuthResponse) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	a.Token = ""
	for _, alias := range TokenAliases {
		raw, ok := fields[alias]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			// null or a non-string value counts as absent
			continue
		}
		if strings.TrimSpace(value) != "" {
			a.Token = value
			return nil
		}
	}
	return nil
}

// Session is the authenticated state produced by signup or login.
type Session struct {
	Token string `json:"-"` // Bearer credential, never serialized
}
