package transport

import (
	"encoding/json"
	"fmt"
)

// Envelope is the uniform backend response shape.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a backend response with a non-success status. The message is
// taken from the envelope when present, otherwise from the HTTP status text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// TokenData is the credential payload returned by login, verify and refresh
// endpoints. Older backend deployments send the access token under
// "accessToken" while current ones use "token"; Canonical resolves the pair.
type TokenData struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Canonical returns the access and refresh tokens, preferring the "token"
// field over the legacy "accessToken" field when both are set.
func (d TokenData) Canonical() (access, refresh string) {
	access = d.Token
	if access == "" {
		access = d.AccessToken
	}
	return access, d.RefreshToken
}
