// Package services wraps the backend endpoints in typed operations.
//
// Services never retry. Each operation returns a value or an error from
// the apperrors taxonomy and leaves user-facing messaging to the caller.
package services

import (
	"context"

	"github.com/ieraasyl/DispenserClient/internal/apiclient"
)

// API is the part of apiclient.Client the services use.
type API interface {
	Do(ctx context.Context, method, path string, body, out interface{}) error
	Send(ctx context.Context, method, path string, body interface{}) (*apiclient.Response, error)
}

// Backend paths.
const (
	pathSignUp     = apiclient.PathSignUp
	pathLogin      = apiclient.PathLogin
	pathProfiles   = "/api/profiles"
	pathDispensers = "/api/dispensers"
	pathIntakes    = "/api/intakes"
)
