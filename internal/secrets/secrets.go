// Package secrets retrieves structured credentials from a secret store.
// Absence is an explicit result, not an error: callers receive a None
// Optional when the secret does not exist or carries no value.
package secrets

import (
	"context"

	"cliniq/internal/util"
)

// Credentials is a user/password pair stored as a JSON secret.
type Credentials struct {
	User     string `json:"INTERFAX_USER"`
	Password string `json:"INTERFAX_PASS"`
}

type Provider interface {
	// Get returns the credentials stored under name. A missing or empty
	// secret yields None; errors are reserved for retrieval failures.
	Get(ctx context.Context, name string) (util.Optional[Credentials], error)
}
